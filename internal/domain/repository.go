package domain

import (
	"context"
	"io"
	"time"
)

// JobRepository tracks jobs. Reads are scoped to the owning identity.
type JobRepository interface {
	Create(mode Mode, ownerID string) (*Job, error)
	Transition(jobID string, update JobUpdate) error
	Get(jobID, ownerID string) (*Job, bool)
	Sweep(maxAge time.Duration) int
}

// QuotaRepository tracks per-identity daily usage.
type QuotaRepository interface {
	Usage(ownerID string) Usage
	Consume(ownerID string) (Usage, error)
	Reset(ownerID string)
	Sweep() int
}

// ObjectStore persists generated artifacts and mints time-bounded URLs.
type ObjectStore interface {
	Upload(ctx context.Context, data []byte, path, contentType string) (string, error)
	SignURL(ctx context.Context, locator string, ttl time.Duration) (string, error)
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
}
