package domain

import "context"

// Identity is the verified caller a request acts on behalf of.
type Identity struct {
	ID     string
	Email  string
	Claims map[string]any
}

// IdentityVerifier turns a bearer token into an Identity or fails with
// ErrUnauthenticated.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}
