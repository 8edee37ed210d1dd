package video

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Synthetic returns deterministic placeholder bytes so the job pipeline can
// run end-to-end without provider credentials.
type Synthetic struct {
	Delay time.Duration
}

func NewSynthetic(delay time.Duration) *Synthetic {
	return &Synthetic{Delay: delay}
}

func (s *Synthetic) Generate(ctx context.Context, req GenerateRequest) (*Artifact, error) {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	seed := deterministicSeed(req.JobID, req.Prompt, req.Quality)
	lines := []string{
		"Synthetic Veo video placeholder",
		fmt.Sprintf("Seed: %s", seed),
		fmt.Sprintf("Prompt: %s", strings.TrimSpace(req.Prompt)),
	}
	return &Artifact{
		Data:     []byte(strings.Join(lines, "\n")),
		MIMEType: "video/mp4",
	}, nil
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		hasher.Write([]byte(fmt.Sprintf("%v", part)))
		hasher.Write([]byte{'|'})
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

var _ Generator = (*Synthetic)(nil)
