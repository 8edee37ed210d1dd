package repo

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Msr7799/veo-backend/internal/domain"
)

func TestQuotaUsageWithoutActivity(t *testing.T) {
	r := NewQuotaRepository(3, nil)
	assert.Equal(t, domain.Usage{Used: 0, Limit: 3, Remaining: 3}, r.Usage("alice"))
}

func TestQuotaConsumeUntilExceeded(t *testing.T) {
	r := NewQuotaRepository(2, nil)

	u, err := r.Consume("alice")
	require.NoError(t, err)
	assert.Equal(t, domain.Usage{Used: 1, Limit: 2, Remaining: 1}, u)

	u, err = r.Consume("alice")
	require.NoError(t, err)
	assert.Equal(t, domain.Usage{Used: 2, Limit: 2, Remaining: 0}, u)

	u, err = r.Consume("alice")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrQuotaExceeded))
	assert.Equal(t, 2, u.Used)
	assert.Equal(t, domain.Usage{Used: 2, Limit: 2, Remaining: 0}, r.Usage("alice"))

	// other identities are unaffected
	u, err = r.Consume("bob")
	require.NoError(t, err)
	assert.Equal(t, 1, u.Used)
}

func TestQuotaConsumeIsAtomicUnderContention(t *testing.T) {
	const limit = 5
	const callers = 50
	r := NewQuotaRepository(limit, nil)

	var ok, rejected atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := r.Consume("alice"); err != nil {
				if errors.Is(err, domain.ErrQuotaExceeded) {
					rejected.Add(1)
				}
				return
			}
			ok.Add(1)
		}()
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, limit, ok.Load())
	assert.EqualValues(t, callers-limit, rejected.Load())
	assert.Equal(t, limit, r.Usage("alice").Used)
}

func TestQuotaDayRollover(t *testing.T) {
	clock := time.Date(2026, 10, 15, 23, 59, 0, 0, time.UTC)
	r := NewQuotaRepository(1, time.UTC).WithClock(func() time.Time { return clock })

	_, err := r.Consume("alice")
	require.NoError(t, err)
	_, err = r.Consume("alice")
	require.Error(t, err)

	clock = clock.Add(2 * time.Minute)
	assert.Equal(t, domain.Usage{Used: 0, Limit: 1, Remaining: 1}, r.Usage("alice"))
	u, err := r.Consume("alice")
	require.NoError(t, err)
	assert.Equal(t, 1, u.Used)
}

func TestQuotaDayFollowsLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	clock := time.Date(2026, 10, 15, 20, 0, 0, 0, time.UTC)
	r := NewQuotaRepository(1, loc).WithClock(func() time.Time { return clock })

	_, err := r.Consume("alice")
	require.NoError(t, err)

	// 21:30 UTC is already the next day at UTC+3
	clock = clock.Add(90 * time.Minute)
	assert.Equal(t, 0, r.Usage("alice").Used)
}

func TestQuotaResetAndSweep(t *testing.T) {
	clock := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	r := NewQuotaRepository(3, nil).WithClock(func() time.Time { return clock })

	_, _ = r.Consume("alice")
	_, _ = r.Consume("bob")
	r.Reset("alice")
	assert.Equal(t, 0, r.Usage("alice").Used)
	assert.Equal(t, 0, r.Sweep())

	clock = clock.Add(24 * time.Hour)
	_, _ = r.Consume("carol")
	assert.Equal(t, 1, r.Sweep())
	assert.Equal(t, 1, r.Usage("carol").Used)
}
