package repo

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/Msr7799/veo-backend/internal/domain"
)

const dayLayout = "2006-01-02"

type quotaRecord struct {
	day   string
	count int
}

// QuotaRepositoryMem implements domain.QuotaRepository as a per-calendar-day
// counter. A record whose day is stale counts as zero until Sweep removes it.
type QuotaRepositoryMem struct {
	mu      sync.Mutex
	records map[string]*quotaRecord
	limit   int
	loc     *time.Location
	now     func() time.Time
}

// NewQuotaRepository creates a ledger allowing limit consumptions per day,
// with days measured in loc (UTC when nil).
func NewQuotaRepository(limit int, loc *time.Location) *QuotaRepositoryMem {
	if loc == nil {
		loc = time.UTC
	}
	if limit < 0 {
		limit = 0
	}
	return &QuotaRepositoryMem{
		records: make(map[string]*quotaRecord),
		limit:   limit,
		loc:     loc,
		now:     time.Now,
	}
}

// WithClock overrides the clock used to compute the current day.
func (r *QuotaRepositoryMem) WithClock(now func() time.Time) *QuotaRepositoryMem {
	r.now = now
	return r
}

// Limit returns the configured daily limit.
func (r *QuotaRepositoryMem) Limit() int {
	return r.limit
}

func (r *QuotaRepositoryMem) today() string {
	return r.now().In(r.loc).Format(dayLayout)
}

// Usage reports today's usage without modifying anything.
func (r *QuotaRepositoryMem) Usage(ownerID string) domain.Usage {
	day := r.today()
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[ownerID]
	if !ok || rec.day != day {
		return domain.NewUsage(0, r.limit)
	}
	return domain.NewUsage(rec.count, r.limit)
}

// Consume checks and increments today's counter in one critical section.
func (r *QuotaRepositoryMem) Consume(ownerID string) (domain.Usage, error) {
	day := r.today()
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[ownerID]
	if !ok {
		rec = &quotaRecord{day: day}
		r.records[ownerID] = rec
	} else if rec.day != day {
		rec.day = day
		rec.count = 0
	}
	if rec.count >= r.limit {
		return domain.NewUsage(rec.count, r.limit), errors.Wrapf(domain.ErrQuotaExceeded, "daily limit of %d reached", r.limit)
	}
	rec.count++
	return domain.NewUsage(rec.count, r.limit), nil
}

// Reset removes the identity's record entirely.
func (r *QuotaRepositoryMem) Reset(ownerID string) {
	r.mu.Lock()
	delete(r.records, ownerID)
	r.mu.Unlock()
}

// Sweep drops records that belong to a previous day.
func (r *QuotaRepositoryMem) Sweep() int {
	day := r.today()
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for owner, rec := range r.records {
		if rec.day != day {
			delete(r.records, owner)
			removed++
		}
	}
	return removed
}

var _ domain.QuotaRepository = (*QuotaRepositoryMem)(nil)
