package repo

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/Msr7799/veo-backend/internal/domain"
)

// JobRepositoryMem implements domain.JobRepository on a lock-protected map.
// Records live only as long as the process; see Sweep.
type JobRepositoryMem struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
	now  func() time.Time
}

// NewJobRepository creates an empty in-memory job repository.
func NewJobRepository() *JobRepositoryMem {
	return &JobRepositoryMem{jobs: make(map[string]*domain.Job), now: time.Now}
}

// WithClock overrides the clock used for CreatedAt and Sweep.
func (r *JobRepositoryMem) WithClock(now func() time.Time) *JobRepositoryMem {
	r.now = now
	return r
}

// Create inserts a PENDING job and returns a snapshot of it.
func (r *JobRepositoryMem) Create(mode domain.Mode, ownerID string) (*domain.Job, error) {
	if !mode.Valid() {
		return nil, errors.Wrapf(domain.ErrUnsupportedMode, "mode %q", mode)
	}
	if ownerID == "" {
		return nil, errors.Wrap(domain.ErrUnauthenticated, "owner id is required")
	}
	job := &domain.Job{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Mode:      mode,
		Status:    domain.JobStatusPending,
		CreatedAt: r.now(),
	}
	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()
	return cloneJob(job), nil
}

// Transition merges update into the stored record. Status only moves
// forward one step at a time, so a PENDING job must pass through
// PROCESSING, and a terminal job is never modified again.
func (r *JobRepositoryMem) Transition(jobID string, update domain.JobUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return errors.Wrapf(domain.ErrNotFound, "job %s", jobID)
	}
	if job.Status.IsTerminal() {
		return errors.Wrapf(domain.ErrInvalidTransition, "job %s is already %s", jobID, job.Status)
	}
	if update.Status != nil {
		if next := statusRank(*update.Status); next < statusRank(job.Status) || next > statusRank(job.Status)+1 {
			return errors.Wrapf(domain.ErrInvalidTransition, "job %s: %s -> %s", jobID, job.Status, *update.Status)
		}
		job.Status = *update.Status
	}
	if update.CompletedAt != nil {
		at := *update.CompletedAt
		job.CompletedAt = &at
	}
	if update.Result != nil {
		result := *update.Result
		job.Result = &result
	}
	if update.Error != nil {
		job.Error = *update.Error
	}
	return nil
}

// Get returns the job only when ownerID matches; a foreign job is
// indistinguishable from an unknown id.
func (r *JobRepositoryMem) Get(jobID, ownerID string) (*domain.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok || ownerID == "" || job.OwnerID != ownerID {
		return nil, false
	}
	return cloneJob(job), true
}

// Sweep deletes every job created more than maxAge ago, whatever its
// status. Jobs still PROCESSING are dropped too and their task's later
// transition fails with ErrNotFound.
func (r *JobRepositoryMem) Sweep(maxAge time.Duration) int {
	cutoff := r.now().Add(-maxAge)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, job := range r.jobs {
		if job.CreatedAt.Before(cutoff) {
			delete(r.jobs, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked jobs.
func (r *JobRepositoryMem) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

func statusRank(s domain.JobStatus) int {
	switch s {
	case domain.JobStatusPending:
		return 0
	case domain.JobStatusProcessing:
		return 1
	default:
		return 2
	}
}

func cloneJob(job *domain.Job) *domain.Job {
	out := *job
	if job.CompletedAt != nil {
		at := *job.CompletedAt
		out.CompletedAt = &at
	}
	if job.Result != nil {
		result := *job.Result
		out.Result = &result
	}
	return &out
}

var _ domain.JobRepository = (*JobRepositoryMem)(nil)
