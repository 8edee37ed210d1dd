package generation

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Msr7799/veo-backend/internal/domain"
	"github.com/Msr7799/veo-backend/internal/infra"
)

// Pruner drops idle entries from an auxiliary ledger such as a rate limiter.
type Pruner interface {
	Name() string
	Prune() int
}

// SweepReport counts what one janitor pass removed.
type SweepReport struct {
	Jobs    int
	Quota   int
	Limiter int
}

// Janitor periodically evicts expired jobs and stale quota records.
type Janitor struct {
	jobs      domain.JobRepository
	quota     domain.QuotaRepository
	pruners   []Pruner
	retention time.Duration
	interval  time.Duration
	logger    *infra.Logger
}

// NewJanitor builds a janitor; it does nothing until Start is called.
func NewJanitor(jobs domain.JobRepository, quota domain.QuotaRepository, retention, interval time.Duration, logger *infra.Logger, pruners ...Pruner) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &Janitor{
		jobs:      jobs,
		quota:     quota,
		pruners:   pruners,
		retention: retention,
		interval:  interval,
		logger:    logger,
	}
}

// Sweep runs a single pass.
func (j *Janitor) Sweep() SweepReport {
	var report SweepReport
	report.Jobs = j.jobs.Sweep(j.retention)
	report.Quota = j.quota.Sweep()
	for _, p := range j.pruners {
		n := p.Prune()
		report.Limiter += n
		infra.JanitorEvictions.WithLabelValues("ratelimit_" + p.Name()).Add(float64(n))
	}
	infra.JanitorEvictions.WithLabelValues("jobs").Add(float64(report.Jobs))
	infra.JanitorEvictions.WithLabelValues("quota").Add(float64(report.Quota))

	j.logger.Info().
		Int("jobs", report.Jobs).
		Int("quota", report.Quota).
		Int("rate_windows", report.Limiter).
		Msg("janitor: sweep finished")
	return report
}

// Start sweeps every interval on its own goroutine until ctx is done.
func (j *Janitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	j.logger.Info().Dur("interval", j.interval).Dur("retention", j.retention).Msg("janitor: started")

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				j.logger.Info().Msg("janitor: stopped")
				return
			case <-ticker.C:
				j.Sweep()
			}
		}
	}()
}
