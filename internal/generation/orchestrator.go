package generation

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/Msr7799/veo-backend/internal/domain"
	"github.com/Msr7799/veo-backend/internal/infra"
	"github.com/Msr7799/veo-backend/internal/providers/video"
)

const (
	msgGenerationFailed = "video generation failed"
	msgStorageFailed    = "failed to store generated video"
	msgUnexpectedOutput = "unexpected provider response"
	msgShuttingDown     = "server shutting down"
)

// Options wires an Orchestrator.
type Options struct {
	Jobs            domain.JobRepository
	Quota           domain.QuotaRepository
	Generator       video.Generator
	Store           domain.ObjectStore
	Policy          Policy
	EnabledModes    []domain.Mode
	SignedURLTTL    time.Duration
	ProviderTimeout time.Duration
	MaxConcurrent   int
	Hardened        bool
	Logger          *infra.Logger
	// BaseContext parents every detached task. Cancelling it aborts tasks
	// still waiting for a slot or talking to the provider.
	BaseContext context.Context
}

// Orchestrator admits generation requests and drives each job through
// PENDING, PROCESSING and a terminal state on its own goroutine.
type Orchestrator struct {
	jobs      domain.JobRepository
	quota     domain.QuotaRepository
	generator video.Generator
	store     domain.ObjectStore
	policy    Policy
	modes     map[domain.Mode]bool
	urlTTL    time.Duration
	timeout   time.Duration
	hardened  bool
	logger    *infra.Logger
	baseCtx   context.Context
	slots     chan struct{}
	wg        sync.WaitGroup
	now       func() time.Time
}

// New builds an Orchestrator from opts.
func New(opts Options) *Orchestrator {
	modes := make(map[domain.Mode]bool, len(opts.EnabledModes))
	for _, m := range opts.EnabledModes {
		modes[m] = true
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	ttl := opts.SignedURLTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	timeout := opts.ProviderTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	baseCtx := opts.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &Orchestrator{
		jobs:      opts.Jobs,
		quota:     opts.Quota,
		generator: opts.Generator,
		store:     opts.Store,
		policy:    opts.Policy,
		modes:     modes,
		urlTTL:    ttl,
		timeout:   timeout,
		hardened:  opts.Hardened,
		logger:    logger,
		baseCtx:   baseCtx,
		slots:     make(chan struct{}, maxConcurrent),
		now:       time.Now,
	}
}

// Policy returns the request policy used to validate bodies.
func (o *Orchestrator) Policy() Policy {
	return o.policy
}

// ModeEnabled reports whether mode is accepted by this deployment.
func (o *Orchestrator) ModeEnabled(mode domain.Mode) bool {
	return o.modes[mode]
}

// EnabledModes lists enabled modes in display order.
func (o *Orchestrator) EnabledModes() []domain.Mode {
	out := make([]domain.Mode, 0, len(o.modes))
	for _, m := range domain.AllModes {
		if o.modes[m] {
			out = append(out, m)
		}
	}
	return out
}

// Submit runs the admission steps after rate limiting: mode check, quota
// consumption and job creation. The job is handed to a detached task and
// returned PENDING together with the caller's quota usage.
func (o *Orchestrator) Submit(ctx context.Context, ownerID string, req domain.GenerationRequest) (*domain.Job, domain.Usage, error) {
	if !o.modes[req.Mode] {
		infra.AdmissionRejections.WithLabelValues("unsupported_mode").Inc()
		return nil, domain.Usage{}, errors.Wrapf(domain.ErrUnsupportedMode, "mode %q is disabled", req.Mode)
	}

	usage, err := o.quota.Consume(ownerID)
	if err != nil {
		infra.AdmissionRejections.WithLabelValues("quota").Inc()
		return nil, usage, err
	}

	job, err := o.jobs.Create(req.Mode, ownerID)
	if err != nil {
		return nil, usage, err
	}
	infra.JobsCreated.WithLabelValues(string(req.Mode)).Inc()

	o.logger.Info().
		Str("job_id", job.ID).
		Str("user_id", ownerID).
		Str("mode", string(req.Mode)).
		Int("quota_used", usage.Used).
		Msg("generation: job admitted")

	o.wg.Add(1)
	go o.run(job.ID, ownerID, req)

	return job, usage, nil
}

// Status returns the caller's job. Jobs owned by someone else are reported
// as not found.
func (o *Orchestrator) Status(jobID, ownerID string) (*domain.Job, error) {
	job, ok := o.jobs.Get(jobID, ownerID)
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "job %s", jobID)
	}
	return job, nil
}

// Usage returns the caller's quota usage for today.
func (o *Orchestrator) Usage(ownerID string) domain.Usage {
	return o.quota.Usage(ownerID)
}

// Wait blocks until every detached task has finished or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) run(jobID, ownerID string, req domain.GenerationRequest) {
	defer o.wg.Done()
	log := o.logger.With().Str("job_id", jobID).Str("mode", string(req.Mode)).Logger()

	processing := false
	defer func() {
		if r := recover(); r != nil {
			err := errors.Newf("panic: %v", r)
			log.Error().Err(err).Msg("generation: task panicked")
			if !processing && !o.markProcessing(&log, jobID) {
				return
			}
			o.fail(&log, jobID, req.Mode, err)
		}
	}()

	select {
	case o.slots <- struct{}{}:
		defer func() { <-o.slots }()
	case <-o.baseCtx.Done():
		// Queued jobs still pass through PROCESSING before failing.
		if o.markProcessing(&log, jobID) {
			o.finish(&log, jobID, req.Mode, domain.FailedUpdate(msgShuttingDown, o.now()))
		}
		return
	}

	if !o.markProcessing(&log, jobID) {
		return
	}
	processing = true

	infra.JobsInFlight.Inc()
	defer infra.JobsInFlight.Dec()

	result, err := o.execute(jobID, req)
	if err != nil {
		log.Error().Err(err).Str("user_id", ownerID).Msg("generation: job failed")
		o.fail(&log, jobID, req.Mode, err)
		return
	}
	o.finish(&log, jobID, req.Mode, domain.CompletedUpdate(*result, o.now()))
	log.Info().Str("video_uri", result.VideoURI).Msg("generation: job completed")
}

// execute performs the provider call, stores inline output and signs the
// resulting locator. It is the only part of a task that blocks on I/O.
func (o *Orchestrator) execute(jobID string, req domain.GenerationRequest) (*domain.JobResult, error) {
	ctx, cancel := context.WithTimeout(o.baseCtx, o.timeout)
	defer cancel()

	started := time.Now()
	artifact, err := o.generator.Generate(ctx, o.policy.ProviderRequest(jobID, req))
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	infra.ProviderLatency.WithLabelValues(outcome).Observe(time.Since(started).Seconds())
	if err != nil {
		if !errors.Is(err, domain.ErrUnexpectedOutput) {
			err = errors.Mark(err, domain.ErrProvider)
		}
		return nil, errors.Wrap(err, "generate video")
	}
	if artifact == nil {
		return nil, errors.Wrap(domain.ErrUnexpectedOutput, "provider returned no artifact")
	}

	locator := artifact.Locator
	if len(artifact.Data) > 0 {
		locator, err = o.store.Upload(ctx, artifact.Data, storageKey(jobID, artifact.MIMEType), artifact.MIMEType)
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "upload video"), domain.ErrStorage)
		}
	}
	if locator == "" {
		return nil, errors.Wrap(domain.ErrUnexpectedOutput, "artifact has neither bytes nor locator")
	}

	signed, err := o.store.SignURL(ctx, locator, o.urlTTL)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "sign video url"), domain.ErrStorage)
	}
	return &domain.JobResult{
		VideoURI:  locator,
		SignedURL: signed,
		ExpiresAt: o.now().Add(o.urlTTL),
		MIMEType:  artifact.MIMEType,
	}, nil
}

func (o *Orchestrator) markProcessing(log *zerolog.Logger, jobID string) bool {
	if err := o.jobs.Transition(jobID, domain.StatusUpdate(domain.JobStatusProcessing)); err != nil {
		log.Warn().Err(err).Msg("generation: job vanished before processing")
		return false
	}
	return true
}

func (o *Orchestrator) fail(log *zerolog.Logger, jobID string, mode domain.Mode, err error) {
	o.finish(log, jobID, mode, domain.FailedUpdate(o.failureMessage(err), o.now()))
}

func (o *Orchestrator) finish(log *zerolog.Logger, jobID string, mode domain.Mode, update domain.JobUpdate) {
	if err := o.jobs.Transition(jobID, update); err != nil {
		log.Warn().Err(err).Msg("generation: record terminal state")
		return
	}
	infra.JobsFinished.WithLabelValues(string(mode), string(*update.Status)).Inc()
}

// failureMessage is the text recorded on a failed job. Hardened deployments
// only expose the failure category.
func (o *Orchestrator) failureMessage(err error) string {
	if !o.hardened {
		return err.Error()
	}
	switch {
	case errors.Is(err, domain.ErrUnexpectedOutput):
		return msgUnexpectedOutput
	case errors.Is(err, domain.ErrStorage):
		return msgStorageFailed
	default:
		return msgGenerationFailed
	}
}

// Capabilities describes what callers may request from this deployment.
type Capabilities struct {
	Modes        []domain.Mode        `json:"modes"`
	Policy       Policy               `json:"limits"`
	CameraStyles []domain.CameraStyle `json:"cameraStyles"`
	MotionLevels []domain.MotionLevel `json:"motionLevels"`
	Lightings    []domain.Lighting    `json:"lighting"`
	Qualities    []domain.Quality     `json:"qualities"`
	Resolutions  []domain.Resolution  `json:"resolutions"`
	DailyLimit   int                  `json:"dailyLimit"`
}

// Capabilities reports enabled modes and request limits.
func (o *Orchestrator) Capabilities() Capabilities {
	return Capabilities{
		Modes:        o.EnabledModes(),
		Policy:       o.policy,
		CameraStyles: domain.CameraStyles,
		MotionLevels: domain.MotionLevels,
		Lightings:    domain.Lightings,
		Qualities:    domain.Qualities,
		Resolutions:  domain.Resolutions,
		DailyLimit:   o.quota.Usage("").Limit,
	}
}
