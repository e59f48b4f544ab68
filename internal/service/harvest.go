package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/target/review-harvester/config"
	"github.com/target/review-harvester/internal/core"
	"github.com/target/review-harvester/internal/data"
	"github.com/target/review-harvester/internal/domain/harvest"
	"github.com/target/review-harvester/internal/domain/model"
	apperrors "github.com/target/review-harvester/internal/errors"
	"github.com/target/review-harvester/internal/observability/metrics"
	"github.com/target/review-harvester/internal/observability/statsd"
	"github.com/target/review-harvester/internal/ports"
)

const (
	defaultErrorLogMaxChars = 10000
	defaultListLimit        = 20
	defaultMaxListLimit     = 100
	defaultHeartbeat        = 30 * time.Second
	defaultOrphanAfter      = 3 * time.Minute
	finalizeTimeout         = 10 * time.Second
	shutdownGrace           = 5 * time.Second
)

var (
	// ErrAlreadyRunning is returned by Start while another job holds the slot.
	ErrAlreadyRunning = apperrors.Conflict("a harvest job is already running")
	// ErrNoActiveJob is returned by Stop when nothing is running.
	ErrNoActiveJob = apperrors.Conflict("no active harvest job")
)

// StartRequest selects the scope of a new job.
type StartRequest struct {
	DateFilter model.DateFilter `json:"date_filter"`
	// Company limits the job to a single company by exact name. Empty means all companies.
	Company string `json:"company,omitempty"`
}

// StartResult acknowledges an accepted job.
type StartResult struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// StopResult acknowledges a stop request.
type StopResult struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// HarvestServiceOptions groups dependencies for HarvestService.
type HarvestServiceOptions struct {
	Jobs      core.JobRepository      // Required: job store
	Companies core.CompanyRepository  // Required: harvest targets
	Reviews   core.ReviewRepository   // Required: review store
	Sessions  ports.SessionFactory    // Required: automation session factory
	Adapters  []ports.SourceAdapter   // Required: portals in harvest order
	Progress  core.ProgressStore      // Optional: progress mirror (Redis)
	Config    config.HarvestConfig    // Optional: retry and log limits
	Now       func() time.Time        // Optional: clock
	Sleep     SleepFunc               // Optional: backoff sleeper
	Logger    *slog.Logger            // Optional: structured logger
	Metrics   statsd.Sink             // Optional: metrics sink (StatsD-compatible)
}

// HarvestService is the job orchestrator. At most one job runs per process; the job
// store additionally refuses a second pending/running row across processes.
type HarvestService struct {
	jobs      core.JobRepository
	companies core.CompanyRepository
	factory   ports.SessionFactory
	adapters  []ports.SourceAdapter
	gateway   *ReviewGateway
	progress  *ProgressReporter
	errlog    *ErrorLog
	policy    harvest.RetryPolicy
	listLimit int
	listMax   int
	maxChars  int
	beatEvery time.Duration
	orphanAge time.Duration
	now       func() time.Time
	sleep     SleepFunc
	logger    *slog.Logger
	metrics   metrics.Harvest

	mu     sync.Mutex
	active *activeJob
	wg     sync.WaitGroup
}

// activeJob is the single-slot registry entry for the running job.
type activeJob struct {
	jobID      string
	cancel     atomic.Bool
	hardCancel context.CancelFunc
	done       chan struct{}
}

// NewHarvestService constructs a new HarvestService.
func NewHarvestService(opts HarvestServiceOptions) (*HarvestService, error) {
	switch {
	case opts.Jobs == nil:
		return nil, errors.New("JobRepository is required")
	case opts.Companies == nil:
		return nil, errors.New("CompanyRepository is required")
	case opts.Reviews == nil:
		return nil, errors.New("ReviewRepository is required")
	case opts.Sessions == nil:
		return nil, errors.New("SessionFactory is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "harvest_service")

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	cfg := opts.Config
	policy := harvest.DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		policy = harvest.RetryPolicy{MaxAttempts: cfg.MaxAttempts, Backoff: cfg.Backoff}
	}
	maxChars := cfg.ErrorLogMaxChars
	if maxChars <= 0 {
		maxChars = defaultErrorLogMaxChars
	}
	listMax := cfg.MaxListLimit
	if listMax <= 0 {
		listMax = defaultMaxListLimit
	}
	listLimit := cfg.DefaultListLimit
	if listLimit <= 0 {
		listLimit = min(defaultListLimit, listMax)
	}
	beatEvery := cfg.HeartbeatInterval
	if beatEvery <= 0 {
		beatEvery = defaultHeartbeat
	}
	orphanAge := cfg.OrphanAfter
	if orphanAge <= 0 {
		orphanAge = defaultOrphanAfter
	}
	orphanAge = max(orphanAge, 2*beatEvery)

	m := metrics.Harvest{Sink: opts.Metrics}
	gateway, err := NewReviewGateway(ReviewGatewayOptions{
		Reviews: opts.Reviews,
		Now:     now,
		Logger:  logger,
		Metrics: m,
	})
	if err != nil {
		return nil, err
	}

	return &HarvestService{
		jobs:      opts.Jobs,
		companies: opts.Companies,
		factory:   opts.Sessions,
		adapters:  append([]ports.SourceAdapter(nil), opts.Adapters...),
		gateway:   gateway,
		progress:  NewProgressReporter(opts.Progress, cfg.ProgressTTL, now, logger),
		errlog:    NewErrorLog(opts.Jobs, maxChars, now, logger),
		policy:    policy.Normalize(),
		listLimit: listLimit,
		listMax:   listMax,
		maxChars:  maxChars,
		beatEvery: beatEvery,
		orphanAge: orphanAge,
		now:       now,
		sleep:     sleep,
		logger:    logger,
		metrics:   m,
	}, nil
}

// Portals lists the configured portals in harvest order.
func (s *HarvestService) Portals() []model.Portal {
	out := make([]model.Portal, 0, len(s.adapters))
	for _, a := range s.adapters {
		out = append(out, a.Portal())
	}
	return out
}

// RecoverOrphans fails jobs left pending or running by a process that stopped heartbeating.
// A job whose row changed within the orphan window is assumed live and left alone.
func (s *HarvestService) RecoverOrphans(ctx context.Context) (int, error) {
	now := s.now()
	n, err := s.jobs.FailOrphaned(ctx, now.Add(-s.orphanAge), FormatEntry(now, "interrupted by restart"), s.maxChars)
	if err != nil {
		return 0, fmt.Errorf("fail orphaned jobs: %w", err)
	}
	if n > 0 {
		s.logger.Warn("failed orphaned jobs", "count", n)
		for range n {
			s.metrics.JobTransition(model.JobStatusFailed, "")
		}
	}
	return n, nil
}

// Start creates a job and runs it in the background. It returns as soon as the job row exists.
func (s *HarvestService) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	job, _, err := s.start(ctx, req)
	if err != nil {
		return nil, err
	}
	return &StartResult{
		JobID:   job.ID,
		Message: fmt.Sprintf("harvest started (date filter %s)", job.DateFilter),
	}, nil
}

// RunSync starts a job and blocks until it reaches a terminal status. Cancelling ctx
// requests a stop and still waits for the job to finish.
func (s *HarvestService) RunSync(ctx context.Context, req StartRequest) (*model.Job, error) {
	job, slot, err := s.start(ctx, req)
	if err != nil {
		return nil, err
	}
	select {
	case <-slot.done:
	case <-ctx.Done():
		s.requestStop(ctx, slot, "stop requested: caller cancelled")
		<-slot.done
	}
	return s.jobs.GetByID(context.WithoutCancel(ctx), job.ID)
}

func (s *HarvestService) start(ctx context.Context, req StartRequest) (*model.Job, *activeJob, error) {
	filter := req.DateFilter
	if filter == "" {
		filter = model.DateFilterAll
	}
	if !filter.Valid() {
		return nil, nil, apperrors.ValidationField("date_filter", fmt.Sprintf("invalid date filter %q (valid options: all, week, twoWeeks)", filter))
	}
	companyName := strings.TrimSpace(req.Company)

	slot, ok := s.reserve()
	if !ok {
		return nil, nil, ErrAlreadyRunning
	}
	launched := false
	defer func() {
		if !launched {
			s.release(slot)
		}
	}()

	var target *model.Company
	createReq := &model.CreateJobRequest{DateFilter: filter}
	if companyName != "" {
		c, err := s.companies.GetByName(ctx, companyName)
		if errors.Is(err, data.ErrCompanyNotFound) {
			return nil, nil, apperrors.Wrapf(err, apperrors.ErrCodeNotFound, "company %q not found", companyName)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("resolve company: %w", err)
		}
		target = c
		createReq.CompanyFilter = &c.Name
	}

	job, err := s.jobs.Create(ctx, createReq)
	if errors.Is(err, data.ErrActiveJobExists) {
		return nil, nil, ErrAlreadyRunning
	}
	if err != nil {
		return nil, nil, fmt.Errorf("create job: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Lock()
	slot.jobID = job.ID
	slot.hardCancel = cancel
	s.mu.Unlock()

	s.metrics.JobTransition(model.JobStatusPending, job.DateFilter)
	s.logger.Info("harvest job accepted",
		"job_id", job.ID,
		"date_filter", job.DateFilter,
		"company", companyName,
	)

	launched = true
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(slot)
		s.run(runCtx, slot, job, target)
	}()
	return job, slot, nil
}

// Stop asks the running job to end at its next checkpoint. It does not wait.
func (s *HarvestService) Stop(ctx context.Context) (*StopResult, error) {
	slot := s.current()
	if slot == nil {
		return nil, ErrNoActiveJob
	}
	msg := "stop requested; the job ends after the current attempt"
	if !s.requestStop(ctx, slot, "stop requested") {
		msg = "stop already requested"
	}
	return &StopResult{JobID: slot.jobID, Message: msg}, nil
}

// Status reports whether a job is running, the current or most recent job, and live progress.
func (s *HarvestService) Status(ctx context.Context) (*model.HarvestStatus, error) {
	if slot := s.current(); slot != nil {
		job, err := s.jobs.GetByID(ctx, slot.jobID)
		if err != nil {
			return nil, fmt.Errorf("get current job: %w", err)
		}
		return &model.HarvestStatus{
			IsRunning:  true,
			CurrentJob: job,
			Progress:   s.progress.Snapshot(),
		}, nil
	}

	latest, err := s.jobs.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("get latest job: %w", err)
	}
	st := &model.HarvestStatus{CurrentJob: latest}
	// Another process (harvester-admin run-once) may own the active job.
	if latest != nil && !latest.Status.Terminal() {
		st.IsRunning = true
		st.Progress = s.progress.Load(ctx)
	}
	return st, nil
}

// Recent lists jobs newest first. Non-positive limits use the default; large ones are clamped.
func (s *HarvestService) Recent(ctx context.Context, limit int) ([]*model.Job, error) {
	switch {
	case limit <= 0:
		limit = s.listLimit
	case limit > s.listMax:
		limit = s.listMax
	}
	jobs, err := s.jobs.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Get returns one job by id.
func (s *HarvestService) Get(ctx context.Context, id string) (*model.Job, error) {
	id = strings.TrimSpace(id)
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NotFoundf("job %q not found", id)
	}
	job, err := s.jobs.GetByID(ctx, id)
	if errors.Is(err, data.ErrJobNotFound) {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeNotFound, "job %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Wait blocks until every job started by this service has finished.
func (s *HarvestService) Wait() {
	s.wg.Wait()
}

// Shutdown requests a stop of the running job and waits for it until ctx ends.
// When ctx ends first the job context is cancelled so in-flight requests abort.
func (s *HarvestService) Shutdown(ctx context.Context) error {
	slot := s.current()
	if slot == nil {
		return nil
	}
	s.requestStop(ctx, slot, "stop requested: service shutting down")

	select {
	case <-slot.done:
		return nil
	case <-ctx.Done():
	}

	s.logger.Warn("job did not stop before shutdown deadline; cancelling", "job_id", slot.jobID)
	if slot.hardCancel != nil {
		slot.hardCancel()
	}
	t := time.NewTimer(shutdownGrace)
	defer t.Stop()
	select {
	case <-slot.done:
	case <-t.C:
	}
	return ctx.Err()
}

func (s *HarvestService) reserve() (*activeJob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return nil, false
	}
	s.active = &activeJob{done: make(chan struct{})}
	return s.active, true
}

func (s *HarvestService) release(slot *activeJob) {
	s.mu.Lock()
	if s.active == slot {
		s.active = nil
	}
	cancel := slot.hardCancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	close(slot.done)
}

// current returns the slot of a launched job, ignoring one still being created.
func (s *HarvestService) current() *activeJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || s.active.jobID == "" {
		return nil
	}
	return s.active
}

// requestStop sets the cancellation flag and reports whether this call set it.
func (s *HarvestService) requestStop(ctx context.Context, slot *activeJob, reason string) bool {
	if slot.cancel.Swap(true) {
		return false
	}
	s.logger.Info("harvest stop requested", "job_id", slot.jobID, "reason", reason)
	s.errlog.Append(ctx, slot.jobID, reason)
	return true
}

func (s *HarvestService) run(ctx context.Context, slot *activeJob, job *model.Job, target *model.Company) {
	log := s.logger.With("job_id", job.ID, "date_filter", job.DateFilter)

	beatCtx, stopBeat := context.WithCancel(ctx)
	beatDone := make(chan struct{})
	go func() {
		defer close(beatDone)
		s.heartbeat(beatCtx, job.ID, log)
	}()

	status, counters, cause := s.execute(ctx, slot, job, target, log)
	stopBeat()
	<-beatDone
	s.finish(ctx, job, status, counters, cause, log)
}

// heartbeat keeps the job row fresh until ctx is done.
func (s *HarvestService) heartbeat(ctx context.Context, jobID string, log *slog.Logger) {
	ticker := time.NewTicker(s.beatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.jobs.Heartbeat(ctx, jobID); err != nil && ctx.Err() == nil {
				log.Warn("job heartbeat failed", "error", err)
			}
		}
	}
}

func (s *HarvestService) execute(ctx context.Context, slot *activeJob, job *model.Job, target *model.Company, log *slog.Logger) (model.JobStatus, model.JobCounters, error) {
	var counters model.JobCounters

	if _, err := s.jobs.MarkRunning(ctx, job.ID); err != nil {
		return model.JobStatusFailed, counters, fmt.Errorf("mark job running: %w", err)
	}
	s.metrics.JobTransition(model.JobStatusRunning, job.DateFilter)
	log.Info("harvest job running")
	s.progress.Set(ctx, model.ExtractionProgress{
		JobID:       job.ID,
		MaxAttempts: s.policy.MaxAttempts,
		Phase:       model.ProgressPhaseStarting,
	})

	cutoff, err := harvest.Cutoff(job.DateFilter, s.now())
	if err != nil {
		return model.JobStatusFailed, counters, err
	}

	companies, err := s.targets(ctx, target)
	if err != nil {
		return model.JobStatusFailed, counters, err
	}
	if len(companies) == 0 || len(s.adapters) == 0 {
		log.Info("nothing to harvest", "companies", len(companies), "portals", len(s.adapters))
		return model.JobStatusCompleted, counters, nil
	}

	sessions := NewSessionManager(s.factory, log, s.metrics)
	if err := sessions.Open(ctx); err != nil {
		return model.JobStatusFailed, counters, fmt.Errorf("automation session could not be created: %w", err)
	}
	defer func() {
		if err := sessions.Close(); err != nil {
			log.Warn("close automation session failed", "error", err)
		}
	}()

	exec, err := NewRetryExecutor(RetryExecutorOptions{
		Policy:    s.policy,
		Sessions:  sessions,
		Progress:  s.progress,
		Cancelled: slot.cancel.Load,
		Sleep:     s.sleep,
		Logger:    log,
	})
	if err != nil {
		return model.JobStatusFailed, counters, err
	}

	for _, company := range companies {
		for _, adapter := range s.adapters {
			if slot.cancel.Load() || ctx.Err() != nil {
				return model.JobStatusStopped, counters, nil
			}
			pair, pairErr := s.harvestPair(ctx, exec, job.ID, company, adapter, cutoff, log)
			counters = counters.Add(pair)
			s.persistCounters(ctx, job.ID, counters, log)
			if isCancellation(ctx, pairErr) {
				return model.JobStatusStopped, counters, nil
			}
		}
	}

	// a stop that lands during the last pair still wins over completion
	if slot.cancel.Load() {
		return model.JobStatusStopped, counters, nil
	}

	log.Info("harvest finished all pairs",
		"companies", len(companies),
		"portals", len(s.adapters),
		"session_recreations", sessions.Recreations(),
	)
	return model.JobStatusCompleted, counters, nil
}

func (s *HarvestService) targets(ctx context.Context, target *model.Company) ([]*model.Company, error) {
	if target != nil {
		return []*model.Company{target}, nil
	}
	companies, err := s.companies.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	return companies, nil
}

// pairTally counts gateway outcomes for one pair. Emit is never called concurrently.
type pairTally struct {
	inserted  int
	duplicate int
	rejected  int
}

func (t *pairTally) counters() model.JobCounters {
	return model.JobCounters{
		TotalReviews: t.inserted + t.duplicate + t.rejected,
		SuccessCount: t.inserted,
	}
}

// harvestPair runs every attempt for one (company, portal) pair. The returned error is
// non-nil only for cancellation; pair failures are folded into the counters.
func (s *HarvestService) harvestPair(
	ctx context.Context,
	exec *RetryExecutor,
	jobID string,
	company *model.Company,
	adapter ports.SourceAdapter,
	cutoff *time.Time,
	log *slog.Logger,
) (model.JobCounters, error) {
	portal := adapter.Portal()
	log = log.With("company", company.Name, "portal", portal)

	sourceURL := company.SourceURL(portal)
	if adapter.RequiresURL() && sourceURL == "" {
		log.Info("pair skipped: no source url")
		s.errlog.Appendf(ctx, jobID, "%s/%s: skipped, no source url configured", company.Name, portal)
		s.metrics.Pair(metrics.PairOutcome{Portal: portal, Result: metrics.ResultSkipped})
		return model.JobCounters{}, nil
	}

	var tally pairTally
	emit := s.emitter(company.Name, portal, cutoff, &tally)
	attempts := 0
	start := s.now()

	err := exec.Attempt(ctx, AttemptTarget{JobID: jobID, Company: company.Name, Portal: portal},
		func(ctx context.Context, sess ports.Session) error {
			attempts++
			err := adapter.Extract(ctx, ports.ExtractRequest{
				Session:   sess,
				Company:   *company,
				SourceURL: sourceURL,
				Cutoff:    cutoff,
			}, emit)
			if ports.IsCleanStop(err) {
				return nil
			}
			return err
		})

	counters := tally.counters()
	outcome := metrics.PairOutcome{Portal: portal, Attempts: attempts, Duration: s.now().Sub(start), Err: err}

	switch {
	case err == nil:
		outcome.Result = metrics.ResultSuccess
		log.Info("pair completed",
			"attempts", attempts,
			"inserted", tally.inserted,
			"duplicate", tally.duplicate,
			"rejected", tally.rejected,
		)
		s.errlog.Appendf(ctx, jobID, "%s/%s: inserted %d, duplicate %d, rejected %d",
			company.Name, portal, tally.inserted, tally.duplicate, tally.rejected)
	case isCancellation(ctx, err):
		log.Info("pair interrupted by stop request", "attempts", attempts)
		return counters, err
	default:
		outcome.Result = metrics.ResultError
		counters.ErrorCount++
		log.Error("pair failed", "attempts", attempts, "error", err)
		s.errlog.Appendf(ctx, jobID, "%s/%s: %v", company.Name, portal, err)
	}
	s.metrics.Pair(outcome)
	return counters, nil
}

// emitter builds the per-pair EmitFunc. Records strictly older than cutoff end the pair
// with harvest.ErrCutoffReached before anything is written.
func (s *HarvestService) emitter(company string, portal model.Portal, cutoff *time.Time, tally *pairTally) ports.EmitFunc {
	return func(ctx context.Context, raw model.RawReview) (model.SaveOutcome, error) {
		raw.Company = company
		raw.Portal = portal

		rec, err := s.gateway.Normalize(raw)
		if err != nil {
			tally.rejected++
			return model.SaveOutcomeRejected, nil
		}
		if harvest.BeforeCutoff(rec.ReviewDate, cutoff) {
			return "", harvest.ErrCutoffReached
		}
		outcome, err := s.gateway.Store(ctx, &rec)
		if err != nil {
			return "", err
		}
		switch outcome {
		case model.SaveOutcomeInserted:
			tally.inserted++
		case model.SaveOutcomeDuplicate:
			tally.duplicate++
		}
		return outcome, nil
	}
}

func (s *HarvestService) persistCounters(ctx context.Context, jobID string, c model.JobCounters, log *slog.Logger) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	if _, err := s.jobs.UpdateCounters(writeCtx, jobID, c); err != nil {
		log.Warn("update job counters failed", "error", err)
	}
}

func (s *HarvestService) finish(ctx context.Context, job *model.Job, status model.JobStatus, counters model.JobCounters, cause error, log *slog.Logger) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	if cause != nil {
		log.Error("harvest job failed", "error", cause)
		s.errlog.Append(writeCtx, job.ID, cause.Error())
	}

	changed, err := s.jobs.Finish(writeCtx, job.ID, model.FinishJobRequest{Status: status, Counters: counters})
	switch {
	case err != nil:
		log.Error("finish job failed", "status", status, "error", err)
	case !changed:
		log.Warn("job was already terminal", "status", status)
	default:
		s.metrics.JobTransition(status, job.DateFilter)
		log.Info("harvest job finished",
			"status", status,
			"total_reviews", counters.TotalReviews,
			"success_count", counters.SuccessCount,
			"error_count", counters.ErrorCount,
		)
	}
	s.progress.Clear(writeCtx)
}

// isCancellation separates a stop request or a cancelled job context from request
// timeouts that merely wrap context.DeadlineExceeded.
func isCancellation(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, harvest.ErrJobCancelled) || ctx.Err() != nil
}
