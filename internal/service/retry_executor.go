package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/review-harvester/internal/domain/harvest"
	"github.com/target/review-harvester/internal/domain/model"
	"github.com/target/review-harvester/internal/ports"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// SleepContext is the production SleepFunc.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// AttemptTarget identifies the (company, portal) pair being attempted.
type AttemptTarget struct {
	JobID   string
	Company string
	Portal  model.Portal
}

// AttemptError is returned when every attempt for a pair failed.
type AttemptError struct {
	Attempts int
	Err      error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *AttemptError) Unwrap() error { return e.Err }

// RetryExecutorOptions groups dependencies for RetryExecutor.
type RetryExecutorOptions struct {
	Policy    harvest.RetryPolicy // Optional: defaults to harvest.DefaultRetryPolicy
	Sessions  *SessionManager     // Required: shared session owner
	Progress  *ProgressReporter   // Optional: attempt progress
	Cancelled func() bool         // Optional: cooperative cancellation flag
	Sleep     SleepFunc           // Optional: defaults to SleepContext
	Logger    *slog.Logger        // Optional: structured logger
}

// RetryExecutor runs one extraction for a pair with bounded retries. Fatal errors
// trigger a session recreation before the next attempt.
type RetryExecutor struct {
	policy    harvest.RetryPolicy
	sessions  *SessionManager
	progress  *ProgressReporter
	cancelled func() bool
	sleep     SleepFunc
	logger    *slog.Logger
}

// NewRetryExecutor constructs a RetryExecutor.
func NewRetryExecutor(opts RetryExecutorOptions) (*RetryExecutor, error) {
	if opts.Sessions == nil {
		return nil, errors.New("SessionManager is required")
	}
	policy := opts.Policy
	if policy.MaxAttempts == 0 && policy.Backoff == nil {
		policy = harvest.DefaultRetryPolicy()
	}
	cancelled := opts.Cancelled
	if cancelled == nil {
		cancelled = func() bool { return false }
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryExecutor{
		policy:    policy.Normalize(),
		sessions:  opts.Sessions,
		progress:  opts.Progress,
		cancelled: cancelled,
		sleep:     sleep,
		logger:    logger,
	}, nil
}

// Policy returns the normalized retry policy.
func (r *RetryExecutor) Policy() harvest.RetryPolicy {
	return r.policy
}

// Attempt calls fn until it succeeds or the policy is exhausted.
//
// It returns nil on success, harvest.ErrJobCancelled when cancellation was observed
// before an attempt, the context error if ctx ended during a backoff, or an *AttemptError
// wrapping the last failure.
func (r *RetryExecutor) Attempt(ctx context.Context, target AttemptTarget, fn func(context.Context, ports.Session) error) error {
	log := r.logger.With("job_id", target.JobID, "company", target.Company, "portal", target.Portal)
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if r.cancelled() {
			return harvest.ErrJobCancelled
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		r.report(ctx, target, attempt, model.ProgressPhaseRunning)

		err := r.run(ctx, fn)
		if err == nil {
			r.report(ctx, target, attempt, model.ProgressPhaseDone)
			if attempt > 1 {
				log.Info("attempt succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		lastErr = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		fatal := harvest.IsFatal(err)
		log.Warn("attempt failed",
			"attempt", attempt,
			"max_attempts", r.policy.MaxAttempts,
			"classification", harvest.Classification(err),
			"error", err,
		)

		if fatal {
			if recErr := r.sessions.Recreate(ctx); recErr != nil {
				log.Error("session recreation failed", "attempt", attempt, "error", recErr)
			} else {
				log.Info("session recreated", "attempt", attempt)
			}
		}

		if attempt == r.policy.MaxAttempts {
			break
		}

		r.report(ctx, target, attempt, model.ProgressPhaseRetrying)
		if sleepErr := r.sleep(ctx, r.policy.BackoffAfter(attempt)); sleepErr != nil {
			return sleepErr
		}
	}

	r.report(ctx, target, r.policy.MaxAttempts, model.ProgressPhaseFailed)
	return &AttemptError{Attempts: r.policy.MaxAttempts, Err: lastErr}
}

func (r *RetryExecutor) run(ctx context.Context, fn func(context.Context, ports.Session) error) error {
	sess := r.sessions.Current()
	if sess == nil {
		return ErrNoSession
	}
	return fn(ctx, sess)
}

func (r *RetryExecutor) report(ctx context.Context, target AttemptTarget, attempt int, phase model.ProgressPhase) {
	if r.progress == nil {
		return
	}
	r.progress.Set(ctx, model.ExtractionProgress{
		JobID:       target.JobID,
		Company:     target.Company,
		Portal:      target.Portal,
		Attempt:     attempt,
		MaxAttempts: r.policy.MaxAttempts,
		Phase:       phase,
	})
}
