// Package scheduler runs the periodic harvest trigger.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/target/review-harvester/internal/domain/model"
	obserrors "github.com/target/review-harvester/internal/observability/errors"
	"github.com/target/review-harvester/internal/observability/statsd"
	"github.com/target/review-harvester/internal/service"
)

// Trigger results.
const (
	ResultStarted = "started"
	ResultBusy    = "busy"
	ResultError   = "error"
)

// Starter starts harvest jobs.
type Starter interface {
	Start(ctx context.Context, req service.StartRequest) (*service.StartResult, error)
}

// TriggerOptions holds the dependencies for creating a Trigger.
type TriggerOptions struct {
	Harvest    Starter
	Interval   time.Duration
	DateFilter model.DateFilter // Optional: defaults to week
	Logger     *slog.Logger
	Metrics    statsd.Sink
}

// Trigger starts a harvest job every interval unless one is already running.
type Trigger struct {
	harvest  Starter
	interval time.Duration
	filter   model.DateFilter
	logger   *slog.Logger
	metrics  statsd.Sink
}

// NewTrigger creates a trigger with the given options.
func NewTrigger(opts TriggerOptions) (*Trigger, error) {
	if opts.Harvest == nil {
		return nil, errors.New("harvest starter is required")
	}
	if opts.Interval <= 0 {
		return nil, errors.New("interval must be positive")
	}
	if opts.DateFilter == "" {
		opts.DateFilter = model.DateFilterWeek
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Trigger{
		harvest:  opts.Harvest,
		interval: opts.Interval,
		filter:   opts.DateFilter,
		logger:   opts.Logger.With("component", "harvest_trigger"),
		metrics:  opts.Metrics,
	}, nil
}

// Run fires at the configured interval until ctx is cancelled. A failed start is logged
// and retried at the next tick.
func (t *Trigger) Run(ctx context.Context) error {
	t.logger.Info("starting harvest trigger", "interval", t.interval, "date_filter", t.filter)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("harvest trigger stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			t.Fire(ctx)
		}
	}
}

// Fire starts one job and reports the outcome. A running job is not an error.
func (t *Trigger) Fire(ctx context.Context) string {
	res, err := t.harvest.Start(ctx, service.StartRequest{DateFilter: t.filter})
	result := ResultStarted
	switch {
	case errors.Is(err, service.ErrAlreadyRunning):
		result = ResultBusy
		t.logger.Info("scheduled harvest skipped; a job is already running")
	case err != nil:
		result = ResultError
		t.logger.Error("scheduled harvest failed to start", "error", err)
	default:
		t.logger.Info("scheduled harvest started", "job_id", res.JobID)
	}
	t.emit(result, err)
	return result
}

func (t *Trigger) emit(result string, err error) {
	if t.metrics == nil {
		return
	}
	tags := map[string]string{"result": result}
	if result == ResultError {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}
	t.metrics.Count("harvest.schedule.tick", 1, tags)
}
