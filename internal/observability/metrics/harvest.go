// Package metrics emits the harvest metric set through a statsd.Sink.
package metrics

import (
	"time"

	"github.com/target/review-harvester/internal/domain/model"
	obserrors "github.com/target/review-harvester/internal/observability/errors"
	"github.com/target/review-harvester/internal/observability/statsd"
)

// Metric names.
const (
	JobTransition    = "harvest.job.transition"
	PairResult       = "harvest.pair.result"
	PairDuration     = "harvest.pair.duration"
	ReviewSaved      = "harvest.review.saved"
	SessionRecreated = "harvest.session.recreated"
)

// Pair results.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Harvest wraps a sink with typed emitters. A zero Harvest drops everything.
type Harvest struct {
	Sink statsd.Sink
}

// JobTransition counts a job status change.
func (h Harvest) JobTransition(to model.JobStatus, dateFilter model.DateFilter) {
	if h.Sink == nil {
		return
	}
	h.Sink.Count(JobTransition, 1, map[string]string{
		"status":      string(to),
		"date_filter": string(dateFilter),
	})
}

// PairOutcome captures one (company, portal) result.
type PairOutcome struct {
	Portal   model.Portal
	Result   string
	Attempts int
	Duration time.Duration
	Err      error
}

// Pair counts a (company, portal) outcome and records its duration.
// Company names are left out of tags to keep cardinality bounded.
func (h Harvest) Pair(in PairOutcome) {
	if h.Sink == nil {
		return
	}
	tags := map[string]string{
		"portal": string(in.Portal),
		"result": in.Result,
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}
	h.Sink.Count(PairResult, 1, tags)
	if in.Duration > 0 {
		h.Sink.Timing(PairDuration, in.Duration, map[string]string{"portal": string(in.Portal)})
	}
}

// ReviewSaved counts one gateway outcome.
func (h Harvest) ReviewSaved(portal model.Portal, outcome model.SaveOutcome) {
	if h.Sink == nil {
		return
	}
	h.Sink.Count(ReviewSaved, 1, map[string]string{
		"portal":  string(portal),
		"outcome": string(outcome),
	})
}

// SessionRecreated counts a session recreation attempt.
func (h Harvest) SessionRecreated(ok bool) {
	if h.Sink == nil {
		return
	}
	result := ResultSuccess
	if !ok {
		result = ResultError
	}
	h.Sink.Count(SessionRecreated, 1, map[string]string{"result": result})
}
