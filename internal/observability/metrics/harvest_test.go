package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/review-harvester/internal/domain/model"
	"github.com/target/review-harvester/internal/observability/statsd"
)

func TestHarvest_ZeroValueIsNoop(t *testing.T) {
	t.Parallel()

	var h Harvest
	h.JobTransition(model.JobStatusRunning, model.DateFilterAll)
	h.Pair(PairOutcome{Portal: "mapsite", Result: ResultSuccess})
	h.ReviewSaved("mapsite", model.SaveOutcomeInserted)
	h.SessionRecreated(true)
}

func TestHarvest_Pair(t *testing.T) {
	t.Parallel()

	rec := &statsd.Recorder{}
	h := Harvest{Sink: rec}

	h.Pair(PairOutcome{
		Portal:   "mapsite",
		Result:   ResultError,
		Attempts: 3,
		Duration: 1500 * time.Millisecond,
		Err:      errors.New("page has been closed"),
	})

	samples := rec.Samples()
	require.Len(t, samples, 2)
	assert.Equal(t, PairResult, samples[0].Name)
	assert.Equal(t, "session_lost", samples[0].Tags["error_class"])
	assert.Equal(t, PairDuration, samples[1].Name)
	assert.Equal(t, 1500*time.Millisecond, samples[1].Duration)
}

func TestHarvest_Counters(t *testing.T) {
	t.Parallel()

	rec := &statsd.Recorder{}
	h := Harvest{Sink: rec}

	h.JobTransition(model.JobStatusCompleted, model.DateFilterWeek)
	h.ReviewSaved("mapsite", model.SaveOutcomeDuplicate)
	h.SessionRecreated(false)

	assert.EqualValues(t, 1, rec.Sum(JobTransition, map[string]string{"status": "completed", "date_filter": "week"}))
	assert.EqualValues(t, 1, rec.Sum(ReviewSaved, map[string]string{"outcome": "duplicate"}))
	assert.EqualValues(t, 1, rec.Sum(SessionRecreated, map[string]string{"result": ResultError}))
}
