package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/review-harvester/config"
	"github.com/target/review-harvester/internal/adapters/sources/sourcetest"
	"github.com/target/review-harvester/internal/domain/model"
	apperrors "github.com/target/review-harvester/internal/errors"
	"github.com/target/review-harvester/internal/observability/metrics"
	"github.com/target/review-harvester/internal/observability/statsd"
	"github.com/target/review-harvester/internal/ports"
)

var harvestNow = time.Date(2026, 1, 16, 9, 0, 0, 0, time.UTC)

type harvestFixture struct {
	jobs      *memJobRepo
	companies *memCompanyRepo
	reviews   *memReviewRepo
	factory   *sourcetest.Factory
	sleeper   *sleepRecorder
	metrics   *statsd.Recorder
	svc       *HarvestService
}

func newHarvestFixture(t *testing.T, companies []*model.Company, adapters ...*sourcetest.Adapter) *harvestFixture {
	t.Helper()
	now := func() time.Time { return harvestNow }
	f := &harvestFixture{
		jobs:      newMemJobRepo(now),
		companies: &memCompanyRepo{companies: companies},
		reviews:   newMemReviewRepo(),
		factory:   &sourcetest.Factory{},
		sleeper:   &sleepRecorder{},
		metrics:   &statsd.Recorder{},
	}
	list := make([]ports.SourceAdapter, 0, len(adapters))
	for _, a := range adapters {
		list = append(list, a)
	}
	svc, err := NewHarvestService(HarvestServiceOptions{
		Jobs:      f.jobs,
		Companies: f.companies,
		Reviews:   f.reviews,
		Sessions:  f.factory,
		Adapters:  list,
		Config: config.HarvestConfig{
			MaxAttempts:      3,
			Backoff:          []time.Duration{2 * time.Second, 5 * time.Second},
			ErrorLogMaxChars: 10000,
			DefaultListLimit: 20,
			MaxListLimit:     100,
		},
		Now:     now,
		Sleep:   f.sleeper.Sleep,
		Metrics: f.metrics,
	})
	require.NoError(t, err)
	f.svc = svc
	t.Cleanup(svc.Wait)
	return f
}

func company(name string, urls map[string]string) *model.Company {
	return &model.Company{ID: uuid.NewString(), Name: name, SourceURLs: urls}
}

func jobLog(j *model.Job) string {
	if j.ErrorMessage == nil {
		return ""
	}
	return *j.ErrorMessage
}

// blockingAdapter returns an adapter whose first call signals started and waits for release.
func blockingAdapter(portal model.Portal) (*sourcetest.Adapter, chan struct{}, chan struct{}) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	a := &sourcetest.Adapter{
		PortalID: portal,
		Records:  []model.RawReview{sourcetest.Review("kim", "2026-01-15")},
		OnCall: func(ctx context.Context, call int, _ ports.ExtractRequest) error {
			if call != 0 {
				return nil
			}
			once.Do(func() { close(started) })
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}
	return a, started, release
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for adapter to start")
	}
}

func TestNewHarvestService_RequiresDependencies(t *testing.T) {
	t.Parallel()
	_, err := NewHarvestService(HarvestServiceOptions{})
	require.Error(t, err)
}

func TestHarvestService_RunSync_IsIdempotent(t *testing.T) {
	t.Parallel()
	naver := &sourcetest.Adapter{
		PortalID: "naver",
		Records: []model.RawReview{
			sourcetest.Review("kim", "2026-01-15"),
			sourcetest.Review("lee", "2026.01.14"),
			sourcetest.Review("park", "2026/01/10"),
		},
	}
	f := newHarvestFixture(t, []*model.Company{company("Acme Dental", nil)}, naver)

	first, err := f.svc.RunSync(context.Background(), StartRequest{DateFilter: model.DateFilterAll})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, first.Status)
	assert.Equal(t, 3, first.TotalReviews)
	assert.Equal(t, 3, first.SuccessCount)
	assert.Equal(t, 0, first.ErrorCount)
	require.NotNil(t, first.CompletedAt)

	second, err := f.svc.RunSync(context.Background(), StartRequest{DateFilter: model.DateFilterAll})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, second.Status)
	assert.Equal(t, 3, second.TotalReviews)
	assert.Equal(t, 0, second.SuccessCount)
	assert.Equal(t, 3, f.reviews.Count())
	assert.Contains(t, jobLog(second), "Acme Dental/naver: inserted 0, duplicate 3, rejected 0")
}

func TestHarvestService_CutoffStopsEarly(t *testing.T) {
	t.Parallel()
	naver := &sourcetest.Adapter{
		PortalID: "naver",
		Records: []model.RawReview{
			sourcetest.Review("a", "2026-01-15"),
			sourcetest.Review("b", "2026-01-12"),
			sourcetest.Review("c", "2026-01-09"),
			sourcetest.Review("d", "2026-01-08"),
			sourcetest.Review("e", "2026-01-05"),
		},
	}
	f := newHarvestFixture(t, []*model.Company{company("Acme Dental", nil)}, naver)

	job, err := f.svc.RunSync(context.Background(), StartRequest{DateFilter: model.DateFilterWeek})
	require.NoError(t, err)

	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, []string{"2026-01-09", "2026-01-12", "2026-01-15"}, f.reviews.Dates())
	assert.Len(t, naver.Outcomes(), 3, "records after the first out-of-range one are never emitted")
	assert.Len(t, naver.Calls(), 1, "reaching the cutoff is not a failure")
	assert.Equal(t, 3, job.SuccessCount)
}

func TestHarvestService_RejectedRecordsDoNotStopThePair(t *testing.T) {
	t.Parallel()
	naver := &sourcetest.Adapter{
		PortalID: "naver",
		Records: []model.RawReview{
			sourcetest.Review("a", "2026-01-15"),
			sourcetest.Review("b", "yesterday"),
			{Date: "2026-01-14"},
			sourcetest.Review("c", "2026-01-13"),
		},
	}
	f := newHarvestFixture(t, []*model.Company{company("Acme Dental", nil)}, naver)

	job, err := f.svc.RunSync(context.Background(), StartRequest{DateFilter: model.DateFilterTwoWeeks})
	require.NoError(t, err)

	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, 4, job.TotalReviews)
	assert.Equal(t, 2, job.SuccessCount)
	assert.Equal(t, 0, job.ErrorCount)
	assert.Equal(t, []model.SaveOutcome{
		model.SaveOutcomeInserted,
		model.SaveOutcomeRejected,
		model.SaveOutcomeRejected,
		model.SaveOutcomeInserted,
	}, naver.Outcomes())
}

func TestHarvestService_PairFailuresAreIsolated(t *testing.T) {
	t.Parallel()
	boom := errors.New("review list did not render")
	p1 := &sourcetest.Adapter{PortalID: "p1", Records: []model.RawReview{sourcetest.Review("one", "2026-01-15")}}
	// company A uses calls 0-2 and fails every attempt, company B succeeds on call 3
	p2 := &sourcetest.Adapter{
		PortalID: "p2",
		Records:  []model.RawReview{sourcetest.Review("two", "2026-01-15")},
		Errors:   []error{boom, boom, boom},
	}
	p3 := &sourcetest.Adapter{PortalID: "p3", Records: []model.RawReview{sourcetest.Review("three", "2026-01-15")}}

	f := newHarvestFixture(t, []*model.Company{company("A", nil), company("B", nil)}, p1, p2, p3)

	job, err := f.svc.RunSync(context.Background(), StartRequest{})
	require.NoError(t, err)

	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, model.DateFilterAll, job.DateFilter)
	assert.Equal(t, 1, job.ErrorCount)
	assert.Equal(t, 5, job.SuccessCount)
	assert.Equal(t, 5, f.reviews.Count())
	assert.Len(t, p2.Calls(), 4)
	assert.Equal(t, []sourcetest.Call{{Company: "A", SessionID: 0}, {Company: "B", SessionID: 0}}, p3.Calls())
	assert.Contains(t, jobLog(job), "A/p2: failed after 3 attempts: review list did not render")
	assert.Equal(t, 1, strings.Count(jobLog(job), "A/p2:"), "a failed pair is logged once, not once per attempt")
	assert.Equal(t, int64(1), f.metrics.Sum(metrics.PairResult, map[string]string{"result": "error"}))
	assert.Equal(t, int64(5), f.metrics.Sum(metrics.PairResult, map[string]string{"result": "success"}))
	assert.Equal(t, []time.Duration{2 * time.Second, 5 * time.Second}, f.sleeper.Waits())
}

func TestHarvestService_RecreatesSessionAfterFatalErrors(t *testing.T) {
	t.Parallel()
	naver := &sourcetest.Adapter{
		PortalID:       "naver",
		Records:        []model.RawReview{sourcetest.Review("kim", "2026-01-15"), sourcetest.Review("lee", "2026-01-14")},
		Errors:         []error{fmt.Errorf("goto: %w", ports.ErrSessionLost), errors.New("Browser has disconnected!")},
		EmitBeforeFail: 1,
	}
	f := newHarvestFixture(t, []*model.Company{company("Acme Dental", nil)}, naver)

	job, err := f.svc.RunSync(context.Background(), StartRequest{DateFilter: model.DateFilterAll})
	require.NoError(t, err)

	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, 3, f.factory.Attempts(), "initial session plus two recreations")
	for _, s := range f.factory.Sessions() {
		assert.True(t, s.Closed(), "session %d left open", s.ID)
	}
	assert.Equal(t, []int{0, 1, 2}, []int{naver.Calls()[0].SessionID, naver.Calls()[1].SessionID, naver.Calls()[2].SessionID})
	// kim is inserted on the first failed attempt and seen again as a duplicate afterwards
	assert.Equal(t, 2, job.SuccessCount)
	assert.Equal(t, 4, job.TotalReviews)
	assert.Equal(t, int64(2), f.metrics.Sum(metrics.SessionRecreated, nil))
}

func TestHarvestService_StopIsCooperative(t *testing.T) {
	t.Parallel()
	p1, started, release := blockingAdapter("p1")
	p2 := &sourcetest.Adapter{PortalID: "p2", Records: []model.RawReview{sourcetest.Review("x", "2026-01-15")}}
	f := newHarvestFixture(t, []*model.Company{company("A", nil), company("B", nil)}, p1, p2)

	res, err := f.svc.Start(context.Background(), StartRequest{DateFilter: model.DateFilterAll})
	require.NoError(t, err)
	waitClosed(t, started)

	stop, err := f.svc.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, res.JobID, stop.JobID)

	again, err := f.svc.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stop already requested", again.Message)

	close(release)
	f.svc.Wait()

	job, err := f.svc.Get(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusStopped, job.Status)
	assert.Equal(t, 1, job.SuccessCount, "the in-flight attempt finishes before the stop is honoured")
	assert.Empty(t, p2.Calls())
	assert.Contains(t, jobLog(job), "stop requested")
	require.NotNil(t, job.CompletedAt)
}

func TestHarvestService_StopDuringLastPairEndsStopped(t *testing.T) {
	t.Parallel()
	p1, started, release := blockingAdapter("p1")
	f := newHarvestFixture(t, []*model.Company{company("A", nil)}, p1)

	res, err := f.svc.Start(context.Background(), StartRequest{DateFilter: model.DateFilterAll})
	require.NoError(t, err)
	waitClosed(t, started)

	_, err = f.svc.Stop(context.Background())
	require.NoError(t, err)
	close(release)
	f.svc.Wait()

	job, err := f.svc.Get(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusStopped, job.Status, "the only pair succeeding after the stop must not complete the job")
	assert.Equal(t, 1, job.SuccessCount)
	assert.Contains(t, jobLog(job), "stop requested")
	assert.Equal(t, int64(0), f.metrics.Sum(metrics.JobTransition, map[string]string{"status": "completed"}))
}

func TestHarvestService_SingleActiveJob(t *testing.T) {
	t.Parallel()
	p1, started, release := blockingAdapter("p1")
	f := newHarvestFixture(t, []*model.Company{company("A", nil)}, p1)

	_, err := f.svc.Stop(context.Background())
	require.ErrorIs(t, err, ErrNoActiveJob)

	_, err = f.svc.Start(context.Background(), StartRequest{DateFilter: model.DateFilterAll})
	require.NoError(t, err)
	waitClosed(t, started)

	_, err = f.svc.Start(context.Background(), StartRequest{DateFilter: model.DateFilterWeek})
	require.ErrorIs(t, err, ErrAlreadyRunning)
	assert.True(t, apperrors.IsConflict(err))

	close(release)
	f.svc.Wait()

	_, err = f.svc.Stop(context.Background())
	require.ErrorIs(t, err, ErrNoActiveJob)

	jobs, err := f.svc.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestHarvestService_ConcurrentStartsAdmitOne(t *testing.T) {
	t.Parallel()
	p1, started, release := blockingAdapter("p1")
	f := newHarvestFixture(t, []*model.Company{company("A", nil)}, p1)

	var ok, conflict atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Start(context.Background(), StartRequest{DateFilter: model.DateFilterAll})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrAlreadyRunning):
				conflict.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	waitClosed(t, started)
	close(release)
	f.svc.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(7), conflict.Load())
}

func TestHarvestService_Start_Validation(t *testing.T) {
	t.Parallel()
	f := newHarvestFixture(t, []*model.Company{company("A", nil)}, &sourcetest.Adapter{PortalID: "p1"})

	_, err := f.svc.Start(context.Background(), StartRequest{DateFilter: "month"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, "date_filter", apperrors.GetField(err))

	_, err = f.svc.Start(context.Background(), StartRequest{DateFilter: model.DateFilterAll, Company: "Nope"})
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	jobs, err := f.svc.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, jobs, "rejected starts never create a job row")

	// the slot was released
	job, err := f.svc.RunSync(context.Background(), StartRequest{DateFilter: model.DateFilterAll, Company: " A "})
	require.NoError(t, err)
	require.NotNil(t, job.CompanyFilter)
	assert.Equal(t, "A", *job.CompanyFilter)
}

func TestHarvestService_SkipsPortalWithoutSourceURL(t *testing.T) {
	t.Parallel()
	kakao := &sourcetest.Adapter{
		PortalID: "kakao",
		NeedsURL: true,
		Records:  []model.RawReview{sourcetest.Review("kim", "2026-01-15")},
	}
	f := newHarvestFixture(t, []*model.Company{
		company("A", nil),
		company("B", map[string]string{"kakao": "https://place.example.com/123"}),
	}, kakao)

	job, err := f.svc.RunSync(context.Background(), StartRequest{DateFilter: model.DateFilterAll})
	require.NoError(t, err)

	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, 0, job.ErrorCount)
	assert.Equal(t, []sourcetest.Call{{Company: "B", SourceURL: "https://place.example.com/123", SessionID: 0}}, kakao.Calls())
	assert.Contains(t, jobLog(job), "A/kakao: skipped, no source url configured")
	assert.Equal(t, int64(1), f.metrics.Sum(metrics.PairResult, map[string]string{"result": "skipped"}))
}

func TestHarvestService_FailsWhenSessionCannotOpen(t *testing.T) {
	t.Parallel()
	p1 := &sourcetest.Adapter{PortalID: "p1"}
	f := newHarvestFixture(t, []*model.Company{company("A", nil)}, p1)
	f.factory.Fail = map[int]bool{0: true}

	job, err := f.svc.RunSync(context.Background(), StartRequest{DateFilter: model.DateFilterAll})
	require.NoError(t, err)

	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Contains(t, jobLog(job), "automation session could not be created")
	assert.Empty(t, p1.Calls())
	assert.Equal(t, int64(1), f.metrics.Sum(metrics.JobTransition, map[string]string{"status": "failed"}))
}

func TestHarvestService_FailsWhenTargetsCannotBeRead(t *testing.T) {
	t.Parallel()
	f := newHarvestFixture(t, nil, &sourcetest.Adapter{PortalID: "p1"})
	f.companies.err = errors.New("relation \"companies\" does not exist")

	job, err := f.svc.RunSync(context.Background(), StartRequest{DateFilter: model.DateFilterAll})
	require.NoError(t, err)

	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Contains(t, jobLog(job), "list companies")
	assert.Equal(t, 0, f.factory.Attempts(), "no session is opened for a failed job")
}

func TestHarvestService_StatusReflectsRunningJob(t *testing.T) {
	t.Parallel()
	p1, started, release := blockingAdapter("p1")
	f := newHarvestFixture(t, []*model.Company{company("A", nil)}, p1)

	st, err := f.svc.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, st.IsRunning)
	assert.Nil(t, st.CurrentJob)

	res, err := f.svc.Start(context.Background(), StartRequest{DateFilter: model.DateFilterWeek})
	require.NoError(t, err)
	waitClosed(t, started)

	st, err = f.svc.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.IsRunning)
	require.NotNil(t, st.CurrentJob)
	assert.Equal(t, res.JobID, st.CurrentJob.ID)
	assert.Equal(t, model.JobStatusRunning, st.CurrentJob.Status)
	require.NotNil(t, st.Progress)
	assert.Equal(t, "A", st.Progress.Company)
	assert.Equal(t, model.Portal("p1"), st.Progress.Portal)
	assert.Equal(t, 1, st.Progress.Attempt)

	close(release)
	f.svc.Wait()

	st, err = f.svc.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, st.IsRunning)
	assert.Nil(t, st.Progress)
	assert.Equal(t, model.JobStatusCompleted, st.CurrentJob.Status)
}

func TestHarvestService_GetAndRecent(t *testing.T) {
	t.Parallel()
	f := newHarvestFixture(t, nil)

	_, err := f.svc.Get(context.Background(), "not-a-uuid")
	assert.True(t, apperrors.IsNotFound(err))

	_, err = f.svc.Get(context.Background(), uuid.NewString())
	assert.True(t, apperrors.IsNotFound(err))

	_, err = f.svc.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 20, f.jobs.lastLimit())

	_, err = f.svc.Recent(context.Background(), 5000)
	require.NoError(t, err)
	assert.Equal(t, 100, f.jobs.lastLimit())
}

func TestHarvestService_ShutdownWaitsForCheckpoint(t *testing.T) {
	t.Parallel()
	p1, started, release := blockingAdapter("p1")
	f := newHarvestFixture(t, []*model.Company{company("A", nil)}, p1)

	res, err := f.svc.Start(context.Background(), StartRequest{DateFilter: model.DateFilterAll})
	require.NoError(t, err)
	waitClosed(t, started)

	done := make(chan error, 1)
	go func() { done <- f.svc.Shutdown(context.Background()) }()
	require.Eventually(t, func() bool {
		job, err := f.jobs.GetByID(context.Background(), res.JobID)
		return err == nil && strings.Contains(jobLog(job), "service shutting down")
	}, 5*time.Second, 5*time.Millisecond)
	close(release)
	require.NoError(t, <-done)

	job, err := f.svc.Get(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusStopped, job.Status)
	assert.Contains(t, jobLog(job), "service shutting down")
}

func TestHarvestService_ShutdownDeadlineCancelsJob(t *testing.T) {
	t.Parallel()
	p1, started, _ := blockingAdapter("p1")
	f := newHarvestFixture(t, []*model.Company{company("A", nil)}, p1)

	res, err := f.svc.Start(context.Background(), StartRequest{DateFilter: model.DateFilterAll})
	require.NoError(t, err)
	waitClosed(t, started)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = f.svc.Shutdown(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	f.svc.Wait()

	job, err := f.svc.Get(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusStopped, job.Status)
}

func TestHarvestService_RecoverOrphans(t *testing.T) {
	t.Parallel()
	f := newHarvestFixture(t, nil)

	orphan, err := f.jobs.Create(context.Background(), &model.CreateJobRequest{DateFilter: model.DateFilterAll})
	require.NoError(t, err)

	n, err := f.svc.RecoverOrphans(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "a row touched just now is still owned")

	f.jobs.backdate(orphan.ID, 10*time.Minute)
	n, err = f.svc.RecoverOrphans(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	job, err := f.svc.Get(context.Background(), orphan.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Contains(t, jobLog(job), "interrupted by restart")
}

func TestHarvestService_RecoverOrphansSparesLiveJobOfAnotherProcess(t *testing.T) {
	t.Parallel()
	p1, started, release := blockingAdapter("p1")
	owner := newHarvestFixture(t, []*model.Company{company("A", nil)}, p1)

	// a second process sharing the same job table
	other, err := NewHarvestService(HarvestServiceOptions{
		Jobs:      owner.jobs,
		Companies: owner.companies,
		Reviews:   owner.reviews,
		Sessions:  &sourcetest.Factory{},
		Adapters:  []ports.SourceAdapter{&sourcetest.Adapter{PortalID: "p1"}},
		Now:       func() time.Time { return harvestNow },
		Sleep:     owner.sleeper.Sleep,
	})
	require.NoError(t, err)
	t.Cleanup(other.Wait)

	res, err := owner.svc.Start(context.Background(), StartRequest{DateFilter: model.DateFilterAll})
	require.NoError(t, err)
	waitClosed(t, started)

	n, err := other.RecoverOrphans(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = other.Start(context.Background(), StartRequest{DateFilter: model.DateFilterAll})
	require.ErrorIs(t, err, ErrAlreadyRunning)

	close(release)
	owner.svc.Wait()

	job, err := owner.svc.Get(context.Background(), res.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.NotContains(t, jobLog(job), "interrupted by restart")
}

func TestHarvestService_HeartbeatsWhileRunning(t *testing.T) {
	t.Parallel()
	p1, started, release := blockingAdapter("p1")
	jobs := newMemJobRepo(func() time.Time { return harvestNow })
	svc, err := NewHarvestService(HarvestServiceOptions{
		Jobs:      jobs,
		Companies: &memCompanyRepo{companies: []*model.Company{company("A", nil)}},
		Reviews:   newMemReviewRepo(),
		Sessions:  &sourcetest.Factory{},
		Adapters:  []ports.SourceAdapter{p1},
		Config:    config.HarvestConfig{HeartbeatInterval: 5 * time.Millisecond},
		Now:       func() time.Time { return harvestNow },
		Sleep:     (&sleepRecorder{}).Sleep,
	})
	require.NoError(t, err)
	t.Cleanup(svc.Wait)

	_, err = svc.Start(context.Background(), StartRequest{DateFilter: model.DateFilterAll})
	require.NoError(t, err)
	waitClosed(t, started)

	require.Eventually(t, func() bool { return jobs.heartbeats() >= 2 }, 5*time.Second, 5*time.Millisecond)

	close(release)
	svc.Wait()
	after := jobs.heartbeats()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, jobs.heartbeats(), "heartbeat stops with the job")
}

func TestHarvestService_Portals(t *testing.T) {
	t.Parallel()
	f := newHarvestFixture(t, nil, &sourcetest.Adapter{PortalID: "naver"}, &sourcetest.Adapter{PortalID: "kakao"})
	assert.Equal(t, []model.Portal{"naver", "kakao"}, f.svc.Portals())
}
