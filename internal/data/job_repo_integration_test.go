package data

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/review-harvester/internal/domain/model"
	"github.com/target/review-harvester/internal/testutil"
)

func newTestJobRepo(t *testing.T) (*JobRepo, *FixedTimeProvider) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	tp := NewFixedTimeProvider(testutil.TestTime())
	return NewJobRepo(db, RepoConfig{TimeProvider: tp}), tp
}

func TestJobRepo_Integration_Lifecycle(t *testing.T) {
	repo, tp := newTestJobRepo(t)
	ctx := context.Background()

	job, err := repo.Create(ctx, &model.CreateJobRequest{
		DateFilter:    model.DateFilterWeek,
		CompanyFilter: testutil.StringPtr(" Acme "),
	})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, job.Status)
	assert.Equal(t, model.DateFilterWeek, job.DateFilter)
	require.NotNil(t, job.CompanyFilter)
	assert.Equal(t, "Acme", *job.CompanyFilter)
	assert.Nil(t, job.StartedAt)

	ok, err := repo.MarkRunning(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.UpdateCounters(ctx, job.ID, model.JobCounters{TotalReviews: 5, SuccessCount: 4})
	require.NoError(t, err)
	assert.True(t, ok)

	// Stale counter writes never move a counter backwards.
	_, err = repo.UpdateCounters(ctx, job.ID, model.JobCounters{TotalReviews: 1})
	require.NoError(t, err)

	tp.AddTime(time.Minute)
	ok, err = repo.Finish(ctx, job.ID, model.FinishJobRequest{
		Status:   model.JobStatusCompleted,
		Counters: model.JobCounters{TotalReviews: 6, SuccessCount: 4, ErrorCount: 1},
	})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.Equal(t, 6, got.TotalReviews)
	assert.Equal(t, 4, got.SuccessCount)
	assert.Equal(t, 1, got.ErrorCount)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.After(*got.StartedAt))
}

func TestJobRepo_Integration_TerminalJobsAreImmutable(t *testing.T) {
	repo, _ := newTestJobRepo(t)
	ctx := context.Background()

	job, err := repo.Create(ctx, &model.CreateJobRequest{DateFilter: model.DateFilterAll})
	require.NoError(t, err)
	_, err = repo.Finish(ctx, job.ID, model.FinishJobRequest{Status: model.JobStatusStopped})
	require.NoError(t, err)

	ok, err := repo.MarkRunning(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.UpdateCounters(ctx, job.ID, model.JobCounters{TotalReviews: 10})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Finish(ctx, job.ID, model.FinishJobRequest{Status: model.JobStatusCompleted})
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.AppendLog(ctx, job.ID, "late entry\n", 100))

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusStopped, got.Status)
	assert.Zero(t, got.TotalReviews)
	assert.Nil(t, got.ErrorMessage)
}

func TestJobRepo_Integration_SingleActiveJob(t *testing.T) {
	repo, _ := newTestJobRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, &model.CreateJobRequest{DateFilter: model.DateFilterAll})
	require.NoError(t, err)

	_, err = repo.Create(ctx, &model.CreateJobRequest{DateFilter: model.DateFilterWeek})
	require.ErrorIs(t, err, ErrActiveJobExists)
}

func TestJobRepo_Integration_AppendLogKeepsNewest(t *testing.T) {
	repo, _ := newTestJobRepo(t)
	ctx := context.Background()

	job, err := repo.Create(ctx, &model.CreateJobRequest{DateFilter: model.DateFilterAll})
	require.NoError(t, err)

	require.NoError(t, repo.AppendLog(ctx, job.ID, "first-entry|", 20))
	require.NoError(t, repo.AppendLog(ctx, job.ID, "second-entry|", 20))

	got, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ErrorMessage)
	assert.Len(t, []rune(*got.ErrorMessage), 20)
	assert.True(t, strings.HasSuffix(*got.ErrorMessage, "second-entry|"))
	assert.NotContains(t, *got.ErrorMessage, "first-e")
}

func TestJobRepo_Integration_ListLatestAndOrphans(t *testing.T) {
	repo, tp := newTestJobRepo(t)
	ctx := context.Background()

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	first, err := repo.Create(ctx, &model.CreateJobRequest{DateFilter: model.DateFilterAll})
	require.NoError(t, err)
	_, err = repo.Finish(ctx, first.ID, model.FinishJobRequest{Status: model.JobStatusCompleted})
	require.NoError(t, err)

	tp.AddTime(time.Hour)
	second, err := repo.Create(ctx, &model.CreateJobRequest{DateFilter: model.DateFilterTwoWeeks})
	require.NoError(t, err)
	_, err = repo.MarkRunning(ctx, second.ID)
	require.NoError(t, err)

	jobs, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, second.ID, jobs[0].ID)
	assert.Equal(t, first.ID, jobs[1].ID)

	latest, err = repo.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)

	// the running job was touched at the current clock, so a window ending earlier skips it
	n, err := repo.FailOrphaned(ctx, tp.Now().Add(-time.Minute), "interrupted by restart\n", 1000)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	tp.AddTime(10 * time.Minute)
	ok, err := repo.Heartbeat(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err = repo.FailOrphaned(ctx, tp.Now().Add(-time.Minute), "interrupted by restart\n", 1000)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "a fresh heartbeat keeps the job alive")

	tp.AddTime(5 * time.Minute)
	n, err = repo.FailOrphaned(ctx, tp.Now().Add(-time.Minute), "interrupted by restart\n", 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := repo.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "interrupted by restart")

	ok, err = repo.Heartbeat(ctx, second.ID)
	require.NoError(t, err)
	assert.False(t, ok, "terminal jobs do not heartbeat")
}

func TestJobRepo_Integration_GetByIDMissing(t *testing.T) {
	repo, _ := newTestJobRepo(t)

	_, err := repo.GetByID(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, ErrJobNotFound)

	_, err = repo.GetByID(context.Background(), "0b0b7f3e-8f7e-4a8e-9a6e-1f1f1f1f1f1f")
	require.ErrorIs(t, err, ErrJobNotFound)
}
