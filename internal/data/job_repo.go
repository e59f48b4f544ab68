package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/target/review-harvester/internal/data/pgxutil"
	"github.com/target/review-harvester/internal/domain/model"
	apperrors "github.com/target/review-harvester/internal/errors"
)

const (
	defaultJobListLimit = 20
	maxJobListLimit     = 500
)

// RepoConfig holds configuration options for the job repository.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRepo provides database operations for harvest jobs.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JobRepo{
		DB:           db,
		timeProvider: tp,
		logger:       logger.With("component", "job_repo"),
	}
}

const jobColumns = `id, status, date_filter, company_filter, started_at, completed_at,
  total_reviews, success_count, error_count, error_message, created_at, updated_at`

// terminalGuard keeps terminal jobs immutable.
const terminalGuard = `status NOT IN ('completed', 'failed', 'stopped')`

// Create inserts a pending job row.
func (r *JobRepo) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var filter *string
	if req.CompanyFilter != nil {
		v := strings.TrimSpace(*req.CompanyFilter)
		filter = &v
	}
	now := r.timeProvider.Now().UTC()

	job, err := r.queryOne(ctx, `
		INSERT INTO jobs (status, date_filter, company_filter, created_at, updated_at)
		VALUES ('pending', $1, $2, $3, $3)
		RETURNING `+jobColumns,
		req.DateFilter, filter, now,
	)
	if err != nil {
		if apperrors.IsPgCode(err, pgerrcode.UniqueViolation) {
			return nil, ErrActiveJobExists
		}
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

// MarkRunning moves a pending job to running and stamps started_at.
func (r *JobRepo) MarkRunning(ctx context.Context, id string) (bool, error) {
	now := r.timeProvider.Now().UTC()
	return r.exec(ctx, "mark job running", `
		UPDATE jobs
		SET status = 'running', started_at = COALESCE(started_at, $2), updated_at = $2
		WHERE id = $1 AND status = 'pending'`,
		id, now,
	)
}

// UpdateCounters writes the running tallies of a non-terminal job.
// GREATEST keeps counters monotonic even if a stale value is written.
func (r *JobRepo) UpdateCounters(ctx context.Context, id string, c model.JobCounters) (bool, error) {
	now := r.timeProvider.Now().UTC()
	return r.exec(ctx, "update job counters", `
		UPDATE jobs
		SET total_reviews = GREATEST(total_reviews, $2),
		    success_count = GREATEST(success_count, $3),
		    error_count = GREATEST(error_count, $4),
		    updated_at = $5
		WHERE id = $1 AND `+terminalGuard,
		id, c.TotalReviews, c.SuccessCount, c.ErrorCount, now,
	)
}

// Finish moves a job into a terminal status, stamping completed_at and the final counters.
func (r *JobRepo) Finish(ctx context.Context, id string, req model.FinishJobRequest) (bool, error) {
	if err := req.Validate(); err != nil {
		return false, err
	}
	now := r.timeProvider.Now().UTC()
	return r.exec(ctx, "finish job", `
		UPDATE jobs
		SET status = $2,
		    total_reviews = GREATEST(total_reviews, $3),
		    success_count = GREATEST(success_count, $4),
		    error_count = GREATEST(error_count, $5),
		    started_at = COALESCE(started_at, $6),
		    completed_at = $6,
		    updated_at = $6
		WHERE id = $1 AND `+terminalGuard,
		id, req.Status, req.Counters.TotalReviews, req.Counters.SuccessCount, req.Counters.ErrorCount, now,
	)
}

// AppendLog appends entry to the job's bounded log, dropping the oldest characters beyond maxChars.
func (r *JobRepo) AppendLog(ctx context.Context, id, entry string, maxChars int) error {
	if maxChars <= 0 {
		return errors.New("maxChars must be positive")
	}
	_, err := r.exec(ctx, "append job log", `
		UPDATE jobs
		SET error_message = right(COALESCE(error_message, '') || $2, $3),
		    updated_at = $4
		WHERE id = $1 AND `+terminalGuard,
		id, entry, maxChars, r.timeProvider.Now().UTC(),
	)
	return err
}

// GetByID returns a job by id, or ErrJobNotFound.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrJobNotFound
	}
	job, err := r.queryOne(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns the most recent jobs, newest first.
func (r *JobRepo) List(ctx context.Context, limit int) ([]*model.Job, error) {
	if limit <= 0 {
		limit = defaultJobListLimit
	}
	limit = min(limit, maxJobListLimit)

	var out []model.Job
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Job])
		return err
	}); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	res := make([]*model.Job, len(out))
	for i := range out {
		res[i] = &out[i]
	}
	return res, nil
}

// Latest returns the newest job or nil when no job exists.
func (r *JobRepo) Latest(ctx context.Context) (*model.Job, error) {
	jobs, err := r.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return jobs[0], nil
}

// Heartbeat bumps updated_at on a non-terminal job so recovery in other processes leaves it alone.
func (r *JobRepo) Heartbeat(ctx context.Context, id string) (bool, error) {
	now := r.timeProvider.Now().UTC()
	return r.exec(ctx, "job heartbeat", `
		UPDATE jobs
		SET updated_at = $2
		WHERE id = $1 AND `+terminalGuard,
		id, now,
	)
}

// FailOrphaned fails pending or running jobs whose row has not changed since staleBefore.
// Jobs still heartbeating from a live process are skipped.
func (r *JobRepo) FailOrphaned(ctx context.Context, staleBefore time.Time, entry string, maxChars int) (int, error) {
	if maxChars <= 0 {
		return 0, errors.New("maxChars must be positive")
	}
	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'failed',
		    completed_at = $1,
		    updated_at = $1,
		    error_message = right(COALESCE(error_message, '') || $2, $3)
		WHERE status IN ('pending', 'running') AND updated_at < $4`,
		now, entry, maxChars, staleBefore.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("fail orphaned jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("fail orphaned jobs rows affected: %w", err)
	}
	if n > 0 {
		r.logger.WarnContext(ctx, "failed orphaned jobs", "count", n)
	}
	return int(n), nil
}

func (r *JobRepo) queryOne(ctx context.Context, query string, args ...any) (*model.Job, error) {
	var out model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Job])
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *JobRepo) exec(ctx context.Context, op, query string, args ...any) (bool, error) {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s rows affected: %w", op, err)
	}
	return n > 0, nil
}
