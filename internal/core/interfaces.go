// Package core defines the repository contracts (ports in hexagonal architecture) consumed by
// the harvest services. Implementations live in internal/data.
package core

import (
	"context"
	"time"

	"github.com/target/review-harvester/internal/domain/model"
)

// JobRepository persists harvest job rows.
//
// Every mutating method except Create is a no-op on terminal jobs and reports whether a row changed.
type JobRepository interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	MarkRunning(ctx context.Context, id string) (bool, error)
	// UpdateCounters overwrites the counters; callers only ever pass non-decreasing values.
	UpdateCounters(ctx context.Context, id string, c model.JobCounters) (bool, error)
	Finish(ctx context.Context, id string, req model.FinishJobRequest) (bool, error)
	// AppendLog appends entry to error_message keeping only the newest maxChars characters.
	AppendLog(ctx context.Context, id, entry string, maxChars int) error
	GetByID(ctx context.Context, id string) (*model.Job, error)
	List(ctx context.Context, limit int) ([]*model.Job, error)
	// Latest returns the most recently created job, or nil when there is none.
	Latest(ctx context.Context) (*model.Job, error)
	// Heartbeat bumps updated_at on a non-terminal job.
	Heartbeat(ctx context.Context, id string) (bool, error)
	// FailOrphaned marks pending/running jobs not updated since staleBefore failed and returns how many changed.
	FailOrphaned(ctx context.Context, staleBefore time.Time, entry string, maxChars int) (int, error)
}

// CompanyRepository reads harvest targets. Companies are managed elsewhere.
type CompanyRepository interface {
	// List returns every company in listing order (name ascending).
	List(ctx context.Context) ([]*model.Company, error)
	GetByName(ctx context.Context, name string) (*model.Company, error)
}

// ReviewRepository writes normalized reviews.
type ReviewRepository interface {
	// Insert writes the record unless its dedup key exists. inserted is false for duplicates.
	Insert(ctx context.Context, rec *model.ReviewRecord) (inserted bool, err error)
}

// ProgressStore mirrors the in-memory progress snapshot so other processes can read it.
type ProgressStore interface {
	Put(ctx context.Context, p *model.ExtractionProgress, ttl time.Duration) error
	Get(ctx context.Context) (*model.ExtractionProgress, error)
	Clear(ctx context.Context) error
}
