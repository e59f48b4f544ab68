package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/target/review-harvester/internal/data"
	"github.com/target/review-harvester/internal/domain/model"
)

// memJobRepo is an in-memory core.JobRepository with the same terminal-state guard as Postgres.
type memJobRepo struct {
	mu    sync.Mutex
	now   func() time.Time
	jobs  map[string]*model.Job
	order []string
	limit int
	beats int
}

func newMemJobRepo(now func() time.Time) *memJobRepo {
	return &memJobRepo{now: now, jobs: map[string]*model.Job{}}
}

func (r *memJobRepo) Create(_ context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if !j.Status.Terminal() {
			return nil, data.ErrActiveJobExists
		}
	}
	now := r.now()
	j := &model.Job{
		ID:            uuid.NewString(),
		Status:        model.JobStatusPending,
		DateFilter:    req.DateFilter,
		CompanyFilter: req.CompanyFilter,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.jobs[j.ID] = j
	r.order = append(r.order, j.ID)
	out := *j
	return &out, nil
}

func (r *memJobRepo) mutate(id string, fn func(j *model.Job)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Status.Terminal() {
		return false
	}
	fn(j)
	j.UpdatedAt = r.now()
	return true
}

func (r *memJobRepo) MarkRunning(_ context.Context, id string) (bool, error) {
	return r.mutate(id, func(j *model.Job) {
		now := r.now()
		j.Status = model.JobStatusRunning
		j.StartedAt = &now
	}), nil
}

func (r *memJobRepo) UpdateCounters(_ context.Context, id string, c model.JobCounters) (bool, error) {
	return r.mutate(id, func(j *model.Job) {
		j.TotalReviews = max(j.TotalReviews, c.TotalReviews)
		j.SuccessCount = max(j.SuccessCount, c.SuccessCount)
		j.ErrorCount = max(j.ErrorCount, c.ErrorCount)
	}), nil
}

func (r *memJobRepo) Finish(_ context.Context, id string, req model.FinishJobRequest) (bool, error) {
	if err := req.Validate(); err != nil {
		return false, err
	}
	return r.mutate(id, func(j *model.Job) {
		now := r.now()
		j.Status = req.Status
		j.CompletedAt = &now
		j.TotalReviews = max(j.TotalReviews, req.Counters.TotalReviews)
		j.SuccessCount = max(j.SuccessCount, req.Counters.SuccessCount)
		j.ErrorCount = max(j.ErrorCount, req.Counters.ErrorCount)
	}), nil
}

func (r *memJobRepo) AppendLog(_ context.Context, id, entry string, maxChars int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil
	}
	cur := ""
	if j.ErrorMessage != nil {
		cur = *j.ErrorMessage
	}
	runes := []rune(cur + entry)
	if len(runes) > maxChars {
		runes = runes[len(runes)-maxChars:]
	}
	s := string(runes)
	j.ErrorMessage = &s
	return nil
}

func (r *memJobRepo) GetByID(_ context.Context, id string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, data.ErrJobNotFound
	}
	out := *j
	return &out, nil
}

func (r *memJobRepo) List(_ context.Context, limit int) ([]*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limit = limit
	out := make([]*model.Job, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0 && len(out) < limit; i-- {
		j := *r.jobs[r.order[i]]
		out = append(out, &j)
	}
	return out, nil
}

func (r *memJobRepo) Latest(ctx context.Context) (*model.Job, error) {
	jobs, _ := r.List(ctx, 1)
	if len(jobs) == 0 {
		return nil, nil
	}
	return jobs[0], nil
}

func (r *memJobRepo) Heartbeat(_ context.Context, id string) (bool, error) {
	ok := r.mutate(id, func(*model.Job) {})
	r.mu.Lock()
	r.beats++
	r.mu.Unlock()
	return ok, nil
}

func (r *memJobRepo) FailOrphaned(_ context.Context, staleBefore time.Time, entry string, maxChars int) (int, error) {
	r.mu.Lock()
	var ids []string
	for id, j := range r.jobs {
		if !j.Status.Terminal() && j.UpdatedAt.Before(staleBefore) {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()
	for _, id := range ids {
		_ = r.AppendLog(context.Background(), id, entry, maxChars)
		r.mutate(id, func(j *model.Job) { j.Status = model.JobStatusFailed })
	}
	return len(ids), nil
}

// backdate rewinds updated_at as if the owning process stopped heartbeating d ago.
func (r *memJobRepo) backdate(id string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if j, ok := r.jobs[id]; ok {
		j.UpdatedAt = j.UpdatedAt.Add(-d)
	}
}

func (r *memJobRepo) heartbeats() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.beats
}

func (r *memJobRepo) lastLimit() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.limit
}

// memCompanyRepo serves a fixed company list.
type memCompanyRepo struct {
	companies []*model.Company
	err       error
}

func (r *memCompanyRepo) List(context.Context) ([]*model.Company, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := append([]*model.Company(nil), r.companies...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memCompanyRepo) GetByName(_ context.Context, name string) (*model.Company, error) {
	for _, c := range r.companies {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, data.ErrCompanyNotFound
}

// memReviewRepo enforces the dedup key like the reviews_dedup_key constraint.
type memReviewRepo struct {
	mu   sync.Mutex
	rows map[model.ReviewKey]model.ReviewRecord
}

func newMemReviewRepo() *memReviewRepo {
	return &memReviewRepo{rows: map[model.ReviewKey]model.ReviewRecord{}}
}

func (r *memReviewRepo) Insert(_ context.Context, rec *model.ReviewRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := rec.DedupKey()
	if _, ok := r.rows[key]; ok {
		return false, nil
	}
	rec.ID = uuid.NewString()
	r.rows[key] = *rec
	return true, nil
}

func (r *memReviewRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *memReviewRepo) Dates() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.rows))
	for k := range r.rows {
		out = append(out, k.ReviewDate)
	}
	sort.Strings(out)
	return out
}
