package service

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/target/review-harvester/internal/core"
	"github.com/target/review-harvester/internal/domain/model"
)

const progressWriteTimeout = 2 * time.Second

// ProgressReporter holds the snapshot of the current extraction attempt.
// Readers never block writers. When a ProgressStore is configured the snapshot is
// mirrored to it so other processes can read it; mirror failures are only logged.
type ProgressReporter struct {
	cur    atomic.Pointer[model.ExtractionProgress]
	store  core.ProgressStore
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// NewProgressReporter constructs a ProgressReporter. store may be nil.
func NewProgressReporter(store core.ProgressStore, ttl time.Duration, now func() time.Time, logger *slog.Logger) *ProgressReporter {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressReporter{store: store, ttl: ttl, now: now, logger: logger}
}

// Set replaces the current snapshot.
func (p *ProgressReporter) Set(ctx context.Context, snap model.ExtractionProgress) {
	snap.UpdatedAt = p.now().UTC()
	p.cur.Store(&snap)
	if p.store == nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), progressWriteTimeout)
	defer cancel()
	if err := p.store.Put(writeCtx, &snap, p.ttl); err != nil {
		p.logger.Debug("mirror progress failed", "job_id", snap.JobID, "error", err)
	}
}

// Snapshot returns a copy of the current snapshot, or nil when idle.
func (p *ProgressReporter) Snapshot() *model.ExtractionProgress {
	cur := p.cur.Load()
	if cur == nil {
		return nil
	}
	out := *cur
	return &out
}

// Load returns the local snapshot, falling back to the mirror when this process is idle.
func (p *ProgressReporter) Load(ctx context.Context) *model.ExtractionProgress {
	if snap := p.Snapshot(); snap != nil {
		return snap
	}
	if p.store == nil {
		return nil
	}
	snap, err := p.store.Get(ctx)
	if err != nil {
		p.logger.Debug("read mirrored progress failed", "error", err)
		return nil
	}
	return snap
}

// Clear drops the snapshot.
func (p *ProgressReporter) Clear(ctx context.Context) {
	p.cur.Store(nil)
	if p.store == nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), progressWriteTimeout)
	defer cancel()
	if err := p.store.Clear(writeCtx); err != nil {
		p.logger.Debug("clear mirrored progress failed", "error", err)
	}
}
