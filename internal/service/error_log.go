package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/review-harvester/internal/core"
)

const errorLogWriteTimeout = 5 * time.Second

// ErrorLog appends timestamped entries to a job's bounded error log.
// Appends are best effort: a failing write is logged and swallowed.
type ErrorLog struct {
	jobs     core.JobRepository
	maxChars int
	now      func() time.Time
	logger   *slog.Logger
}

// NewErrorLog constructs an ErrorLog that keeps at most maxChars characters per job.
func NewErrorLog(jobs core.JobRepository, maxChars int, now func() time.Time, logger *slog.Logger) *ErrorLog {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorLog{jobs: jobs, maxChars: maxChars, now: now, logger: logger}
}

// FormatEntry renders a single log line.
func FormatEntry(at time.Time, message string) string {
	return fmt.Sprintf("[%s] %s\n", at.UTC().Format(time.RFC3339), message)
}

// Append records message against jobID. It runs even when ctx is already cancelled so
// stop and shutdown reasons still reach the job row.
func (l *ErrorLog) Append(ctx context.Context, jobID, message string) {
	if l == nil || l.jobs == nil || jobID == "" {
		return
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), errorLogWriteTimeout)
	defer cancel()

	entry := FormatEntry(l.now(), message)
	if err := l.jobs.AppendLog(writeCtx, jobID, entry, l.maxChars); err != nil {
		l.logger.Warn("append job log failed", "job_id", jobID, "error", err)
	}
}

// Appendf is Append with fmt formatting.
func (l *ErrorLog) Appendf(ctx context.Context, jobID, format string, args ...any) {
	l.Append(ctx, jobID, fmt.Sprintf(format, args...))
}
