// Package harvest holds the pure policy pieces of a harvest run: cutoff computation,
// retry policy, and fatal/transient error classification.
package harvest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/target/review-harvester/internal/domain/model"
)

var (
	// ErrJobCancelled is returned at a checkpoint once a stop was requested.
	ErrJobCancelled = errors.New("job cancelled")
	// ErrCutoffReached is returned by the emit function once a record is older than the cutoff.
	// Adapters stop producing records when they see it; it is not a failure.
	ErrCutoffReached = errors.New("cutoff date reached")
	// ErrSessionLost marks errors from an automation session that can no longer be used.
	ErrSessionLost = errors.New("automation session lost")
)

// Cutoff returns the earliest calendar day still in scope for a filter, or nil for "all".
func Cutoff(filter model.DateFilter, now time.Time) (*time.Time, error) {
	u := now.UTC()
	today := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)

	var days int
	switch filter {
	case model.DateFilterAll:
		return nil, nil
	case model.DateFilterWeek:
		days = 7
	case model.DateFilterTwoWeeks:
		days = 14
	default:
		return nil, fmt.Errorf("invalid date filter: %q", filter)
	}
	c := today.AddDate(0, 0, -days)
	return &c, nil
}

// BeforeCutoff reports whether a review day is strictly older than the cutoff.
func BeforeCutoff(day time.Time, cutoff *time.Time) bool {
	if cutoff == nil {
		return false
	}
	return day.Before(*cutoff)
}

// RetryPolicy bounds extraction attempts for one (target, portal) pair.
type RetryPolicy struct {
	MaxAttempts int
	// Backoff[i] is the pause after failed attempt i+1. Missing entries reuse the last one.
	Backoff []time.Duration
}

// DefaultRetryPolicy is three attempts with 2s then 5s pauses.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     []time.Duration{2 * time.Second, 5 * time.Second},
	}
}

// Normalize applies guardrails so a zero-value policy still makes one attempt.
func (p RetryPolicy) Normalize() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	out := make([]time.Duration, 0, len(p.Backoff))
	for _, d := range p.Backoff {
		out = append(out, max(d, 0))
	}
	p.Backoff = out
	return p
}

// BackoffAfter returns the pause after the given 1-based attempt.
// The final attempt never waits.
func (p RetryPolicy) BackoffAfter(attempt int) time.Duration {
	if attempt >= p.MaxAttempts || attempt < 1 || len(p.Backoff) == 0 {
		return 0
	}
	if attempt-1 < len(p.Backoff) {
		return p.Backoff[attempt-1]
	}
	return p.Backoff[len(p.Backoff)-1]
}

// fatalSignatures are message fragments emitted when a browser or driver session dies.
var fatalSignatures = []string{
	"session closed",
	"session not created",
	"invalid session id",
	"target closed",
	"page has been closed",
	"page destroyed",
	"execution context was destroyed",
	"browser has disconnected",
	"driver disconnected",
	"protocol error",
	"connection reset by peer",
	"use of closed network connection",
}

// IsFatal reports whether an extraction error means the session must be recreated.
// Context cancellation and cutoff/cancel sentinels are never fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSessionLost) {
		return true
	}
	if errors.Is(err, ErrJobCancelled) || errors.Is(err, ErrCutoffReached) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range fatalSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// Classification names the retry class of an error for logs and metrics.
func Classification(err error) string {
	switch {
	case err == nil:
		return "none"
	case IsFatal(err):
		return "fatal"
	default:
		return "transient"
	}
}
