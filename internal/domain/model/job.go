// Package model defines the core data types shared by the review harvester.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobStatus represents the lifecycle state of a harvest job.
type JobStatus string

const (
	// JobStatusPending indicates the job row exists but extraction has not begun.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the orchestrator is iterating targets and portals.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates every (target, portal) pair was processed.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates an unrecoverable job-level fault.
	JobStatusFailed JobStatus = "failed"
	// JobStatusStopped indicates a cancellation request was honored.
	JobStatusStopped JobStatus = "stopped"
)

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusStopped:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status is final. Terminal jobs are immutable.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusStopped
}

// DateFilter selects how far back a harvest reaches.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type DateFilter string

const (
	// DateFilterAll harvests every available review.
	DateFilterAll DateFilter = "all"
	// DateFilterWeek harvests reviews from the last 7 days.
	DateFilterWeek DateFilter = "week"
	// DateFilterTwoWeeks harvests reviews from the last 14 days.
	DateFilterTwoWeeks DateFilter = "twoWeeks"
)

// Valid returns true if the DateFilter is supported.
func (f DateFilter) Valid() bool {
	return f == DateFilterAll || f == DateFilterWeek || f == DateFilterTwoWeeks
}

// UnmarshalText implements encoding.TextUnmarshaler so filters can be parsed from env and JSON.
func (f *DateFilter) UnmarshalText(text []byte) error {
	parsed, err := ParseDateFilter(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseDateFilter normalizes user input into a DateFilter.
// Accepts "twoWeeks", "two_weeks" and "2weeks" as aliases for the two week window.
func ParseDateFilter(value string) (DateFilter, error) {
	v := strings.TrimSpace(value)
	switch strings.ToLower(v) {
	case "all":
		return DateFilterAll, nil
	case "week", "1week":
		return DateFilterWeek, nil
	case "twoweeks", "two_weeks", "2weeks":
		return DateFilterTwoWeeks, nil
	default:
		return "", fmt.Errorf("invalid date filter: %q (valid options: all, week, twoWeeks)", v)
	}
}

// Job is the auditable record of one harvest run.
type Job struct {
	ID            string     `json:"id"                       db:"id"`
	Status        JobStatus  `json:"status"                   db:"status"`
	DateFilter    DateFilter `json:"date_filter"              db:"date_filter"`
	CompanyFilter *string    `json:"company_filter,omitempty" db:"company_filter"`
	StartedAt     *time.Time `json:"started_at,omitempty"     db:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"   db:"completed_at"`
	TotalReviews  int        `json:"total_reviews"            db:"total_reviews"`
	SuccessCount  int        `json:"success_count"            db:"success_count"`
	ErrorCount    int        `json:"error_count"              db:"error_count"`
	ErrorMessage  *string    `json:"error_message,omitempty"  db:"error_message"`
	CreatedAt     time.Time  `json:"created_at"               db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"               db:"updated_at"`
}

// CreateJobRequest represents a request to create a new harvest job row.
type CreateJobRequest struct {
	DateFilter    DateFilter `json:"date_filter"`
	CompanyFilter *string    `json:"company_filter,omitempty"`
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if !r.DateFilter.Valid() {
		return errors.New("invalid date filter")
	}
	if r.CompanyFilter != nil && strings.TrimSpace(*r.CompanyFilter) == "" {
		return errors.New("company filter must not be blank")
	}
	return nil
}

// JobCounters are the monotonically non-decreasing tallies attached to a job.
type JobCounters struct {
	TotalReviews int `json:"total_reviews"`
	SuccessCount int `json:"success_count"`
	ErrorCount   int `json:"error_count"`
}

// Add returns the element-wise sum of two counter sets.
func (c JobCounters) Add(o JobCounters) JobCounters {
	return JobCounters{
		TotalReviews: c.TotalReviews + o.TotalReviews,
		SuccessCount: c.SuccessCount + o.SuccessCount,
		ErrorCount:   c.ErrorCount + o.ErrorCount,
	}
}

// FinishJobRequest carries the terminal transition of a job.
type FinishJobRequest struct {
	Status   JobStatus
	Counters JobCounters
}

// Validate ensures the requested status is terminal.
func (r FinishJobRequest) Validate() error {
	if !r.Status.Terminal() {
		return fmt.Errorf("status %q is not terminal", r.Status)
	}
	return nil
}
