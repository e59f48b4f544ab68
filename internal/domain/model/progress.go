//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import "time"

// ProgressPhase is the step an extraction attempt is in.
type ProgressPhase string

const (
	ProgressPhaseStarting ProgressPhase = "starting"
	ProgressPhaseRunning  ProgressPhase = "running"
	ProgressPhaseRetrying ProgressPhase = "retrying"
	ProgressPhaseFailed   ProgressPhase = "failed"
	ProgressPhaseDone     ProgressPhase = "done"
)

// ExtractionProgress is the ephemeral snapshot of the current (target, portal) attempt.
// It is never persisted to the job store.
type ExtractionProgress struct {
	JobID       string        `json:"job_id"`
	Company     string        `json:"company,omitempty"`
	Portal      Portal        `json:"portal,omitempty"`
	Attempt     int           `json:"attempt"`
	MaxAttempts int           `json:"max_attempts"`
	Phase       ProgressPhase `json:"phase"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// HarvestStatus is the read model returned by the control surface status query.
type HarvestStatus struct {
	IsRunning  bool                `json:"is_running"`
	CurrentJob *Job                `json:"current_job,omitempty"`
	Progress   *ExtractionProgress `json:"progress,omitempty"`
}
