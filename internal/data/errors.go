package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrJobNotFound is returned when a job is not found.
	ErrJobNotFound = errors.New("job not found")
	// ErrActiveJobExists is returned when the store already holds a pending or running job.
	ErrActiveJobExists = errors.New("another harvest job is already active")
	// ErrCompanyNotFound is returned when no company matches the requested name.
	ErrCompanyNotFound = errors.New("company not found")
)
