// Package ports defines the contracts (hexagonal ports) between the harvest orchestrator and
// the per-portal code that drives an automation session. Implementations live in internal/adapters.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/target/review-harvester/internal/domain/harvest"
	"github.com/target/review-harvester/internal/domain/model"
)

// ErrSessionLost marks a session that can no longer be used and must be recreated.
var ErrSessionLost = harvest.ErrSessionLost

// EmitFunc persists one candidate record as soon as it is produced.
// A non-nil error tells the adapter to stop producing records and return that error;
// harvest.ErrCutoffReached is the normal end of a date-filtered run.
type EmitFunc func(ctx context.Context, raw model.RawReview) (model.SaveOutcome, error)

// ExtractRequest carries everything an adapter needs for one (company, portal) pair.
type ExtractRequest struct {
	Session Session
	Company model.Company
	// SourceURL is the company's configured URI for this portal, empty for search-based portals.
	SourceURL string
	// Cutoff is the earliest calendar day still in scope, nil for no limit.
	Cutoff *time.Time
}

// SourceAdapter produces review candidates for one portal, newest first.
//
// Adapters must emit records in descending date order and stop as soon as emit returns an error.
// Records whose date cannot be parsed are still emitted; the gateway rejects them.
type SourceAdapter interface {
	Portal() model.Portal
	// RequiresURL reports whether the portal needs a per-company source URI.
	RequiresURL() bool
	Extract(ctx context.Context, req ExtractRequest, emit EmitFunc) error
}

// EmitAll streams an already collected slice through emit, so collect-style adapters
// share the same persistence path as streaming ones.
func EmitAll(ctx context.Context, records []model.RawReview, emit EmitFunc) error {
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := emit(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// IsCleanStop reports whether an Extract error only signals the cutoff was reached.
func IsCleanStop(err error) bool {
	return err == nil || errors.Is(err, harvest.ErrCutoffReached)
}
