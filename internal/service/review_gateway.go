package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/review-harvester/internal/core"
	"github.com/target/review-harvester/internal/domain/model"
	"github.com/target/review-harvester/internal/domain/review"
	"github.com/target/review-harvester/internal/observability/metrics"
)

// ReviewGatewayOptions groups dependencies for ReviewGateway.
type ReviewGatewayOptions struct {
	Reviews core.ReviewRepository // Required: review store
	Now     func() time.Time      // Optional: clock used to reject future-dated records
	Logger  *slog.Logger          // Optional: structured logger
	Metrics metrics.Harvest       // Optional: metrics emitters
}

// ReviewGateway validates candidate records and writes them idempotently.
type ReviewGateway struct {
	reviews core.ReviewRepository
	now     func() time.Time
	logger  *slog.Logger
	metrics metrics.Harvest
}

// NewReviewGateway constructs a new ReviewGateway.
func NewReviewGateway(opts ReviewGatewayOptions) (*ReviewGateway, error) {
	if opts.Reviews == nil {
		return nil, errors.New("ReviewRepository is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewGateway{
		reviews: opts.Reviews,
		now:     now,
		logger:  logger.With("component", "review_gateway"),
		metrics: opts.Metrics,
	}, nil
}

// Save normalizes raw and stores it. Invalid records come back as SaveOutcomeRejected
// together with the validation error; only write failures return an empty outcome.
func (g *ReviewGateway) Save(ctx context.Context, raw model.RawReview) (model.SaveOutcome, error) {
	rec, err := g.Normalize(raw)
	if err != nil {
		return model.SaveOutcomeRejected, err
	}
	return g.Store(ctx, &rec)
}

// Normalize validates raw without touching the store. A rejection is counted and logged here.
func (g *ReviewGateway) Normalize(raw model.RawReview) (model.ReviewRecord, error) {
	rec, err := review.Normalize(raw, g.now())
	if err != nil {
		g.logger.Debug("review rejected",
			"company", raw.Company,
			"portal", raw.Portal,
			"date", raw.Date,
			"error", err,
		)
		g.metrics.ReviewSaved(raw.Portal, model.SaveOutcomeRejected)
		return model.ReviewRecord{}, err
	}
	return rec, nil
}

// Store writes an already normalized record. A dedup key collision is reported as
// SaveOutcomeDuplicate, never as an error.
func (g *ReviewGateway) Store(ctx context.Context, rec *model.ReviewRecord) (model.SaveOutcome, error) {
	inserted, err := g.reviews.Insert(ctx, rec)
	if err != nil {
		return "", fmt.Errorf("insert review: %w", err)
	}
	outcome := model.SaveOutcomeDuplicate
	if inserted {
		outcome = model.SaveOutcomeInserted
	}
	g.metrics.ReviewSaved(rec.Portal, outcome)
	return outcome, nil
}
