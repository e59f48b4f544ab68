package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/target/review-harvester/internal/data/pgxutil"
	"github.com/target/review-harvester/internal/domain/model"
	apperrors "github.com/target/review-harvester/internal/errors"
)

// insertReviewSQL relies on the reviews_dedup_key constraint; a conflicting row yields no RETURNING row.
const insertReviewSQL = `
	INSERT INTO reviews (
		portal, company_name, review_date, content, rating, nickname,
		visit_keyword, review_keyword, visit_type, emotion, revisit_flag,
		n_rating, n_emotion, n_char_count, title, additional_info
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9, $10, $11,
		$12, $13, $14, $15, $16
	)
	ON CONFLICT ON CONSTRAINT reviews_dedup_key DO NOTHING
	RETURNING id`

// ReviewRepo writes normalized reviews.
type ReviewRepo struct {
	DB *sql.DB
}

// NewReviewRepo creates a new ReviewRepo.
func NewReviewRepo(db *sql.DB) *ReviewRepo {
	return &ReviewRepo{DB: db}
}

// Insert writes rec unless its dedup key already exists. On insert rec.ID is populated.
func (r *ReviewRepo) Insert(ctx context.Context, rec *model.ReviewRecord) (bool, error) {
	if rec == nil {
		return false, errors.New("review record is required")
	}

	var id string
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, insertReviewSQL,
			rec.Portal,
			rec.CompanyName,
			rec.ReviewDate,
			rec.Content,
			rec.Rating,
			rec.Nickname,
			rec.VisitKeyword,
			rec.ReviewKeyword,
			rec.VisitType,
			rec.Emotion,
			rec.RevisitFlag,
			rec.NRating,
			rec.NEmotion,
			rec.NCharCount,
			rec.Title,
			rec.AdditionalInfo,
		).Scan(&id)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert review: %w", apperrors.MapDBError(err))
	}
	rec.ID = id
	return true, nil
}

// CountByCompany returns how many reviews are stored for a company, optionally per portal.
func (r *ReviewRepo) CountByCompany(ctx context.Context, company string, portal model.Portal) (int, error) {
	var n int
	query := `SELECT count(*) FROM reviews WHERE company_name = $1 AND ($2 = '' OR portal = $2)`
	if err := r.DB.QueryRowContext(ctx, query, company, string(portal)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count reviews: %w", err)
	}
	return n, nil
}
