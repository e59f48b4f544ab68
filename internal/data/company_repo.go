package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/target/review-harvester/internal/data/pgxutil"
	"github.com/target/review-harvester/internal/domain/model"
)

const companyColumns = `id, name, is_member, contact_name, contact_email, contact_phone,
  source_urls, created_at, updated_at`

// CompanyRepo reads harvest targets.
type CompanyRepo struct {
	DB *sql.DB
}

// NewCompanyRepo creates a new CompanyRepo.
func NewCompanyRepo(db *sql.DB) *CompanyRepo {
	return &CompanyRepo{DB: db}
}

// List returns all companies ordered by name.
func (r *CompanyRepo) List(ctx context.Context) ([]*model.Company, error) {
	var out []model.Company
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY name ASC, id ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Company])
		return err
	}); err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}

	res := make([]*model.Company, len(out))
	for i := range out {
		res[i] = &out[i]
	}
	return res, nil
}

// GetByName returns the company with the exact display name.
func (r *CompanyRepo) GetByName(ctx context.Context, name string) (*model.Company, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrCompanyNotFound
	}

	var out model.Company
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+companyColumns+` FROM companies WHERE name = $1`, name)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Company])
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCompanyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get company by name: %w", err)
	}
	return &out, nil
}
