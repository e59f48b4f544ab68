package data

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/review-harvester/internal/testutil"
)

func TestCompanyRepo_Integration_ListAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := NewCompanyRepo(db)
	ctx := context.Background()

	testutil.SeedCompany(t, db, "Zeta Clinic", nil)
	testutil.SeedCompany(t, db, "Acme Dental", map[string]string{"mapsite": "https://maps.example/acme"})

	companies, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, companies, 2)
	assert.Equal(t, "Acme Dental", companies[0].Name)
	assert.Equal(t, "Zeta Clinic", companies[1].Name)
	assert.Equal(t, "https://maps.example/acme", companies[0].SourceURL("mapsite"))
	assert.Empty(t, companies[1].SourceURL("mapsite"))

	got, err := repo.GetByName(ctx, " Acme Dental ")
	require.NoError(t, err)
	assert.Equal(t, companies[0].ID, got.ID)

	_, err = repo.GetByName(ctx, "Missing Co")
	require.ErrorIs(t, err, ErrCompanyNotFound)
}
