package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"melpower/adapters/postgres/migrations"
	"melpower/domain/core"
	"melpower/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires a disposable database in TEST_DATABASE_URL.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.NewMigrator(db.DB, nil).Up(context.Background()))
	return db
}

func TestRunRepositoryRoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewRunRepository(db)
	ctx := context.Background()

	run := &ports.PowerRun{
		Kind: "lux", Between: true, SampleSize: 20, PopulationSize: 200,
		Lux1: 10, Lux2: 100, Multiplier: 1, VariationLevel: 1,
		Repetitions: 100, Alpha: 0.05, Seed: 42, SuccessRate: 0.93, Power: 0.81,
	}
	require.NoError(t, repo.SaveRun(ctx, run))
	require.NotEmpty(t, run.ID)

	got, err := repo.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Kind, got.Kind)
	assert.Equal(t, run.Power, got.Power)
	assert.True(t, got.Between)

	runs, err := repo.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestGetRunNotFound(t *testing.T) {
	repo := NewRunRepository(openTestDB(t))
	_, err := repo.GetRun(context.Background(), core.NewRunID())
	assert.True(t, errors.Is(err, core.ErrRunNotFound))
}
