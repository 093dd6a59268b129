package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"melpower/domain/core"
	apperrors "melpower/internal/errors"
	"melpower/ports"

	"github.com/jmoiron/sqlx"
)

// RunRepositoryImpl implements RunRepository for PostgreSQL
type RunRepositoryImpl struct {
	db *sqlx.DB
}

// NewRunRepository creates a new PostgreSQL run repository
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &RunRepositoryImpl{db: db}
}

const runColumns = `id, kind, between_subjects, sample_size, population_size, lux_1, lux_2, multiplier,
	variation_level, repetitions, alpha, seed, success_rate, power, truncated_fraction, created_at`

// SaveRun inserts a run, assigning an ID and timestamp when absent.
func (r *RunRepositoryImpl) SaveRun(ctx context.Context, run *ports.PowerRun) error {
	if run.ID == "" {
		run.ID = core.NewRunID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO power_runs (`+runColumns+`)
		VALUES (:id, :kind, :between_subjects, :sample_size, :population_size, :lux_1, :lux_2, :multiplier,
			:variation_level, :repetitions, :alpha, :seed, :success_rate, :power, :truncated_fraction, :created_at)
	`, run)
	if err != nil {
		return apperrors.DatabaseError("failed to save power run", err)
	}
	return nil
}

// GetRun retrieves a run by ID
func (r *RunRepositoryImpl) GetRun(ctx context.Context, id core.RunID) (*ports.PowerRun, error) {
	var run ports.PowerRun
	err := r.db.GetContext(ctx, &run, `SELECT `+runColumns+` FROM power_runs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrRunNotFound
	}
	if err != nil {
		return nil, apperrors.DatabaseError("failed to get power run", err)
	}
	return &run, nil
}

// ListRuns returns the most recent runs first, optionally limited
func (r *RunRepositoryImpl) ListRuns(ctx context.Context, limit int) ([]*ports.PowerRun, error) {
	query := `SELECT ` + runColumns + ` FROM power_runs ORDER BY created_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	var runs []*ports.PowerRun
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		return nil, apperrors.DatabaseError("failed to list power runs", err)
	}
	return runs, nil
}
