package ports

import (
	"context"
	"time"

	"melpower/domain/core"
)

// PowerRun is the persisted summary of one Monte Carlo power analysis
type PowerRun struct {
	ID                core.RunID `json:"id" db:"id"`
	Kind              string     `json:"kind" db:"kind"`
	Between           bool       `json:"between" db:"between_subjects"`
	SampleSize        int        `json:"sample_size" db:"sample_size"`
	PopulationSize    int        `json:"population_size" db:"population_size"`
	Lux1              float64    `json:"lux_1" db:"lux_1"`
	Lux2              float64    `json:"lux_2" db:"lux_2"`
	Multiplier        float64    `json:"multiplier" db:"multiplier"`
	VariationLevel    float64    `json:"variation_level" db:"variation_level"`
	Repetitions       int        `json:"repetitions" db:"repetitions"`
	Alpha             float64    `json:"alpha" db:"alpha"`
	Seed              int64      `json:"seed" db:"seed"`
	SuccessRate       float64    `json:"success_rate" db:"success_rate"`
	Power             float64    `json:"power" db:"power"`
	TruncatedFraction float64    `json:"truncated_fraction" db:"truncated_fraction"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}

// RunRepository persists power analysis runs
type RunRepository interface {
	SaveRun(ctx context.Context, run *PowerRun) error
	GetRun(ctx context.Context, id core.RunID) (*PowerRun, error)
	ListRuns(ctx context.Context, limit int) ([]*PowerRun, error)
}
