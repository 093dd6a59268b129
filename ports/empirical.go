package ports

import (
	"context"

	"melpower/domain/empirical"
)

// EmpiricalSource loads the precomputed posterior draw and estimate tables
type EmpiricalSource interface {
	Load(ctx context.Context) (*empirical.Tables, error)
}
