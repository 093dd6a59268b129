package testkit

import (
	"context"
	"sort"
	"sync"
	"time"

	"melpower/adapters/rng"
	"melpower/domain/core"
	"melpower/domain/empirical"
	"melpower/ports"
)

// TestKit bundles synthetic empirical tables with in-memory adapters so
// services can run without draw files or a database.
type TestKit struct {
	tables *empirical.Tables
	rng    *rng.SeededAdapter
	runs   *InMemoryRunRepository
}

// NewTestKit creates a kit backed by the default synthetic tables.
func NewTestKit() (*TestKit, error) {
	return NewTestKitWithConfig(DefaultEmpiricalConfig())
}

func NewTestKitWithConfig(cfg EmpiricalGeneratorConfig) (*TestKit, error) {
	tables, err := NewEmpiricalGenerator(cfg).Tables()
	if err != nil {
		return nil, err
	}
	return &TestKit{
		tables: tables,
		rng:    rng.NewSeededAdapter(),
		runs:   NewInMemoryRunRepository(),
	}, nil
}

func (t *TestKit) Tables() *empirical.Tables { return t.tables }

func (t *TestKit) RNG() ports.RNGPort { return t.rng }

func (t *TestKit) Runs() *InMemoryRunRepository { return t.runs }

// Source returns an EmpiricalSource serving the kit's tables.
func (t *TestKit) Source() ports.EmpiricalSource { return StaticSource{Tables: t.tables} }

// StaticSource serves fixed tables. A nil Err is returned with Tables.
type StaticSource struct {
	Tables *empirical.Tables
	Err    error
}

func (s StaticSource) Load(ctx context.Context) (*empirical.Tables, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Tables, nil
}

// InMemoryRunRepository implements RunRepository with in-memory storage
type InMemoryRunRepository struct {
	runs map[core.RunID]ports.PowerRun
	mu   sync.RWMutex
}

func NewInMemoryRunRepository() *InMemoryRunRepository {
	return &InMemoryRunRepository{runs: make(map[core.RunID]ports.PowerRun)}
}

func (r *InMemoryRunRepository) SaveRun(ctx context.Context, run *ports.PowerRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run.ID == "" {
		run.ID = core.NewRunID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	r.runs[run.ID] = *run
	return nil
}

func (r *InMemoryRunRepository) GetRun(ctx context.Context, id core.RunID) (*ports.PowerRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, core.ErrRunNotFound
	}
	return &run, nil
}

func (r *InMemoryRunRepository) ListRuns(ctx context.Context, limit int) ([]*ports.PowerRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ports.PowerRun, 0, len(r.runs))
	for _, run := range r.runs {
		run := run
		out = append(out, &run)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len reports how many runs are stored.
func (r *InMemoryRunRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.runs)
}

var _ ports.RunRepository = (*InMemoryRunRepository)(nil)
