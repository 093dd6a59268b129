// Package power estimates statistical power by repeating simulated
// comparisons in parallel.
package power

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"time"

	"melpower/domain/core"
	"melpower/domain/sim"
	"melpower/internal"
	"melpower/internal/comparison"
	"melpower/ports"

	"golang.org/x/sync/errgroup"
)

// Design is one comparison that can be repeated against a population panel.
type Design interface {
	Once(e *comparison.Engine, rng *rand.Rand, p *comparison.Panel) (sim.TestResult, error)
	SampleSize() int
	WithSampleSize(n int) Design
}

// LuxDesign compares suppression at two light levels.
type LuxDesign struct {
	Between bool    `json:"between"`
	Lux1    float64 `json:"lux_1"`
	Lux2    float64 `json:"lux_2"`
	N       int     `json:"n"`
}

// Once samples N individuals and tests lux2 against lux1.
func (d LuxDesign) Once(e *comparison.Engine, rng *rand.Rand, p *comparison.Panel) (sim.TestResult, error) {
	return e.LuxOnce(rng, p, d.Between, d.Lux1, d.Lux2, d.N)
}

// SampleSize returns N.
func (d LuxDesign) SampleSize() int { return d.N }

// WithSampleSize returns a copy of the design with N replaced.
func (d LuxDesign) WithSampleSize(n int) Design {
	d.N = n
	return d
}

// TreatmentDesign compares treated and untreated suppression at one light level.
type TreatmentDesign struct {
	Between         bool    `json:"between"`
	Lux             float64 `json:"lux"`
	N               int     `json:"n"`
	IsTreatedHigher bool    `json:"is_treated_higher"`
}

// Once samples N individuals and tests treated against untreated at Lux.
func (d TreatmentDesign) Once(e *comparison.Engine, rng *rand.Rand, p *comparison.Panel) (sim.TestResult, error) {
	return e.TreatmentOnce(rng, p, d.Between, d.Lux, d.N, d.IsTreatedHigher)
}

// SampleSize returns N.
func (d TreatmentDesign) SampleSize() int { return d.N }

// WithSampleSize returns a copy of the design with N replaced.
func (d TreatmentDesign) WithSampleSize(n int) Design {
	d.N = n
	return d
}

// Runner fans repetitions out over a bounded number of workers. Repetition i
// always draws from substream i of the seed, so results are identical for
// any worker count.
type Runner struct {
	engine  *comparison.Engine
	rng     ports.RNGPort
	workers int
	logger  *internal.Logger
}

// NewRunner creates a runner; workers < 1 means runtime.NumCPU().
func NewRunner(engine *comparison.Engine, rng ports.RNGPort, workers int, logger *internal.Logger) *Runner {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Runner{engine: engine, rng: rng, workers: workers, logger: logger.With("power")}
}

// Run repeats design nreps times against population.
func (r *Runner) Run(ctx context.Context, seed int64, population *comparison.Panel, design Design, nreps int) (sim.ResultSet, error) {
	if nreps < 1 {
		return nil, fmt.Errorf("%w: nreps=%d must be at least 1", core.ErrInvalidParameterRange, nreps)
	}

	start := time.Now()
	results := make(sim.ResultSet, nreps)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i := 0; i < nreps; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := design.Once(r.engine, r.rng.Substream(seed, i), population)
			if err != nil {
				return fmt.Errorf("repetition %d: %w", i+1, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger.Debug("%d repetitions of n=%d in %s", nreps, design.SampleSize(), time.Since(start))
	return results, nil
}

// Point is one entry of a power curve.
type Point struct {
	N           int     `json:"n"`
	Power       float64 `json:"power"`
	SuccessRate float64 `json:"success_rate"`
}

// SweepSampleSizes estimates power for each sample size in ns. Every point
// reuses the same seed so the curve compares designs on common random numbers.
func (r *Runner) SweepSampleSizes(ctx context.Context, seed int64, population *comparison.Panel, design Design, ns []int, nreps int, alpha float64) ([]Point, error) {
	points := make([]Point, len(ns))
	for i, n := range ns {
		rs, err := r.Run(ctx, seed, population, design.WithSampleSize(n), nreps)
		if err != nil {
			return nil, fmt.Errorf("sample size %d: %w", n, err)
		}
		points[i] = Point{N: n, Power: rs.Power(alpha), SuccessRate: rs.SuccessRate()}
		r.logger.Info("n=%d power=%.3f success=%.3f", n, points[i].Power, points[i].SuccessRate)
	}
	return points, nil
}
