// Package comparison runs the hypothesis tests of simulated experiments and
// decides whether each one recovered the known direction of the true effect.
package comparison

import (
	"context"
	"fmt"
	"math/rand/v2"

	"melpower/domain/core"
	"melpower/domain/sim"
)

// Options tune the t-tests used by the Engine.
type Options struct {
	// EqualVariance selects the pooled Student test for independent samples
	// instead of Welch's test.
	EqualVariance bool
}

// Engine draws samples from a measurement table and tests them. Paired tests
// are used for within-subject designs and independent tests for
// between-subject designs.
type Engine struct {
	opts Options
}

// NewEngine creates a comparison engine
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

type luxKey struct {
	id  int
	lux float64
}

type occasionKey struct {
	id      int
	lux     float64
	treated bool
}

// Panel indexes a measurement table for repeated sampling.
type Panel struct {
	ids        []int
	untreated  []int
	treated    []int
	byLux      map[luxKey]float64
	byOccasion map[occasionKey]float64
}

// NewPanel indexes rows by individual, lux and treatment occasion.
func NewPanel(rows sim.Measurements) *Panel {
	p := &Panel{
		ids:        rows.IDs(),
		untreated:  rows.ByTreated(false).IDs(),
		treated:    rows.ByTreated(true).IDs(),
		byLux:      make(map[luxKey]float64, len(rows)),
		byOccasion: make(map[occasionKey]float64, len(rows)),
	}
	for _, r := range rows {
		p.byLux[luxKey{r.ID, r.Lux}] = r.Suppression
		p.byOccasion[occasionKey{r.ID, r.Lux, r.Treated}] = r.Suppression
	}
	return p
}

// Individuals returns the number of distinct individuals in the table.
func (p *Panel) Individuals() int { return len(p.ids) }

// sampleIDs draws k distinct ids uniformly without replacement.
func sampleIDs(rng *rand.Rand, ids []int, k int) ([]int, error) {
	if k > len(ids) {
		return nil, core.NewInsufficientPopulationError(len(ids), k)
	}
	pool := make([]int, len(ids))
	copy(pool, ids)
	for i := 0; i < k; i++ {
		j := i + rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k], nil
}

func (p *Panel) luxValues(ids []int, lux float64) ([]float64, error) {
	out := make([]float64, len(ids))
	for i, id := range ids {
		v, ok := p.byLux[luxKey{id, lux}]
		if !ok {
			return nil, fmt.Errorf("%w: lux %g not measured for individual %d", core.ErrInvalidParameterRange, lux, id)
		}
		out[i] = v
	}
	return out, nil
}

func (p *Panel) occasionValues(ids []int, lux float64, treated bool) ([]float64, error) {
	out := make([]float64, len(ids))
	for i, id := range ids {
		v, ok := p.byOccasion[occasionKey{id, lux, treated}]
		if !ok {
			return nil, fmt.Errorf("%w: lux %g not measured for individual %d (treated=%t)",
				core.ErrInvalidParameterRange, lux, id, treated)
		}
		out[i] = v
	}
	return out, nil
}

func validateSampleSize(n int) error {
	if n < 2 {
		return fmt.Errorf("%w: sample size n=%d must be at least 2", core.ErrInvalidParameterRange, n)
	}
	return nil
}

func validateReps(nreps int) error {
	if nreps < 1 {
		return fmt.Errorf("%w: nreps=%d must be at least 1", core.ErrInvalidParameterRange, nreps)
	}
	return nil
}

func (e *Engine) test(between bool, a, b []float64) (TTest, error) {
	if between {
		return IndependentTTest(a, b, e.opts.EqualVariance)
	}
	return PairedTTest(a, b)
}

// TreatmentOnce samples n individuals (n per arm between subjects) from a
// treatment experiment table and tests treated against untreated at lux.
func (e *Engine) TreatmentOnce(rng *rand.Rand, p *Panel, between bool, lux float64, n int, isTreatedHigher bool) (sim.TestResult, error) {
	if err := validateSampleSize(n); err != nil {
		return sim.TestResult{}, err
	}

	var untreatedIDs, treatedIDs []int
	var err error
	if between {
		if untreatedIDs, err = sampleIDs(rng, p.untreated, n); err != nil {
			return sim.TestResult{}, err
		}
		if treatedIDs, err = sampleIDs(rng, p.treated, n); err != nil {
			return sim.TestResult{}, err
		}
	} else {
		if untreatedIDs, err = sampleIDs(rng, p.untreated, n); err != nil {
			return sim.TestResult{}, err
		}
		treatedIDs = untreatedIDs
	}

	untreatedVals, err := p.occasionValues(untreatedIDs, lux, false)
	if err != nil {
		return sim.TestResult{}, err
	}
	treatedVals, err := p.occasionValues(treatedIDs, lux, true)
	if err != nil {
		return sim.TestResult{}, err
	}

	fit, err := e.test(between, untreatedVals, treatedVals)
	if err != nil {
		return sim.TestResult{}, err
	}
	return IsComparisonSuccessfulOneLux(untreatedVals, treatedVals, isTreatedHigher, fit)
}

// LuxOnce samples individuals from a single-occasion table and tests lux2
// against lux1. Within subjects the same n individuals provide both values;
// between subjects 2n distinct individuals are split into two groups.
func (e *Engine) LuxOnce(rng *rand.Rand, p *Panel, between bool, lux1, lux2 float64, n int) (sim.TestResult, error) {
	if err := validateSampleSize(n); err != nil {
		return sim.TestResult{}, err
	}

	var ids1, ids2 []int
	if between {
		ids, err := sampleIDs(rng, p.ids, 2*n)
		if err != nil {
			return sim.TestResult{}, err
		}
		ids1, ids2 = ids[:n], ids[n:]
	} else {
		ids, err := sampleIDs(rng, p.ids, n)
		if err != nil {
			return sim.TestResult{}, err
		}
		ids1, ids2 = ids, ids
	}

	vals1, err := p.luxValues(ids1, lux1)
	if err != nil {
		return sim.TestResult{}, err
	}
	vals2, err := p.luxValues(ids2, lux2)
	if err != nil {
		return sim.TestResult{}, err
	}

	fit, err := e.test(between, vals1, vals2)
	if err != nil {
		return sim.TestResult{}, err
	}
	return IsComparisonSuccessful(vals1, vals2, lux1, lux2, fit)
}

// ComparisonTestTreatmentSingle runs one treatment comparison and returns only
// the sign indicator. Use ComparisonTestTreatmentResult to keep the p-value.
func (e *Engine) ComparisonTestTreatmentSingle(rng *rand.Rand, between bool, lux float64, n int, population sim.Measurements, isTreatedHigher bool) (int, error) {
	res, err := e.ComparisonTestTreatmentResult(rng, between, lux, n, population, isTreatedHigher)
	return res.Result, err
}

// ComparisonTestTreatmentResult is ComparisonTestTreatmentSingle with the p-value.
func (e *Engine) ComparisonTestTreatmentResult(rng *rand.Rand, between bool, lux float64, n int, population sim.Measurements, isTreatedHigher bool) (sim.TestResult, error) {
	return e.TreatmentOnce(rng, NewPanel(population), between, lux, n, isTreatedHigher)
}

// ComparisonTest repeats a lux-vs-lux comparison nreps times, drawing a fresh
// sample each time from rng.
func (e *Engine) ComparisonTest(ctx context.Context, rng *rand.Rand, between bool, lux1, lux2 float64, n int, population sim.Measurements, nreps int) (sim.ResultSet, error) {
	if err := validateReps(nreps); err != nil {
		return nil, err
	}
	p := NewPanel(population)
	return repeat(ctx, nreps, func() (sim.TestResult, error) {
		return e.LuxOnce(rng, p, between, lux1, lux2, n)
	})
}

// ComparisonTestTreatment repeats a treatment comparison nreps times.
func (e *Engine) ComparisonTestTreatment(ctx context.Context, rng *rand.Rand, between bool, lux float64, n int, population sim.Measurements, isTreatedHigher bool, nreps int) (sim.ResultSet, error) {
	if err := validateReps(nreps); err != nil {
		return nil, err
	}
	p := NewPanel(population)
	return repeat(ctx, nreps, func() (sim.TestResult, error) {
		return e.TreatmentOnce(rng, p, between, lux, n, isTreatedHigher)
	})
}

func repeat(ctx context.Context, nreps int, once func() (sim.TestResult, error)) (sim.ResultSet, error) {
	results := make(sim.ResultSet, nreps)
	for i := range results {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := once()
		if err != nil {
			return nil, fmt.Errorf("repetition %d: %w", i+1, err)
		}
		results[i] = res
	}
	return results, nil
}
