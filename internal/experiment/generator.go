// Package experiment builds virtual populations and synthesizes the noisy
// suppression measurements of simple, within-subject and between-subject
// experiments.
package experiment

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"melpower/domain/core"
	"melpower/domain/curve"
	"melpower/domain/empirical"
	"melpower/domain/sim"
	"melpower/internal"
	"melpower/internal/sampling"
)

// Generator turns empirical tables into populations and measurement tables.
// It holds no mutable state; randomness comes from the *rand.Rand passed to
// each call.
type Generator struct {
	tables      *empirical.Tables
	sigma       *sampling.SigmaSampler
	maxAttempts int
	logger      *internal.Logger
}

// NewGenerator validates tables once so later calls can assume they are complete.
func NewGenerator(tables *empirical.Tables, maxAttempts int, logger *internal.Logger) (*Generator, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Generator{
		tables:      tables,
		sigma:       sampling.NewSigmaSampler(tables.SigmaFit),
		maxAttempts: maxAttempts,
		logger:      logger.With("experiment"),
	}, nil
}

// Params describes one simulated experiment.
type Params struct {
	N              int       `json:"n"`
	Lux            []float64 `json:"lux"`
	Thresh25       float64   `json:"thresh_25"`
	Thresh75       float64   `json:"thresh_75"`
	VariationLevel float64   `json:"individual_variation_level"`
	Multiplier     float64   `json:"treated_ed50_multiplier"`
}

// Validate rejects parameters before any sampling happens.
func (p Params) Validate() error {
	if p.N < 1 {
		return fmt.Errorf("%w: n=%d must be at least 1", core.ErrInvalidParameterRange, p.N)
	}
	if len(p.Lux) == 0 {
		return fmt.Errorf("%w: at least one lux level is required", core.ErrInvalidParameterRange)
	}
	for _, lux := range p.Lux {
		if !(lux > 0) {
			return fmt.Errorf("%w: lux=%g must be positive", core.ErrInvalidParameterRange, lux)
		}
	}
	if p.VariationLevel < 0 || p.VariationLevel > 1 {
		return core.NewRangeError("individual_variation_level", p.VariationLevel, 0, 1)
	}
	if !(p.Multiplier > 0) {
		return fmt.Errorf("%w: treated_ed50_multiplier=%g must be positive", core.ErrInvalidParameterRange, p.Multiplier)
	}
	return validateThresholds(p.Thresh25, p.Thresh75)
}

func validateThresholds(thresh25, thresh75 float64) error {
	if !(thresh25 > 0) || !(thresh75 > 0) {
		return fmt.Errorf("%w: thresholds must be positive (thresh_25=%g, thresh_75=%g)",
			core.ErrInvalidParameterRange, thresh25, thresh75)
	}
	return nil
}

// VirtualPopulation draws n plausible individuals.
func (g *Generator) VirtualPopulation(ctx context.Context, rng *rand.Rand, n int, thresh25, thresh75, weightP1, weightP2 float64) (sim.Population, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: n=%d must be at least 1", core.ErrInvalidParameterRange, n)
	}
	if weightP1 < 0 || weightP1 > 1 {
		return nil, core.NewRangeError("weight_p1", weightP1, 0, 1)
	}
	if weightP2 < 0 || weightP2 > 1 {
		return nil, core.NewRangeError("weight_p2", weightP2, 0, 1)
	}
	if err := validateThresholds(thresh25, thresh75); err != nil {
		return nil, err
	}

	sampler, err := sampling.NewSampler(g.tables, sampling.Weights{P1: weightP1, P2: weightP2}, g.maxAttempts, g.logger)
	if err != nil {
		return nil, err
	}

	pop := make(sim.Population, n)
	for i := range pop {
		c, err := sampler.ValidIndividual(ctx, rng, thresh25, thresh75)
		if err != nil {
			return nil, fmt.Errorf("individual %d of %d: %w", i+1, n, err)
		}
		pop[i] = c
	}
	g.logger.Debug("built population of %d (weights p1=%.2f p2=%.2f)", n, weightP1, weightP2)
	return pop, nil
}

// TreatedP1 shifts p1 by log10(multiplier), i.e. multiplies ed50.
func TreatedP1(multiplier, oldP1 float64) float64 {
	return math.Log10(multiplier) + oldP1
}

// ApplyTreatment shifts p1 and clamps negative results to zero, flagging
// the clamp in P1Truncated.
func ApplyTreatment(multiplier, p1 float64) sim.TreatmentRecord {
	rec := sim.TreatmentRecord{P1Natural: p1, P1Treated: TreatedP1(multiplier, p1), Treated: true}
	if rec.P1Treated < 0 {
		rec.P1Treated = 0
		rec.P1Truncated = true
	}
	return rec
}

func untreated(p1 float64) sim.TreatmentRecord {
	return sim.TreatmentRecord{P1Natural: p1, P1Treated: p1}
}

// measure synthesizes one occasion for one individual. P1Treated on each row
// is the location actually used to generate it.
func measure(rng *rand.Rand, id int, c sim.CurveParams, rec sim.TreatmentRecord, sigma float64, lux []float64, dst sim.Measurements) {
	for j, l := range lux {
		y := curve.Logistic2(l, rec.P1Treated, c.P2)
		dst[j] = sim.MeasurementRow{
			ID:          id,
			Lux:         l,
			Suppression: sampling.NoiseLogit(rng, y, sigma),
			Sigma:       sigma,
			P1:          c.P1,
			P2:          c.P2,
			P1Treated:   rec.P1Treated,
			P1Truncated: rec.P1Truncated,
			Treated:     rec.Treated,
		}
	}
}

func (g *Generator) population(ctx context.Context, rng *rand.Rand, p Params) (sim.Population, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	w := sampling.UniformWeights(p.VariationLevel)
	return g.VirtualPopulation(ctx, rng, p.N, p.Thresh25, p.Thresh75, w.P1, w.P2)
}

// VirtualExperiment measures every individual once with the multiplier
// applied to all of them. A multiplier of 1 leaves p1 unchanged.
// Row ids are 1-based; rows are ordered by individual, then lux.
func (g *Generator) VirtualExperiment(ctx context.Context, rng *rand.Rand, p Params) (sim.Measurements, error) {
	pop, err := g.population(ctx, rng, p)
	if err != nil {
		return nil, err
	}

	k := len(p.Lux)
	rows := make(sim.Measurements, len(pop)*k)
	for i, c := range pop {
		rec := ApplyTreatment(p.Multiplier, c.P1)
		rec.Treated = p.Multiplier != 1
		measure(rng, i+1, c, rec, g.sigma.Sample(rng), p.Lux, rows[i*k:(i+1)*k])
	}
	return rows, nil
}

// SplitIndex is the number of untreated individuals in a between-subject
// design of size n: n/2 rounded half to even.
func SplitIndex(n int) int {
	return int(math.RoundToEven(float64(n) / 2))
}

// VirtualTreatmentExperiment measures a treated and an untreated condition.
//
// Between subjects, individuals 1..SplitIndex(n) are measured untreated and
// the rest treated, once each. Within subjects, every individual is measured
// untreated and then treated with the same sigma; all untreated rows precede
// all treated rows.
func (g *Generator) VirtualTreatmentExperiment(ctx context.Context, rng *rand.Rand, p Params, between bool) (sim.Measurements, error) {
	pop, err := g.population(ctx, rng, p)
	if err != nil {
		return nil, err
	}

	k := len(p.Lux)
	if between {
		mid := SplitIndex(len(pop))
		rows := make(sim.Measurements, len(pop)*k)
		for i, c := range pop {
			rec := untreated(c.P1)
			if i >= mid {
				rec = ApplyTreatment(p.Multiplier, c.P1)
			}
			measure(rng, i+1, c, rec, g.sigma.Sample(rng), p.Lux, rows[i*k:(i+1)*k])
		}
		return rows, nil
	}

	n := len(pop)
	rows := make(sim.Measurements, 2*n*k)
	for i, c := range pop {
		sigma := g.sigma.Sample(rng)
		measure(rng, i+1, c, untreated(c.P1), sigma, p.Lux, rows[i*k:(i+1)*k])
		measure(rng, i+1, c, ApplyTreatment(p.Multiplier, c.P1), sigma, p.Lux, rows[(n+i)*k:(n+i+1)*k])
	}
	return rows, nil
}
