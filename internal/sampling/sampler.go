// Package sampling draws individual dose-response parameters and measurement
// noise from the empirical posterior tables.
package sampling

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

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultMaxAttempts bounds the plausibility rejection loop per individual.
const DefaultMaxAttempts = 10000

// Weights scale individual heterogeneity. 1 keeps the full empirical spread,
// 0 collapses every individual onto the central curve. Both must lie in [0,1];
// the sampler does not check this, callers at the experiment boundary do.
type Weights struct {
	P1 float64
	P2 float64
}

// UniformWeights applies the same variation level to p1 and p2.
func UniformWeights(level float64) Weights {
	return Weights{P1: level, P2: level}
}

// Sampler draws (p1, p2) pairs. It is immutable after construction and safe
// for concurrent use as long as each goroutine supplies its own *rand.Rand.
type Sampler struct {
	tables      *empirical.Tables
	weights     Weights
	centerP1    float64
	alpha       []float64
	beta        []float64
	maxAttempts int
	logger      *internal.Logger
}

// NewSampler precomputes the central p1 and the shrunk regression
// coefficients for the given weights.
func NewSampler(tables *empirical.Tables, weights Weights, maxAttempts int, logger *internal.Logger) (*Sampler, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}

	alpha, err := shrinkTowardMean(tables.Regression.Alpha, weights.P2)
	if err != nil {
		return nil, err
	}
	beta, err := shrinkTowardMean(tables.Regression.Beta, weights.P2)
	if err != nil {
		return nil, err
	}

	return &Sampler{
		tables:      tables,
		weights:     weights,
		centerP1:    tables.CDFInvFull(0.5),
		alpha:       alpha,
		beta:        beta,
		maxAttempts: maxAttempts,
		logger:      logger,
	}, nil
}

// shrinkTowardMean returns mean + w*(x - mean) for every x.
func shrinkTowardMean(xs []float64, w float64) ([]float64, error) {
	mean, err := stats.Mean(xs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMissingEmpiricalData, err)
	}
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = mean + w*(x-mean)
	}
	return out, nil
}

// CenterP1 is the median of the empirical p1 distribution.
func (s *Sampler) CenterP1() float64 { return s.centerP1 }

// SampleP1P2 draws n individuals without any plausibility filtering.
func (s *Sampler) SampleP1P2(rng *rand.Rand, n int) ([]sim.CurveParams, error) {
	out := make([]sim.CurveParams, n)
	for i := range out {
		c, err := s.sampleOne(rng)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func (s *Sampler) sampleOne(rng *rand.Rand) (sim.CurveParams, error) {
	reg := s.tables.Regression
	k := rng.IntN(reg.Len())

	raw := s.tables.CDFInvFull(rng.Float64())
	p1 := s.centerP1 + s.weights.P1*(raw-s.centerP1)

	scale := s.weights.P2 * (reg.Sigma0[k] + reg.Sigma1[k]*p1)
	logP2 := distuv.Normal{Mu: s.alpha[k] + s.beta[k]*p1, Sigma: scale, Src: rng}.Rand()
	p2 := math.Pow(10, logP2)
	if !(p2 > 0) || math.IsInf(p2, 0) {
		return sim.CurveParams{}, fmt.Errorf("%w: p2=%g from log10(p2)=%g", core.ErrNonPositiveShape, p2, logP2)
	}
	return sim.CurveParams{P1: p1, P2: p2}, nil
}

// PlausibleWindow returns the ed25 lower bound and ed75 upper bound implied by
// the thresholds and the empirical estimates.
func (s *Sampler) PlausibleWindow(thresh25, thresh75 float64) (lower, upper float64, err error) {
	return s.tables.Estimates.PlausibleBounds(thresh25, thresh75)
}

// ValidIndividual redraws single individuals until ed25 >= lower and
// ed75 <= upper. It gives up with core.ErrImplausibleDistribution after the
// configured number of attempts, and honours ctx cancellation between draws.
func (s *Sampler) ValidIndividual(ctx context.Context, rng *rand.Rand, thresh25, thresh75 float64) (sim.CurveParams, error) {
	lower, upper, err := s.PlausibleWindow(thresh25, thresh75)
	if err != nil {
		return sim.CurveParams{}, err
	}
	if lower >= upper {
		return sim.CurveParams{}, core.NewImplausibleError(0, lower, upper)
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return sim.CurveParams{}, err
		}
		c, err := s.sampleOne(rng)
		if err != nil {
			return sim.CurveParams{}, err
		}
		if curve.ED(0.25, c.P1, c.P2) >= lower && curve.ED(0.75, c.P1, c.P2) <= upper {
			if attempt > 1 {
				s.logger.Trace("accepted individual after %d attempts", attempt)
			}
			return c, nil
		}
	}

	s.logger.Warn("rejection sampling exhausted %d attempts (window [%.4g, %.4g], weights %+v)",
		s.maxAttempts, lower, upper, s.weights)
	return sim.CurveParams{}, core.NewImplausibleError(s.maxAttempts, lower, upper)
}
