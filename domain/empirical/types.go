// Package empirical describes the precomputed posterior draws and estimate
// tables that parameterize virtual populations. The tables are produced
// offline and are treated as immutable once loaded.
package empirical

import (
	"fmt"
	"math"
	"sort"

	"melpower/domain/core"

	"github.com/montanaflynn/stats"
)

// InverseCDF maps a probability in [0,1] to an empirical p1 quantile.
type InverseCDF func(p float64) float64

// NewEmpiricalInverseCDF builds a linearly interpolated quantile function over
// the given p1 samples. Quantile p sits at rank (n-1)p of the sorted samples,
// so the median of an even-length sample is the mean of the middle pair.
func NewEmpiricalInverseCDF(samples []float64) (InverseCDF, error) {
	if len(samples) == 0 {
		return nil, core.NewMissingDataError("p1 samples")
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)
	return func(p float64) float64 {
		switch {
		case p <= 0:
			return sorted[0]
		case p >= 1:
			return sorted[len(sorted)-1]
		}
		return interpolate(sorted, p)
	}, nil
}

func interpolate(sorted []float64, p float64) float64 {
	h := float64(len(sorted)-1) * p
	lo := int(math.Floor(h))
	hi := int(math.Ceil(h))
	return sorted[lo] + (h-float64(lo))*(sorted[hi]-sorted[lo])
}

// RegressionDraws are posterior draws of the log10(p2)|p1 regression:
// log10(p2) ~ Normal(Alpha + Beta*p1, Sigma0 + Sigma1*p1).
type RegressionDraws struct {
	Alpha  []float64 `json:"alpha"`
	Beta   []float64 `json:"beta"`
	Sigma0 []float64 `json:"sigma0"`
	Sigma1 []float64 `json:"sigma1"`
}

// Len returns the number of draws.
func (d RegressionDraws) Len() int { return len(d.Alpha) }

func (d RegressionDraws) validate() error {
	n := len(d.Alpha)
	if n == 0 {
		return core.NewMissingDataError("p1_p2_regression_draws")
	}
	if len(d.Beta) != n || len(d.Sigma0) != n || len(d.Sigma1) != n {
		return fmt.Errorf("%w: p1_p2_regression_draws columns have unequal lengths (%d, %d, %d, %d)",
			core.ErrMissingEmpiricalData, n, len(d.Beta), len(d.Sigma0), len(d.Sigma1))
	}
	return nil
}

// Estimates are per-subject effective dose estimates from the source studies.
type Estimates struct {
	ED25 []float64 `json:"ed_25"`
	ED75 []float64 `json:"ed_75"`
}

// PlausibleBounds returns thresh25*min(ED25) and thresh75*max(ED75).
func (e Estimates) PlausibleBounds(thresh25, thresh75 float64) (lower, upper float64, err error) {
	minED25, err := stats.Min(e.ED25)
	if err != nil {
		return 0, 0, core.NewMissingDataError("estimates.ed_25")
	}
	maxED75, err := stats.Max(e.ED75)
	if err != nil {
		return 0, 0, core.NewMissingDataError("estimates.ed_75")
	}
	return thresh25 * minED25, thresh75 * maxED75, nil
}

// SigmaFitDraws are posterior draws of the gamma (shape A, rate B)
// distribution of per-individual logit-scale noise.
type SigmaFitDraws struct {
	A []float64 `json:"a"`
	B []float64 `json:"b"`
}

func (d SigmaFitDraws) Len() int { return len(d.A) }

func (d SigmaFitDraws) validate() error {
	if len(d.A) == 0 {
		return core.NewMissingDataError("sigma_fit_draws")
	}
	if len(d.B) != len(d.A) {
		return fmt.Errorf("%w: sigma_fit_draws columns have unequal lengths (%d, %d)",
			core.ErrMissingEmpiricalData, len(d.A), len(d.B))
	}
	for i := range d.A {
		if d.A[i] <= 0 || d.B[i] <= 0 {
			return fmt.Errorf("%w: sigma_fit_draws row %d has non-positive gamma parameter", core.ErrMissingEmpiricalData, i)
		}
	}
	return nil
}

// Tables bundles every empirical input consumed by the simulation core.
type Tables struct {
	CDFInvFull InverseCDF
	Regression RegressionDraws
	Estimates  Estimates
	SigmaFit   SigmaFitDraws
}

// NewTables builds Tables from raw p1 samples and validates the result.
func NewTables(p1Samples []float64, reg RegressionDraws, est Estimates, sigma SigmaFitDraws) (*Tables, error) {
	inv, err := NewEmpiricalInverseCDF(p1Samples)
	if err != nil {
		return nil, err
	}
	t := &Tables{CDFInvFull: inv, Regression: reg, Estimates: est, SigmaFit: sigma}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate fails with core.ErrMissingEmpiricalData if any table is absent.
func (t *Tables) Validate() error {
	if t == nil {
		return core.NewMissingDataError("empirical tables")
	}
	if t.CDFInvFull == nil {
		return core.NewMissingDataError("cdf_inv_full")
	}
	if err := t.Regression.validate(); err != nil {
		return err
	}
	if len(t.Estimates.ED25) == 0 {
		return core.NewMissingDataError("estimates.ed_25")
	}
	if len(t.Estimates.ED75) == 0 {
		return core.NewMissingDataError("estimates.ed_75")
	}
	return t.SigmaFit.validate()
}
