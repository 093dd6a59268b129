package comparison

import (
	"fmt"
	"math"

	"melpower/domain/core"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// TTest is a completed two-sided t-test.
type TTest struct {
	Statistic float64 `json:"t"`
	DF        float64 `json:"df"`
	PValue    float64 `json:"p_value"`
	Paired    bool    `json:"paired"`
}

// twoSided returns P(|T| >= |t|) for T ~ Student's t with df degrees of freedom.
func twoSided(t, df float64) float64 {
	p := 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Survival(math.Abs(t))
	return math.Min(1, math.Max(0, p))
}

func meanVar(xs []float64) (mean, variance float64, err error) {
	if mean, err = stats.Mean(xs); err != nil {
		return 0, 0, err
	}
	variance, err = stats.SampleVariance(xs)
	return mean, variance, err
}

// PairedTTest tests whether the mean of y - x differs from zero.
func PairedTTest(x, y []float64) (TTest, error) {
	if len(x) != len(y) {
		return TTest{}, fmt.Errorf("%w: paired samples have lengths %d and %d", core.ErrInvalidParameterRange, len(x), len(y))
	}
	if len(x) < 2 {
		return TTest{}, fmt.Errorf("%w: paired t-test needs at least 2 pairs, got %d", core.ErrDegenerateSample, len(x))
	}

	d := make([]float64, len(x))
	for i := range x {
		d[i] = y[i] - x[i]
	}
	mean, variance, err := meanVar(d)
	if err != nil {
		return TTest{}, err
	}
	if variance == 0 {
		return TTest{}, fmt.Errorf("%w: paired differences have zero variance", core.ErrDegenerateSample)
	}

	n := float64(len(d))
	t := mean / math.Sqrt(variance/n)
	df := n - 1
	return TTest{Statistic: t, DF: df, PValue: twoSided(t, df), Paired: true}, nil
}

// IndependentTTest compares the means of two independent samples. With
// equalVar it pools the variances (Student); otherwise it uses the Welch
// approximation to the degrees of freedom.
func IndependentTTest(x, y []float64, equalVar bool) (TTest, error) {
	if len(x) < 2 || len(y) < 2 {
		return TTest{}, fmt.Errorf("%w: independent t-test needs at least 2 values per group, got %d and %d",
			core.ErrDegenerateSample, len(x), len(y))
	}
	mx, vx, err := meanVar(x)
	if err != nil {
		return TTest{}, err
	}
	my, vy, err := meanVar(y)
	if err != nil {
		return TTest{}, err
	}

	nx, ny := float64(len(x)), float64(len(y))
	var se, df float64
	if equalVar {
		df = nx + ny - 2
		pooled := ((nx-1)*vx + (ny-1)*vy) / df
		se = math.Sqrt(pooled * (1/nx + 1/ny))
	} else {
		ax, ay := vx/nx, vy/ny
		se = math.Sqrt(ax + ay)
		df = (ax + ay) * (ax + ay) / (ax*ax/(nx-1) + ay*ay/(ny-1))
	}
	if se == 0 {
		return TTest{}, fmt.Errorf("%w: both groups are constant", core.ErrDegenerateSample)
	}

	t := (my - mx) / se
	return TTest{Statistic: t, DF: df, PValue: twoSided(t, df)}, nil
}
