package comparison

import (
	"melpower/domain/sim"

	"github.com/montanaflynn/stats"
)

// signMatches reports whether diff has the expected sign. A zero difference
// never matches.
func signMatches(diff float64, expectHigher bool) bool {
	if expectHigher {
		return diff > 0
	}
	return diff < 0
}

func meanDiff(base, other []float64) (float64, error) {
	mb, err := stats.Mean(base)
	if err != nil {
		return 0, err
	}
	mo, err := stats.Mean(other)
	if err != nil {
		return 0, err
	}
	return mo - mb, nil
}

// IsComparisonSuccessfulOneLux sets Result to 1 when mean(treated) -
// mean(untreated) has the sign implied by isTreatedHigher. Significance is
// not applied here; the p-value of fit is passed through unchanged.
func IsComparisonSuccessfulOneLux(untreated, treated []float64, isTreatedHigher bool, fit TTest) (sim.TestResult, error) {
	diff, err := meanDiff(untreated, treated)
	if err != nil {
		return sim.TestResult{}, err
	}
	res := sim.TestResult{PValue: fit.PValue}
	if signMatches(diff, isTreatedHigher) {
		res.Result = 1
	}
	return res, nil
}

// IsComparisonSuccessful is the lux-comparison counterpart: higher lux is
// expected to give higher suppression, so the expected sign of
// mean(vals2) - mean(vals1) follows lux2 - lux1. Equal lux levels have no
// expected direction and always yield Result 0.
func IsComparisonSuccessful(vals1, vals2 []float64, lux1, lux2 float64, fit TTest) (sim.TestResult, error) {
	diff, err := meanDiff(vals1, vals2)
	if err != nil {
		return sim.TestResult{}, err
	}
	res := sim.TestResult{PValue: fit.PValue}
	if lux1 != lux2 && signMatches(diff, lux2 > lux1) {
		res.Result = 1
	}
	return res, nil
}
