// Package curve holds the closed-form dose-response model relating light
// intensity (lux) to melatonin suppression.
package curve

import "math"

// Logistic2 returns the suppression fraction in (0,1) produced by lux for an
// individual with location p1 = log10(ed50) and steepness p2 > 0.
//
//	y = 1 / (1 + 10^(p2 * (p1 - log10(lux))))
func Logistic2(lux, p1, p2 float64) float64 {
	return 1 / (1 + math.Pow(10, p2*(p1-math.Log10(lux))))
}

// ED returns the lux value at which the curve reaches suppression quantile q.
// It is the exact inverse of Logistic2 for q in (0,1).
func ED(q, p1, p2 float64) float64 {
	return math.Pow(10, p1+math.Log10(q/(1-q))/p2)
}

// ED50 is ED(0.5, p1, p2), which reduces to 10^p1.
func ED50(p1 float64) float64 {
	return math.Pow(10, p1)
}
