package sampling

import (
	"math"
	"math/rand/v2"

	"melpower/domain/empirical"

	"gonum.org/v1/gonum/stat/distuv"
)

// smallest and largest float64 values strictly inside (0,1)
var (
	minOpen = math.SmallestNonzeroFloat64
	maxOpen = math.Nextafter(1, 0)
)

// Logit is the log-odds transform log(y/(1-y)).
func Logit(y float64) float64 {
	return math.Log(y / (1 - y))
}

// InvLogit maps the real line back onto (0,1). Results that round to 0 or 1
// in float64 are pulled to the nearest representable interior value.
func InvLogit(x float64) float64 {
	y := 1 / (1 + math.Exp(-x))
	switch {
	case y <= 0:
		return minOpen
	case y >= 1:
		return maxOpen
	}
	return y
}

// NoiseLogit adds zero-mean Gaussian noise with standard deviation sigma to y
// on the logit scale and maps the result back to (0,1).
func NoiseLogit(rng *rand.Rand, y, sigma float64) float64 {
	noise := distuv.Normal{Mu: 0, Sigma: sigma, Src: rng}
	return InvLogit(Logit(y) + noise.Rand())
}

// SigmaSampler draws per-individual noise levels from a gamma distribution
// whose shape and rate come from one randomly chosen posterior draw.
type SigmaSampler struct {
	draws empirical.SigmaFitDraws
}

// NewSigmaSampler requires draws to have been validated by empirical.Tables.
func NewSigmaSampler(draws empirical.SigmaFitDraws) *SigmaSampler {
	return &SigmaSampler{draws: draws}
}

// Sample returns one sigma > 0.
func (s *SigmaSampler) Sample(rng *rand.Rand) float64 {
	for {
		k := rng.IntN(s.draws.Len())
		g := distuv.Gamma{Alpha: s.draws.A[k], Beta: s.draws.B[k], Src: rng}
		if sigma := g.Rand(); sigma > 0 {
			return sigma
		}
	}
}
