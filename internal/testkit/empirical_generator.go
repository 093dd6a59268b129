package testkit

import (
	"math"
	"math/rand/v2"

	"melpower/domain/empirical"
)

// EmpiricalGeneratorConfig configures the synthetic posterior tables. The
// defaults resemble published melatonin suppression fits: ed50 around 20 lux
// with roughly half a decade of between-subject spread.
type EmpiricalGeneratorConfig struct {
	P1Samples      int     `json:"p1_samples"`
	P1Mean         float64 `json:"p1_mean"`
	P1SD           float64 `json:"p1_sd"`
	RegressionRows int     `json:"regression_rows"`
	SigmaRows      int     `json:"sigma_rows"`
	Seed           uint64  `json:"seed"`
}

// DefaultEmpiricalConfig returns the configuration used across the test suite
func DefaultEmpiricalConfig() EmpiricalGeneratorConfig {
	return EmpiricalGeneratorConfig{
		P1Samples:      250,
		P1Mean:         1.3,
		P1SD:           0.55,
		RegressionRows: 400,
		SigmaRows:      400,
		Seed:           20190318,
	}
}

// EmpiricalGenerator produces deterministic stand-ins for the offline
// posterior draw tables.
type EmpiricalGenerator struct {
	config EmpiricalGeneratorConfig
	rng    *rand.Rand
}

// NewEmpiricalGenerator creates a generator seeded from config
func NewEmpiricalGenerator(config EmpiricalGeneratorConfig) *EmpiricalGenerator {
	return &EmpiricalGenerator{
		config: config,
		rng:    rand.New(rand.NewPCG(config.Seed, 0x6d656c)),
	}
}

// P1Samples returns raw p1 draws clipped to the observed range [0.05, 3.2].
func (g *EmpiricalGenerator) P1Samples() []float64 {
	out := make([]float64, g.config.P1Samples)
	for i := range out {
		p1 := g.config.P1Mean + g.config.P1SD*g.rng.NormFloat64()
		out[i] = math.Min(3.2, math.Max(0.05, p1))
	}
	return out
}

// RegressionDraws returns posterior draws of the log10(p2)|p1 regression.
func (g *EmpiricalGenerator) RegressionDraws() empirical.RegressionDraws {
	n := g.config.RegressionRows
	d := empirical.RegressionDraws{
		Alpha:  make([]float64, n),
		Beta:   make([]float64, n),
		Sigma0: make([]float64, n),
		Sigma1: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		d.Alpha[i] = 0.25 + 0.04*g.rng.NormFloat64()
		d.Beta[i] = 0.05 + 0.015*g.rng.NormFloat64()
		d.Sigma0[i] = math.Abs(0.12 + 0.015*g.rng.NormFloat64())
		d.Sigma1[i] = 0.01 + 0.004*g.rng.NormFloat64()
	}
	return d
}

// SigmaFitDraws returns gamma shape/rate draws with mean sigma near 0.5.
func (g *EmpiricalGenerator) SigmaFitDraws() empirical.SigmaFitDraws {
	n := g.config.SigmaRows
	d := empirical.SigmaFitDraws{A: make([]float64, n), B: make([]float64, n)}
	for i := 0; i < n; i++ {
		d.A[i] = math.Max(0.5, 5+0.4*g.rng.NormFloat64())
		d.B[i] = math.Max(1, 10+0.8*g.rng.NormFloat64())
	}
	return d
}

// Estimates returns fixed per-subject ed25/ed75 estimates.
func Estimates() empirical.Estimates {
	return empirical.Estimates{
		ED25: []float64{0.35, 0.9, 1.8, 2.6, 4.1, 5.5, 7.9, 12.4, 18.0, 26.5, 41.0, 63.0},
		ED75: []float64{14.0, 22.0, 35.0, 52.0, 80.0, 130.0, 210.0, 380.0, 700.0, 1400.0, 3100.0, 9000.0},
	}
}

// Tables assembles a validated empirical.Tables from the generator.
func (g *EmpiricalGenerator) Tables() (*empirical.Tables, error) {
	return empirical.NewTables(g.P1Samples(), g.RegressionDraws(), Estimates(), g.SigmaFitDraws())
}

// DefaultTables is NewEmpiricalGenerator(DefaultEmpiricalConfig()).Tables().
func DefaultTables() (*empirical.Tables, error) {
	return NewEmpiricalGenerator(DefaultEmpiricalConfig()).Tables()
}
