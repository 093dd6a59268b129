package experiment

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"melpower/domain/core"
	"melpower/domain/sim"
	"melpower/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGenerator(t *testing.T) *Generator {
	t.Helper()
	tables, err := testkit.DefaultTables()
	require.NoError(t, err)
	g, err := NewGenerator(tables, 0, nil)
	require.NoError(t, err)
	return g
}

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 2))
}

func baseParams(n int) Params {
	return Params{
		N:              n,
		Lux:            []float64{1, 10, 100, 1000},
		Thresh25:       1,
		Thresh75:       1,
		VariationLevel: 1,
		Multiplier:     1,
	}
}

func TestVirtualPopulationSize(t *testing.T) {
	g := newGenerator(t)
	for _, n := range []int{1, 2, 17, 120} {
		pop, err := g.VirtualPopulation(context.Background(), newRNG(uint64(n)), n, 1, 1, 1, 1)
		require.NoError(t, err)
		assert.Len(t, pop, n)
		for _, c := range pop {
			assert.Greater(t, c.P2, 0.0)
		}
	}
}

func TestVirtualPopulationRejectsWeights(t *testing.T) {
	g := newGenerator(t)
	ctx := context.Background()

	_, err := g.VirtualPopulation(ctx, newRNG(1), 10, 1, 1, 1.2, 1)
	assert.True(t, errors.Is(err, core.ErrInvalidParameterRange))
	_, err = g.VirtualPopulation(ctx, newRNG(1), 10, 1, 1, 1, -0.1)
	assert.True(t, errors.Is(err, core.ErrInvalidParameterRange))
	_, err = g.VirtualPopulation(ctx, newRNG(1), 0, 1, 1, 1, 1)
	assert.True(t, errors.Is(err, core.ErrInvalidParameterRange))
}

func TestApplyTreatmentTruncation(t *testing.T) {
	tests := []struct {
		name       string
		multiplier float64
		p1         float64
		want       float64
		truncated  bool
	}{
		{"no effect", 1, 1.2, 1.2, false},
		{"ten fold more sensitive", 0.1, 1.5, 0.5, false},
		{"just above zero", 0.1, 1.0000001, 0.0000001, false},
		{"clamped", 0.1, 0.05, 0, true},
		{"less sensitive", 4, 0.3, 0.3 + math.Log10(4), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ApplyTreatment(tt.multiplier, tt.p1)
			assert.InDelta(t, tt.want, rec.P1Treated, 1e-12)
			assert.Equal(t, tt.truncated, rec.P1Truncated)
			assert.Equal(t, tt.p1, rec.P1Natural)
			assert.True(t, rec.Treated)
		})
	}
}

func TestApplyTreatmentProperty(t *testing.T) {
	rng := newRNG(3)
	for i := 0; i < 2000; i++ {
		m := math.Pow(10, -3+4*rng.Float64())
		p1 := 3 * rng.Float64()
		rec := ApplyTreatment(m, p1)
		if p1+math.Log10(m) < 0 {
			require.True(t, rec.P1Truncated)
			require.Equal(t, 0.0, rec.P1Treated)
		} else {
			require.False(t, rec.P1Truncated)
			require.InDelta(t, p1+math.Log10(m), rec.P1Treated, 1e-12)
		}
	}
}

func TestVirtualExperimentScenario(t *testing.T) {
	g := newGenerator(t)
	rows, err := g.VirtualExperiment(context.Background(), newRNG(41), baseParams(41))
	require.NoError(t, err)
	require.Len(t, rows, 164)

	allowed := map[float64]bool{1: true, 10: true, 100: true, 1000: true}
	for _, r := range rows {
		assert.True(t, allowed[r.Lux], "unexpected lux %g", r.Lux)
		assert.True(t, r.Suppression > 0 && r.Suppression < 1)
		assert.Greater(t, r.Sigma, 0.0)
		assert.Equal(t, r.P1, r.P1Treated)
		assert.False(t, r.P1Truncated)
	}
	assert.Len(t, rows.IDs(), 41)
}

func TestVirtualExperimentExtremeTreatmentTruncates(t *testing.T) {
	g := newGenerator(t)
	p := baseParams(100)
	p.Multiplier = 0.1

	rows, err := g.VirtualExperiment(context.Background(), newRNG(100), p)
	require.NoError(t, err)
	assert.Greater(t, rows.TruncatedFraction(), 0.0)
	for _, r := range rows {
		if r.P1Truncated {
			assert.Equal(t, 0.0, r.P1Treated)
		}
	}
}

func TestVirtualExperimentRejectsVariationLevel(t *testing.T) {
	g := newGenerator(t)
	p := baseParams(10)
	p.VariationLevel = 1.01

	rows, err := g.VirtualExperiment(context.Background(), newRNG(1), p)
	assert.Nil(t, rows)
	assert.True(t, errors.Is(err, core.ErrInvalidParameterRange))

	p = baseParams(10)
	p.Multiplier = 0
	_, err = g.VirtualTreatmentExperiment(context.Background(), newRNG(1), p, true)
	assert.True(t, errors.Is(err, core.ErrInvalidParameterRange))
}

func TestWithinSubjectTreatmentExperiment(t *testing.T) {
	g := newGenerator(t)
	p := baseParams(25)
	p.Multiplier = 0.5

	rows, err := g.VirtualTreatmentExperiment(context.Background(), newRNG(25), p, false)
	require.NoError(t, err)
	require.Len(t, rows, 2*25*4)

	untreated := rows.ByTreated(false)
	treated := rows.ByTreated(true)
	require.Len(t, untreated, 100)
	require.Len(t, treated, 100)

	sigmaByID := make(map[int]float64)
	p1ByID := make(map[int]float64)
	for _, r := range untreated {
		sigmaByID[r.ID] = r.Sigma
		p1ByID[r.ID] = r.P1
		assert.Equal(t, r.P1, r.P1Treated)
	}
	for _, r := range treated {
		assert.Equal(t, sigmaByID[r.ID], r.Sigma, "sigma shared across occasions for id %d", r.ID)
		assert.Equal(t, p1ByID[r.ID], r.P1)
		assert.InDelta(t, ApplyTreatment(0.5, r.P1).P1Treated, r.P1Treated, 1e-12)
	}
}

func TestBetweenSubjectSplit(t *testing.T) {
	g := newGenerator(t)
	for _, n := range []int{2, 5, 7, 10, 31} {
		p := baseParams(n)
		p.Multiplier = 0.5
		rows, err := g.VirtualTreatmentExperiment(context.Background(), newRNG(uint64(n)), p, true)
		require.NoError(t, err)
		require.Len(t, rows, n*4)

		untreatedIDs := rows.ByTreated(false).IDs()
		treatedIDs := rows.ByTreated(true).IDs()
		assert.Len(t, untreatedIDs, SplitIndex(n), "n=%d", n)
		assert.Len(t, treatedIDs, n-SplitIndex(n), "n=%d", n)
		if len(untreatedIDs) > 0 && len(treatedIDs) > 0 {
			assert.Less(t, untreatedIDs[len(untreatedIDs)-1], treatedIDs[0])
		}
	}
}

func TestSplitIndexRoundsHalfToEven(t *testing.T) {
	assert.Equal(t, 2, SplitIndex(5))
	assert.Equal(t, 4, SplitIndex(7))
	assert.Equal(t, 5, SplitIndex(10))
	assert.Equal(t, 0, SplitIndex(1))
}

func TestSummarize(t *testing.T) {
	pop := sim.Population{{P1: 1, P2: 1}, {P1: 2, P2: 2}, {P1: 3, P2: 3}}
	s, err := Summarize(pop)
	require.NoError(t, err)
	assert.Equal(t, 3, s.N)
	assert.InDelta(t, 100, s.MedianED50, 1e-9)
	assert.InDelta(t, 2, s.MedianP2, 1e-12)
	assert.Less(t, s.MedianED25, s.MedianED50)
	assert.Greater(t, s.MedianED75, s.MedianED50)

	assert.InDelta(t, 1.5, s.P1Q25, 1e-12)
	assert.InDelta(t, 2.5, s.P1Q75, 1e-12)

	_, err = Summarize(nil)
	assert.Error(t, err)
}

func TestSummarizeSmallPopulations(t *testing.T) {
	tests := []struct {
		name     string
		p1       []float64
		q25, q75 float64
	}{
		{"one", []float64{1.2}, 1.2, 1.2},
		{"two", []float64{2, 1}, 1.25, 1.75},
		{"three", []float64{3, 1, 2}, 1.5, 2.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pop := make(sim.Population, len(tt.p1))
			for i, p1 := range tt.p1 {
				pop[i] = sim.CurveParams{P1: p1, P2: 1}
			}
			s, err := Summarize(pop)
			require.NoError(t, err)
			assert.Equal(t, len(tt.p1), s.N)
			assert.InDelta(t, tt.q25, s.P1Q25, 1e-12)
			assert.InDelta(t, tt.q75, s.P1Q75, 1e-12)
			assert.LessOrEqual(t, s.P1Q25, s.P1Q75)
		})
	}
}
