package app

import (
	"context"
	"errors"
	"testing"

	"melpower/domain/core"
	"melpower/domain/empirical"
	"melpower/internal/experiment"
	"melpower/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() ServiceConfig {
	return ServiceConfig{MaxAttempts: 10000, Workers: 4, Thresh25: 1, Thresh75: 1, Alpha: 0.05}
}

func newService(t *testing.T, withRepo bool) (*PowerService, *testkit.TestKit) {
	t.Helper()
	kit, err := testkit.NewTestKit()
	require.NoError(t, err)
	if withRepo {
		return NewPowerService(kit.Source(), kit.RNG(), kit.Runs(), testConfig(), nil), kit
	}
	return NewPowerService(kit.Source(), kit.RNG(), nil, testConfig(), nil), kit
}

func TestPopulation(t *testing.T) {
	svc, _ := newService(t, false)
	res, err := svc.Population(context.Background(), PopulationRequest{N: 50, VariationLevel: 1, Seed: 3})
	require.NoError(t, err)
	assert.Len(t, res.Population, 50)
	assert.Equal(t, 50, res.Summary.N)
	assert.LessOrEqual(t, res.Summary.MedianED25, res.Summary.MedianED75)

	_, err = svc.Population(context.Background(), PopulationRequest{N: 5, VariationLevel: 1.5})
	assert.True(t, errors.Is(err, core.ErrInvalidParameterRange))
}

func TestSmallPopulationsAreSummarized(t *testing.T) {
	svc, _ := newService(t, false)
	ctx := context.Background()

	for n := 1; n <= 4; n++ {
		res, err := svc.Population(ctx, PopulationRequest{N: n, VariationLevel: 1, Seed: 3})
		require.NoError(t, err, "n=%d", n)
		assert.Len(t, res.Population, n)
		assert.LessOrEqual(t, res.Summary.P1Q25, res.Summary.P1Q75)
	}

	res, err := svc.LuxPower(ctx, PowerRequest{
		Lux1: 10, Lux2: 100, N: 2, PopulationSize: 3, VariationLevel: 1, Repetitions: 10, Seed: 5,
	})
	require.NoError(t, err)
	assert.Len(t, res.Results, 10)
	assert.Equal(t, 3, res.Population.N)
}

func TestExperimentsUseDefaults(t *testing.T) {
	svc, _ := newService(t, false)
	ctx := context.Background()

	rows, err := svc.Experiment(ctx, ExperimentRequest{Params: experiment.Params{N: 10, Lux: []float64{10, 100}, VariationLevel: 1}, Seed: 1})
	require.NoError(t, err)
	assert.Len(t, rows, 20)
	for _, r := range rows {
		assert.False(t, r.Treated)
	}

	rows, err = svc.TreatmentExperiment(ctx, ExperimentRequest{
		Params: experiment.Params{N: 10, Lux: []float64{30}, VariationLevel: 1, Multiplier: 2},
		Seed:   1,
	})
	require.NoError(t, err)
	assert.Len(t, rows, 20)
	assert.Len(t, rows.ByTreated(true), 10)
}

func TestLuxPower(t *testing.T) {
	svc, kit := newService(t, true)
	req := PowerRequest{Lux1: 10, Lux2: 1000, N: 10, PopulationSize: 100, VariationLevel: 1, Repetitions: 40, Seed: 7,
		SampleSizes: []int{4, 8}}

	res, err := svc.LuxPower(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, res.Results, 40)
	assert.Len(t, res.Curve, 2)
	assert.Greater(t, res.Run.Power, 0.5)
	assert.Equal(t, "lux", res.Run.Kind)
	assert.Equal(t, 1.0, res.Run.Multiplier)
	assert.Equal(t, 1, kit.Runs().Len())

	stored, err := svc.GetRun(context.Background(), res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Run.Power, stored.Power)

	again, err := svc.LuxPower(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, res.Results, again.Results)

	req.Lux2 = req.Lux1
	_, err = svc.LuxPower(context.Background(), req)
	assert.True(t, errors.Is(err, core.ErrInvalidParameterRange))
}

func TestTreatmentPowerReportsTruncation(t *testing.T) {
	svc, _ := newService(t, false)
	res, err := svc.TreatmentPower(context.Background(), PowerRequest{
		Between: true, Lux1: 30, Multiplier: 0.01, IsTreatedHigher: true,
		N: 10, PopulationSize: 60, VariationLevel: 1, Repetitions: 20, Seed: 11,
	})
	require.NoError(t, err)
	assert.Equal(t, "treatment", res.Run.Kind)
	assert.Greater(t, res.Run.TruncatedFraction, 0.0)
	assert.LessOrEqual(t, res.Run.TruncatedFraction, 0.5)

	_, err = svc.GetRun(context.Background(), res.Run.ID)
	assert.True(t, errors.Is(err, core.ErrRunNotFound))
}

func TestGeneratorRetriesFailedLoad(t *testing.T) {
	kit, err := testkit.NewTestKit()
	require.NoError(t, err)
	src := &flakySource{err: core.NewMissingDataError("p1"), tables: kit.Tables()}
	svc := NewPowerService(src, kit.RNG(), nil, testConfig(), nil)

	_, err = svc.Generator(context.Background())
	assert.True(t, errors.Is(err, core.ErrMissingEmpiricalData))

	src.err = nil
	_, err = svc.Generator(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

type flakySource struct {
	err    error
	tables *empirical.Tables
	calls  int
}

func (f *flakySource) Load(ctx context.Context) (*empirical.Tables, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.tables, nil
}
