package excel

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"melpower/domain/core"
	"melpower/domain/empirical"
	"melpower/domain/sim"
	apperrors "melpower/internal/errors"
	"melpower/internal/power"
	"melpower/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWorkbookRoundTrip(t *testing.T) {
	gen := testkit.NewEmpiricalGenerator(testkit.DefaultEmpiricalConfig())
	p1 := gen.P1Samples()
	reg := gen.RegressionDraws()
	sigma := gen.SigmaFitDraws()
	est := testkit.Estimates()
	est.ED75 = est.ED75[:5] // ragged columns share one sheet

	path := filepath.Join(t.TempDir(), "draws.xlsx")
	require.NoError(t, WriteTables(path, p1, reg, est, sigma))

	tables, err := NewDataReader(path, nil).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, reg, tables.Regression)
	assert.Equal(t, sigma, tables.SigmaFit)
	assert.Equal(t, est, tables.Estimates)
	assert.Equal(t, minOf(p1), tables.CDFInvFull(0))
}

func minOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs {
		m = min(m, x)
	}
	return m
}

func writeCSV(t *testing.T, path string, rows [][]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	w := csv.NewWriter(f)
	require.NoError(t, w.WriteAll(rows))
}

func TestCSVDirectory(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, filepath.Join(dir, SheetP1Draws+".csv"), [][]string{{"P1"}, {"0.5"}, {"1.5"}, {"2.5"}})
	writeCSV(t, filepath.Join(dir, SheetRegression+".csv"), [][]string{
		{"alpha", "beta", "sigma0", "sigma1"},
		{"0.2", "0.05", "0.1", "0.01"},
		{"0.3", "0.04", "0.12", "0.02"},
	})
	writeCSV(t, filepath.Join(dir, SheetEstimates+".csv"), [][]string{{"ed_25", "ed_75"}, {"0.5", "100"}, {"2", ""}})
	writeCSV(t, filepath.Join(dir, SheetSigmaFit+".csv"), [][]string{{"a", "b"}, {"5", "10"}})

	tables, err := NewDataReader(dir, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, tables.Regression.Len())
	assert.Equal(t, []float64{0.5, 2}, tables.Estimates.ED25)
	assert.Equal(t, []float64{100}, tables.Estimates.ED75)
	assert.InDelta(t, 1.5, tables.CDFInvFull(0.5), 1e-12)
}

func TestLoadMissingSheet(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, filepath.Join(dir, SheetP1Draws+".csv"), [][]string{{"p1"}, {"0.5"}})

	_, err := NewDataReader(dir, nil).Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeMissingData, apperrors.GetCode(err))
}

func TestLoadRejectsNonPositiveRate(t *testing.T) {
	gen := testkit.NewEmpiricalGenerator(testkit.DefaultEmpiricalConfig())
	path := filepath.Join(t.TempDir(), "draws.xlsx")
	require.NoError(t, WriteTables(path, gen.P1Samples(), gen.RegressionDraws(), testkit.Estimates(),
		empirical.SigmaFitDraws{A: []float64{5, 6}, B: []float64{10, 0}}))

	_, err := NewDataReader(path, nil).Load(context.Background())
	assert.True(t, errors.Is(err, core.ErrMissingEmpiricalData), "got %v", err)
}

func TestExportMeasurementsAndResults(t *testing.T) {
	dir := t.TempDir()
	rows := sim.Measurements{
		{ID: 1, Lux: 10, Suppression: 0.25, Sigma: 0.4, P1: 1.2, P2: 2, P1Treated: 1.2},
		{ID: 1, Lux: 100, Suppression: 0.8, Sigma: 0.4, P1: 1.2, P2: 2, P1Treated: 0.2, Treated: true},
	}
	mpath := filepath.Join(dir, "measurements.xlsx")
	require.NoError(t, ExportMeasurements(mpath, rows))

	f, err := excelize.OpenFile(mpath)
	require.NoError(t, err)
	got, err := f.GetRows("measurements", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.Len(t, got, 3)
	assert.Equal(t, "suppression", got[0][2])
	v, err := strconv.ParseFloat(got[2][2], 64)
	require.NoError(t, err)
	assert.Equal(t, 0.8, v)

	rpath := filepath.Join(dir, "results.xlsx")
	require.NoError(t, ExportResults(rpath, sim.ResultSet{{Result: 1, PValue: 0.01}, {Result: 0, PValue: 0.7}},
		[]power.Point{{N: 10, Power: 0.5, SuccessRate: 0.9}}))

	data, err := NewDataReader(rpath, nil).ReadSheet("power_curve")
	require.NoError(t, err)
	n, err := data.Column("n")
	require.NoError(t, err)
	assert.Equal(t, []float64{10}, n)
}
