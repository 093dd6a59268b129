package excel

import (
	"fmt"

	"melpower/domain/empirical"
	"melpower/domain/sim"
	"melpower/internal/power"

	"github.com/xuri/excelize/v2"
)

type sheet struct {
	name   string
	header []interface{}
	rows   [][]interface{}
}

// writeWorkbook saves sheets in order; the first replaces the default Sheet1.
func writeWorkbook(path string, sheets []sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", s.name, err)
		}

		if err := f.SetSheetRow(s.name, "A1", &s.header); err != nil {
			return fmt.Errorf("failed to write header of %s: %w", s.name, err)
		}
		for j := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, j+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(s.name, cell, &s.rows[j]); err != nil {
				return fmt.Errorf("failed to write %s row %d: %w", s.name, j+2, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// columnRows zips columns of possibly different lengths into rows, leaving
// missing cells empty.
func columnRows(cols ...[]float64) [][]interface{} {
	n := 0
	for _, c := range cols {
		n = max(n, len(c))
	}
	rows := make([][]interface{}, n)
	for i := range rows {
		row := make([]interface{}, len(cols))
		for j, c := range cols {
			if i < len(c) {
				row[j] = c[i]
			} else {
				row[j] = nil
			}
		}
		rows[i] = row
	}
	return rows
}

// WriteTables saves empirical tables in the workbook layout DataReader reads.
func WriteTables(path string, p1Samples []float64, reg empirical.RegressionDraws, est empirical.Estimates, sigma empirical.SigmaFitDraws) error {
	return writeWorkbook(path, []sheet{
		{SheetP1Draws, []interface{}{ColP1}, columnRows(p1Samples)},
		{SheetRegression, []interface{}{ColAlpha, ColBeta, ColSigma0, ColSigma1}, columnRows(reg.Alpha, reg.Beta, reg.Sigma0, reg.Sigma1)},
		{SheetEstimates, []interface{}{ColED25, ColED75}, columnRows(est.ED25, est.ED75)},
		{SheetSigmaFit, []interface{}{ColA, ColB}, columnRows(sigma.A, sigma.B)},
	})
}

// ExportMeasurements writes a measurement table to a "measurements" sheet.
func ExportMeasurements(path string, rows sim.Measurements) error {
	out := make([][]interface{}, len(rows))
	for i, r := range rows {
		out[i] = []interface{}{r.ID, r.Lux, r.Suppression, r.Sigma, r.P1, r.P2, r.P1Treated, r.P1Truncated, r.Treated}
	}
	return writeWorkbook(path, []sheet{{
		name:   "measurements",
		header: []interface{}{"id", "lux", "suppression", "sigma", "p1", "p2", "p1_treated", "p1_truncated", "treated"},
		rows:   out,
	}})
}

// ExportResults writes per-repetition results and, when given, a power curve.
func ExportResults(path string, results sim.ResultSet, curve []power.Point) error {
	reps := make([][]interface{}, len(results))
	for i, r := range results {
		reps[i] = []interface{}{i + 1, r.Result, r.PValue}
	}
	sheets := []sheet{{"results", []interface{}{"repetition", "result", "p_value"}, reps}}

	if len(curve) > 0 {
		pts := make([][]interface{}, len(curve))
		for i, p := range curve {
			pts[i] = []interface{}{p.N, p.Power, p.SuccessRate}
		}
		sheets = append(sheets, sheet{"power_curve", []interface{}{"n", "power", "success_rate"}, pts})
	}
	return writeWorkbook(path, sheets)
}
