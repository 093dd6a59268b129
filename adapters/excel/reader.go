package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"melpower/domain/empirical"
	"melpower/internal"
	apperrors "melpower/internal/errors"
	"melpower/ports"

	"github.com/xuri/excelize/v2"
)

// DataReader loads empirical tables from an xlsx workbook or a directory of
// CSV files.
type DataReader struct {
	path     string
	fileType string // "xlsx" or "csv"
	logger   *internal.Logger
}

var _ ports.EmpiricalSource = (*DataReader)(nil)

// NewDataReader creates a reader. Directories are read as CSV; anything else as xlsx.
func NewDataReader(path string, logger *internal.Logger) *DataReader {
	fileType := "xlsx"
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		fileType = "csv"
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &DataReader{path: path, fileType: fileType, logger: logger.With("excel")}
}

// Load reads and validates all four tables.
func (r *DataReader) Load(ctx context.Context) (*empirical.Tables, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	sheets := make(map[string]*ExcelData, 4)
	for _, name := range []string{SheetP1Draws, SheetRegression, SheetEstimates, SheetSigmaFit} {
		data, err := r.ReadSheet(name)
		if err != nil {
			return nil, apperrors.MissingData(r.path, err)
		}
		sheets[name] = data
	}

	p1, err := sheets[SheetP1Draws].Column(ColP1)
	if err != nil {
		return nil, apperrors.MissingData(r.path, err)
	}
	reg, err := regressionDraws(sheets[SheetRegression])
	if err != nil {
		return nil, apperrors.MissingData(r.path, err)
	}
	est, err := estimates(sheets[SheetEstimates])
	if err != nil {
		return nil, apperrors.MissingData(r.path, err)
	}
	sigma, err := sigmaFitDraws(sheets[SheetSigmaFit])
	if err != nil {
		return nil, apperrors.MissingData(r.path, err)
	}

	tables, err := empirical.NewTables(p1, reg, est, sigma)
	if err != nil {
		return nil, apperrors.MissingData(r.path, err)
	}
	r.logger.Info("loaded empirical tables from %s in %s (%d p1 draws, %d regression draws, %d sigma draws)",
		r.path, time.Since(start), len(p1), reg.Len(), sigma.Len())
	return tables, nil
}

// ReadSheet returns the named sheet (xlsx) or file (csv) as header-keyed rows.
func (r *DataReader) ReadSheet(name string) (*ExcelData, error) {
	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = r.readCSV(filepath.Join(r.path, name+".csv"))
	default:
		rows, err = r.readWorkbookSheet(name)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s must have a header row and at least one data row", name)
	}
	return processRows(rows), nil
}

func (r *DataReader) readWorkbookSheet(name string) ([][]string, error) {
	f, err := excelize.OpenFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", name, err)
	}
	return rows, nil
}

func (r *DataReader) readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file %s: %w", path, err)
	}
	return rows, nil
}

// processRows converts raw string rows into ExcelData format
func processRows(rows [][]string) *ExcelData {
	headers := make([]string, len(rows[0]))
	for i, header := range rows[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(header))
	}

	dataRows := make([]RawRowData, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rowData := make(RawRowData)
		for j, cell := range row {
			if j < len(headers) {
				rowData[headers[j]] = strings.TrimSpace(cell)
			}
		}
		dataRows = append(dataRows, rowData)
	}
	return &ExcelData{Headers: headers, Rows: dataRows}
}

// Column parses a numeric column, skipping empty cells so columns of
// different lengths can share a sheet.
func (d *ExcelData) Column(name string) ([]float64, error) {
	found := false
	for _, h := range d.Headers {
		if h == name {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("column %q not found", name)
	}

	var out []float64
	for i, row := range d.Rows {
		cell := row[name]
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %w", name, i+2, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func columns(d *ExcelData, names ...string) ([][]float64, error) {
	out := make([][]float64, len(names))
	for i, name := range names {
		col, err := d.Column(name)
		if err != nil {
			return nil, err
		}
		out[i] = col
	}
	return out, nil
}

func regressionDraws(d *ExcelData) (empirical.RegressionDraws, error) {
	cols, err := columns(d, ColAlpha, ColBeta, ColSigma0, ColSigma1)
	if err != nil {
		return empirical.RegressionDraws{}, err
	}
	return empirical.RegressionDraws{Alpha: cols[0], Beta: cols[1], Sigma0: cols[2], Sigma1: cols[3]}, nil
}

func estimates(d *ExcelData) (empirical.Estimates, error) {
	cols, err := columns(d, ColED25, ColED75)
	if err != nil {
		return empirical.Estimates{}, err
	}
	return empirical.Estimates{ED25: cols[0], ED75: cols[1]}, nil
}

func sigmaFitDraws(d *ExcelData) (empirical.SigmaFitDraws, error) {
	cols, err := columns(d, ColA, ColB)
	if err != nil {
		return empirical.SigmaFitDraws{}, err
	}
	return empirical.SigmaFitDraws{A: cols[0], B: cols[1]}, nil
}
