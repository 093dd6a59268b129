package excel

// RawRowData represents a row of raw Excel data as string key-value pairs
type RawRowData map[string]string

// ExcelData represents one sheet (or CSV file) of raw data
type ExcelData struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}

// Sheet names of an empirical tables workbook. A CSV directory uses the same
// names with a .csv extension.
const (
	SheetP1Draws    = "p1_draws"
	SheetRegression = "p1_p2_regression_draws"
	SheetEstimates  = "estimates"
	SheetSigmaFit   = "sigma_fit_draws"
)

// Column headers
const (
	ColP1     = "p1"
	ColAlpha  = "alpha"
	ColBeta   = "beta"
	ColSigma0 = "sigma0"
	ColSigma1 = "sigma1"
	ColED25   = "ed_25"
	ColED75   = "ed_75"
	ColA      = "a"
	ColB      = "b"
)
