// Package sim defines the tables that flow between population generation,
// measurement synthesis and hypothesis testing.
package sim

import (
	"sort"

	"melpower/domain/curve"
)

// CurveParams are one individual's dose-response parameters.
// P1 is log10(ed50); P2 is the positive steepness.
type CurveParams struct {
	P1 float64 `json:"p1"`
	P2 float64 `json:"p2"`
}

// ED25 returns the lux giving 25% suppression.
func (c CurveParams) ED25() float64 { return curve.ED(0.25, c.P1, c.P2) }

// ED75 returns the lux giving 75% suppression.
func (c CurveParams) ED75() float64 { return curve.ED(0.75, c.P1, c.P2) }

// Population is an index-stable table of individuals; row i is individual i.
type Population []CurveParams

// TreatmentRecord captures one individual's treated p1. Truncated is set when
// the shifted p1 fell below zero and was clamped.
type TreatmentRecord struct {
	P1Natural   float64 `json:"p1_natural"`
	P1Treated   float64 `json:"p1_treated"`
	P1Truncated bool    `json:"p1_truncated"`
	Treated     bool    `json:"treated"`
}

// MeasurementRow is one simulated suppression measurement.
type MeasurementRow struct {
	ID          int     `json:"id"`
	Lux         float64 `json:"lux"`
	Suppression float64 `json:"suppression"`
	Sigma       float64 `json:"sigma"`
	P1          float64 `json:"p1"`
	P2          float64 `json:"p2"`
	P1Treated   float64 `json:"p1_treated"`
	P1Truncated bool    `json:"p1_truncated"`
	Treated     bool    `json:"treated"`
}

// Measurements is a flat measurement table.
type Measurements []MeasurementRow

// ByTreated returns the rows whose treated flag equals treated.
func (m Measurements) ByTreated(treated bool) Measurements {
	var out Measurements
	for _, r := range m {
		if r.Treated == treated {
			out = append(out, r)
		}
	}
	return out
}

// IDs returns the distinct individual ids in ascending order.
func (m Measurements) IDs() []int {
	seen := make(map[int]struct{})
	for _, r := range m {
		seen[r.ID] = struct{}{}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// TruncatedFraction is the share of distinct individuals with a clamped p1.
func (m Measurements) TruncatedFraction() float64 {
	ids := make(map[int]bool)
	for _, r := range m {
		ids[r.ID] = ids[r.ID] || r.P1Truncated
	}
	if len(ids) == 0 {
		return 0
	}
	n := 0
	for _, truncated := range ids {
		if truncated {
			n++
		}
	}
	return float64(n) / float64(len(ids))
}

// TestResult is the outcome of one simulated comparison. Result is 1 when the
// observed difference has the expected sign.
type TestResult struct {
	Result int     `json:"result"`
	PValue float64 `json:"p_value"`
}

// Success reports whether the sign matched and p < alpha.
func (r TestResult) Success(alpha float64) bool {
	return r.Result == 1 && r.PValue < alpha
}

// ResultSet holds one TestResult per repetition, in repetition order.
type ResultSet []TestResult

// SuccessRate is the fraction of repetitions with the expected sign.
func (rs ResultSet) SuccessRate() float64 {
	if len(rs) == 0 {
		return 0
	}
	n := 0
	for _, r := range rs {
		n += r.Result
	}
	return float64(n) / float64(len(rs))
}

// Power is the Monte Carlo power estimate: the fraction of repetitions with
// the expected sign and p < alpha.
func (rs ResultSet) Power(alpha float64) float64 {
	if len(rs) == 0 {
		return 0
	}
	n := 0
	for _, r := range rs {
		if r.Success(alpha) {
			n++
		}
	}
	return float64(n) / float64(len(rs))
}
