package report

import (
	"testing"

	"melpower/internal/experiment"
	"melpower/internal/power"
	"melpower/ports"

	"github.com/stretchr/testify/assert"
)

func TestTreatmentReport(t *testing.T) {
	r := PowerReport{
		Run: ports.PowerRun{
			ID: "0190f2a4-0000-7000-8000-000000000000", Kind: "treatment", Between: true,
			SampleSize: 20, PopulationSize: 200, Lux1: 30, Multiplier: 0.5, VariationLevel: 1,
			Repetitions: 100, Alpha: 0.05, Seed: 42, SuccessRate: 0.97, Power: 0.62, TruncatedFraction: 0.125,
		},
		Population: &experiment.PopulationSummary{N: 200, MedianED50: 25},
		Curve:      []power.Point{{N: 10, Power: 0.4, SuccessRate: 0.9}, {N: 20, Power: 0.62, SuccessRate: 0.97}},
	}

	md := r.Markdown()
	assert.Contains(t, md, "| Design | between-subjects |")
	assert.Contains(t, md, "| Multiplier | 0.5 |")
	assert.Contains(t, md, "12.5%")
	assert.Contains(t, md, "| 20 | 0.620 | 0.970 |")

	out := string(r.HTML())
	assert.Contains(t, out, "Power report</h1>")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<strong>Power</strong>")
}

func TestLuxReportOmitsEmptySections(t *testing.T) {
	md := PowerReport{Run: ports.PowerRun{Kind: "lux", Lux1: 10, Lux2: 100}}.Markdown()
	assert.Contains(t, md, "| Lux | 10 vs 100 |")
	assert.Contains(t, md, "| Design | within-subjects |")
	assert.NotContains(t, md, "## Population")
	assert.NotContains(t, md, "## Power curve")
	assert.NotContains(t, md, "Truncated")
}
