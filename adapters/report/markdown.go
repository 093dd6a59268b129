package report

import (
	"fmt"
	"strings"

	"melpower/internal/experiment"
	"melpower/internal/power"
	"melpower/ports"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// PowerReport collects everything rendered for one power analysis.
type PowerReport struct {
	Run        ports.PowerRun
	Population *experiment.PopulationSummary
	Curve      []power.Point
}

// Markdown renders the report as a Markdown document.
func (r PowerReport) Markdown() string {
	var b strings.Builder
	run := r.Run

	b.WriteString("# Power report\n\n")
	if run.ID != "" {
		fmt.Fprintf(&b, "Run `%s`", run.ID)
		if !run.CreatedAt.IsZero() {
			fmt.Fprintf(&b, " at %s", run.CreatedAt.Format("2006-01-02 15:04:05 MST"))
		}
		b.WriteString("\n\n")
	}

	design := "within-subjects"
	if run.Between {
		design = "between-subjects"
	}
	b.WriteString("## Design\n\n| Parameter | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Comparison | %s |\n", run.Kind)
	fmt.Fprintf(&b, "| Design | %s |\n", design)
	fmt.Fprintf(&b, "| Sample size | %d |\n", run.SampleSize)
	fmt.Fprintf(&b, "| Population size | %d |\n", run.PopulationSize)
	if run.Kind == "treatment" {
		fmt.Fprintf(&b, "| Lux | %g |\n", run.Lux1)
		fmt.Fprintf(&b, "| Multiplier | %g |\n", run.Multiplier)
	} else {
		fmt.Fprintf(&b, "| Lux | %g vs %g |\n", run.Lux1, run.Lux2)
	}
	fmt.Fprintf(&b, "| Variation level | %g |\n", run.VariationLevel)
	fmt.Fprintf(&b, "| Repetitions | %d |\n", run.Repetitions)
	fmt.Fprintf(&b, "| Seed | %d |\n\n", run.Seed)

	b.WriteString("## Results\n\n")
	fmt.Fprintf(&b, "- **Power** (alpha %g): %.3f\n", run.Alpha, run.Power)
	fmt.Fprintf(&b, "- **Direction correct**: %.3f\n", run.SuccessRate)
	if run.Kind == "treatment" {
		fmt.Fprintf(&b, "- **Truncated treated p1**: %.1f%%\n", 100*run.TruncatedFraction)
	}
	b.WriteString("\n")

	if p := r.Population; p != nil {
		b.WriteString("## Population\n\n| Statistic | Value |\n|---|---|\n")
		fmt.Fprintf(&b, "| Individuals | %d |\n", p.N)
		fmt.Fprintf(&b, "| Median ED25 (lux) | %.3g |\n", p.MedianED25)
		fmt.Fprintf(&b, "| Median ED50 (lux) | %.3g |\n", p.MedianED50)
		fmt.Fprintf(&b, "| Median ED75 (lux) | %.3g |\n", p.MedianED75)
		fmt.Fprintf(&b, "| p1 IQR | %.3f to %.3f |\n", p.P1Q25, p.P1Q75)
		fmt.Fprintf(&b, "| Median p2 | %.3f |\n\n", p.MedianP2)
	}

	if len(r.Curve) > 0 {
		b.WriteString("## Power curve\n\n| n | Power | Direction correct |\n|---|---|---|\n")
		for _, pt := range r.Curve {
			fmt.Fprintf(&b, "| %d | %.3f | %.3f |\n", pt.N, pt.Power, pt.SuccessRate)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// HTML renders the Markdown report to an HTML fragment.
func (r PowerReport) HTML() []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return markdown.ToHTML([]byte(r.Markdown()), p, renderer)
}
