package experiment

import (
	"melpower/domain/curve"
	"melpower/domain/empirical"
	"melpower/domain/sim"

	"github.com/montanaflynn/stats"
)

// PopulationSummary describes the effective-dose spread of a population.
type PopulationSummary struct {
	N          int     `json:"n"`
	MedianED25 float64 `json:"median_ed25"`
	MedianED50 float64 `json:"median_ed50"`
	MedianED75 float64 `json:"median_ed75"`
	P1Q25      float64 `json:"p1_q25"`
	P1Q75      float64 `json:"p1_q75"`
	MedianP2   float64 `json:"median_p2"`
}

// Summarize computes medians of ed25/ed50/ed75 and the p1 interquartile range.
// Quartiles interpolate between ranks, so every n >= 1 is summarized.
func Summarize(pop sim.Population) (PopulationSummary, error) {
	n := len(pop)
	ed25 := make([]float64, n)
	ed50 := make([]float64, n)
	ed75 := make([]float64, n)
	p1 := make([]float64, n)
	p2 := make([]float64, n)
	for i, c := range pop {
		ed25[i] = c.ED25()
		ed50[i] = curve.ED50(c.P1)
		ed75[i] = c.ED75()
		p1[i] = c.P1
		p2[i] = c.P2
	}

	var s PopulationSummary
	var err error
	s.N = n
	if s.MedianED25, err = stats.Median(ed25); err != nil {
		return s, err
	}
	if s.MedianED50, err = stats.Median(ed50); err != nil {
		return s, err
	}
	if s.MedianED75, err = stats.Median(ed75); err != nil {
		return s, err
	}
	q, err := empirical.NewEmpiricalInverseCDF(p1)
	if err != nil {
		return s, err
	}
	s.P1Q25, s.P1Q75 = q(0.25), q(0.75)
	s.MedianP2, err = stats.Median(p2)
	return s, err
}
