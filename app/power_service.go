package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"melpower/domain/core"
	"melpower/domain/sim"
	"melpower/internal"
	"melpower/internal/comparison"
	"melpower/internal/experiment"
	"melpower/internal/power"
	"melpower/ports"
)

// ServiceConfig holds the simulation settings shared by every request.
type ServiceConfig struct {
	MaxAttempts   int
	Workers       int
	Thresh25      float64
	Thresh75      float64
	Alpha         float64
	EqualVariance bool
}

// PowerService generates virtual experiments and estimates statistical power
// for lux and treatment comparisons.
type PowerService struct {
	source ports.EmpiricalSource
	rng    ports.RNGPort
	runs   ports.RunRepository // nil disables persistence
	cfg    ServiceConfig
	logger *internal.Logger

	mu        sync.Mutex
	generator *experiment.Generator
}

// NewPowerService creates the service. Tables are loaded on first use.
func NewPowerService(source ports.EmpiricalSource, rng ports.RNGPort, runs ports.RunRepository, cfg ServiceConfig, logger *internal.Logger) *PowerService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &PowerService{source: source, rng: rng, runs: runs, cfg: cfg, logger: logger.With("power-service")}
}

// Generator returns the experiment generator, loading tables if needed. A
// failed load is retried on the next call.
func (s *PowerService) Generator(ctx context.Context) (*experiment.Generator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generator != nil {
		return s.generator, nil
	}

	tables, err := s.source.Load(ctx)
	if err != nil {
		return nil, err
	}
	gen, err := experiment.NewGenerator(tables, s.cfg.MaxAttempts, s.logger)
	if err != nil {
		return nil, err
	}
	s.generator = gen
	return gen, nil
}

// DefaultVariationLevel keeps the full empirical between-subject spread.
const DefaultVariationLevel = 1.0

// PopulationRequest asks for n plausible individuals.
type PopulationRequest struct {
	N              int     `json:"n"`
	VariationLevel float64 `json:"individual_variation_level"`
	Seed           int64   `json:"seed"`
}

// NewPopulationRequest returns a request with the default variation level,
// ready to be overwritten by a decoded body.
func NewPopulationRequest() PopulationRequest {
	return PopulationRequest{VariationLevel: DefaultVariationLevel}
}

// PopulationResult is a population with its dose summary.
type PopulationResult struct {
	Population sim.Population               `json:"population"`
	Summary    experiment.PopulationSummary `json:"summary"`
}

func (s *PowerService) Population(ctx context.Context, req PopulationRequest) (*PopulationResult, error) {
	if req.VariationLevel < 0 || req.VariationLevel > 1 {
		return nil, core.NewRangeError("individual_variation_level", req.VariationLevel, 0, 1)
	}
	gen, err := s.Generator(ctx)
	if err != nil {
		return nil, err
	}
	rng := s.rng.SeededStream("population", req.Seed)
	pop, err := gen.VirtualPopulation(ctx, rng, req.N, s.cfg.Thresh25, s.cfg.Thresh75, req.VariationLevel, req.VariationLevel)
	if err != nil {
		return nil, err
	}
	summary, err := experiment.Summarize(pop)
	if err != nil {
		return nil, err
	}
	return &PopulationResult{Population: pop, Summary: summary}, nil
}

// ExperimentRequest describes one simulated experiment. Zero thresholds use
// the service defaults and a zero multiplier means no treatment.
type ExperimentRequest struct {
	experiment.Params
	Between bool  `json:"between"`
	Seed    int64 `json:"seed"`
}

// NewExperimentRequest returns a request with the default variation level.
func NewExperimentRequest() ExperimentRequest {
	return ExperimentRequest{Params: experiment.Params{VariationLevel: DefaultVariationLevel}}
}

func (s *PowerService) withDefaults(p experiment.Params) experiment.Params {
	if p.Thresh25 == 0 {
		p.Thresh25 = s.cfg.Thresh25
	}
	if p.Thresh75 == 0 {
		p.Thresh75 = s.cfg.Thresh75
	}
	if p.Multiplier == 0 {
		p.Multiplier = 1
	}
	return p
}

// Experiment measures every individual once at each lux level.
func (s *PowerService) Experiment(ctx context.Context, req ExperimentRequest) (sim.Measurements, error) {
	gen, err := s.Generator(ctx)
	if err != nil {
		return nil, err
	}
	return gen.VirtualExperiment(ctx, s.rng.SeededStream("experiment", req.Seed), s.withDefaults(req.Params))
}

// TreatmentExperiment measures an untreated and a treated condition.
func (s *PowerService) TreatmentExperiment(ctx context.Context, req ExperimentRequest) (sim.Measurements, error) {
	gen, err := s.Generator(ctx)
	if err != nil {
		return nil, err
	}
	return gen.VirtualTreatmentExperiment(ctx, s.rng.SeededStream("treatment-experiment", req.Seed), s.withDefaults(req.Params), req.Between)
}

// PowerRequest describes a Monte Carlo power analysis. Lux2 is used by lux
// comparisons; Multiplier and IsTreatedHigher by treatment comparisons.
// SampleSizes, when set, adds a power curve over those sizes.
type PowerRequest struct {
	Between         bool    `json:"between"`
	Lux1            float64 `json:"lux_1"`
	Lux2            float64 `json:"lux_2"`
	Multiplier      float64 `json:"treated_ed50_multiplier"`
	IsTreatedHigher bool    `json:"is_treated_higher"`
	N               int     `json:"n"`
	PopulationSize  int     `json:"population_size"`
	VariationLevel  float64 `json:"individual_variation_level"`
	Repetitions     int     `json:"nreps"`
	Seed            int64   `json:"seed"`
	SampleSizes     []int   `json:"sample_sizes,omitempty"`
}

// NewPowerRequest returns a request with the default variation level.
func NewPowerRequest() PowerRequest {
	return PowerRequest{VariationLevel: DefaultVariationLevel}
}

// PowerResult is a completed power analysis.
type PowerResult struct {
	Run        ports.PowerRun               `json:"run"`
	Results    sim.ResultSet                `json:"results"`
	Curve      []power.Point                `json:"curve,omitempty"`
	Population experiment.PopulationSummary `json:"population"`
}

// LuxPower estimates the power of detecting higher suppression at Lux2 than at Lux1.
func (s *PowerService) LuxPower(ctx context.Context, req PowerRequest) (*PowerResult, error) {
	if req.Lux1 == req.Lux2 {
		return nil, fmt.Errorf("%w: lux_1 and lux_2 must differ", core.ErrInvalidParameterRange)
	}
	params := experiment.Params{
		N:              req.PopulationSize,
		Lux:            []float64{req.Lux1, req.Lux2},
		VariationLevel: req.VariationLevel,
		Multiplier:     1,
	}
	design := power.LuxDesign{Between: req.Between, Lux1: req.Lux1, Lux2: req.Lux2, N: req.N}
	return s.runPower(ctx, "lux", req, params, design, func(ctx context.Context, gen *experiment.Generator, p experiment.Params) (sim.Measurements, error) {
		return gen.VirtualExperiment(ctx, s.rng.SeededStream("power-population", req.Seed), p)
	})
}

// TreatmentPower estimates the power of detecting the treatment effect at Lux1.
func (s *PowerService) TreatmentPower(ctx context.Context, req PowerRequest) (*PowerResult, error) {
	params := experiment.Params{
		N:              req.PopulationSize,
		Lux:            []float64{req.Lux1},
		VariationLevel: req.VariationLevel,
		Multiplier:     req.Multiplier,
	}
	design := power.TreatmentDesign{Between: req.Between, Lux: req.Lux1, N: req.N, IsTreatedHigher: req.IsTreatedHigher}
	return s.runPower(ctx, "treatment", req, params, design, func(ctx context.Context, gen *experiment.Generator, p experiment.Params) (sim.Measurements, error) {
		return gen.VirtualTreatmentExperiment(ctx, s.rng.SeededStream("power-population", req.Seed), p, req.Between)
	})
}

type populationFunc func(context.Context, *experiment.Generator, experiment.Params) (sim.Measurements, error)

func (s *PowerService) runPower(ctx context.Context, kind string, req PowerRequest, params experiment.Params, design power.Design, populate populationFunc) (*PowerResult, error) {
	start := time.Now()
	gen, err := s.Generator(ctx)
	if err != nil {
		return nil, err
	}

	params = s.withDefaults(params)
	rows, err := populate(ctx, gen, params)
	if err != nil {
		return nil, err
	}
	summary, err := experiment.Summarize(populationOf(rows))
	if err != nil {
		return nil, err
	}

	panel := comparison.NewPanel(rows)
	runner := power.NewRunner(comparison.NewEngine(comparison.Options{EqualVariance: s.cfg.EqualVariance}), s.rng, s.cfg.Workers, s.logger)

	results, err := runner.Run(ctx, req.Seed, panel, design, req.Repetitions)
	if err != nil {
		return nil, err
	}

	var curve []power.Point
	if len(req.SampleSizes) > 0 {
		if curve, err = runner.SweepSampleSizes(ctx, req.Seed, panel, design, req.SampleSizes, req.Repetitions, s.cfg.Alpha); err != nil {
			return nil, err
		}
	}

	run := ports.PowerRun{
		ID:                core.NewRunID(),
		Kind:              kind,
		Between:           req.Between,
		SampleSize:        req.N,
		PopulationSize:    req.PopulationSize,
		Lux1:              req.Lux1,
		Lux2:              req.Lux2,
		Multiplier:        params.Multiplier,
		VariationLevel:    req.VariationLevel,
		Repetitions:       req.Repetitions,
		Alpha:             s.cfg.Alpha,
		Seed:              req.Seed,
		SuccessRate:       results.SuccessRate(),
		Power:             results.Power(s.cfg.Alpha),
		TruncatedFraction: rows.TruncatedFraction(),
		CreatedAt:         time.Now().UTC(),
	}
	if s.runs != nil {
		if err := s.runs.SaveRun(ctx, &run); err != nil {
			return nil, err
		}
	}

	s.logger.Info("%s power run %s: n=%d nreps=%d power=%.3f success=%.3f in %s",
		kind, run.ID, req.N, req.Repetitions, run.Power, run.SuccessRate, time.Since(start))
	return &PowerResult{Run: run, Results: results, Curve: curve, Population: summary}, nil
}

// GetRun returns a persisted run.
func (s *PowerService) GetRun(ctx context.Context, id core.RunID) (*ports.PowerRun, error) {
	if s.runs == nil {
		return nil, core.ErrRunNotFound
	}
	return s.runs.GetRun(ctx, id)
}

// ListRuns returns the most recent persisted runs.
func (s *PowerService) ListRuns(ctx context.Context, limit int) ([]*ports.PowerRun, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.ListRuns(ctx, limit)
}

// populationOf recovers the distinct curves behind a measurement table.
func populationOf(rows sim.Measurements) sim.Population {
	seen := make(map[int]bool)
	var pop sim.Population
	for _, r := range rows {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		pop = append(pop, sim.CurveParams{P1: r.P1, P2: r.P2})
	}
	return pop
}
