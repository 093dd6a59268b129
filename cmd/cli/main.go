package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"melpower/adapters/excel"
	"melpower/app"
	"melpower/internal/config"
	"melpower/internal/container"
	"melpower/internal/experiment"
	"melpower/internal/testkit"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "melpower",
		Short: "Simulate melatonin suppression experiments and estimate statistical power",
		Long: `Generate virtual populations of dose-response curves from posterior draws,
simulate lux and treatment experiments on them, and estimate the power of
t-test based study designs by Monte Carlo.

Configuration is read from the environment and an optional .env file:
  MELPOWER_DRAWS_FILE   xlsx workbook, CSV directory, JSON file or URL (default: synthetic tables)
  MELPOWER_SEED         default seed (42)
  MELPOWER_WORKERS      parallel repetitions (number of CPUs)
  MELPOWER_ALPHA        significance level (0.05)
  DATABASE_URL          persist power runs when set`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newPopulationCmd(),
		newExperimentCmd(),
		newTreatmentCmd(),
		newPowerCmd(),
		newDrawsCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadContainer() (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return container.New(cfg)
}

// seedOrDefault returns the --seed flag when given, else the configured seed.
func seedOrDefault(cmd *cobra.Command, seed int64, c *container.Container) int64 {
	if cmd.Flags().Changed("seed") {
		return seed
	}
	return c.Config.Simulation.Seed
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newPopulationCmd() *cobra.Command {
	var n int
	var variation float64
	var seed int64
	var summaryOnly bool

	cmd := &cobra.Command{
		Use:   "population",
		Short: "Sample a virtual population of plausible individuals",
		Long: `Sample individuals whose ED25 and ED75 fall inside the plausibility window.

Example: melpower population --n 500 --variation 0.5 --summary`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadContainer()
			if err != nil {
				return err
			}
			res, err := c.Service().Population(cmd.Context(), app.PopulationRequest{
				N: n, VariationLevel: variation, Seed: seedOrDefault(cmd, seed, c),
			})
			if err != nil {
				return err
			}
			if summaryOnly {
				return printJSON(res.Summary)
			}
			return printJSON(res)
		},
	}

	cmd.Flags().IntVar(&n, "n", 100, "Number of individuals")
	cmd.Flags().Float64Var(&variation, "variation", app.DefaultVariationLevel, "Individual variation level in [0, 1]")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed (default from MELPOWER_SEED)")
	cmd.Flags().BoolVar(&summaryOnly, "summary", false, "Print only the population summary")
	return cmd
}

type experimentFlags struct {
	params experiment.Params
	seed   int64
	out    string
}

func (f *experimentFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.params.N, "n", 20, "Number of individuals")
	cmd.Flags().Float64SliceVar(&f.params.Lux, "lux", []float64{10, 30, 100}, "Lux levels")
	cmd.Flags().Float64Var(&f.params.VariationLevel, "variation", app.DefaultVariationLevel, "Individual variation level in [0, 1]")
	cmd.Flags().Float64Var(&f.params.Multiplier, "multiplier", 1, "Multiplier on ED50 for treated individuals")
	cmd.Flags().Float64Var(&f.params.Thresh25, "thresh25", 0, "Plausibility multiplier on min ED25 (default from config)")
	cmd.Flags().Float64Var(&f.params.Thresh75, "thresh75", 0, "Plausibility multiplier on max ED75 (default from config)")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Random seed (default from MELPOWER_SEED)")
	cmd.Flags().StringVar(&f.out, "out", "", "Write measurements to an xlsx file instead of stdout")
}

func newExperimentCmd() *cobra.Command {
	var f experimentFlags

	cmd := &cobra.Command{
		Use:   "experiment",
		Short: "Simulate one measurement per individual and lux level",
		Long: `Simulate a virtual experiment. With --multiplier other than 1 every
individual is treated.

Example: melpower experiment --n 41 --lux 10,30,100,1000 --out experiment.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadContainer()
			if err != nil {
				return err
			}
			rows, err := c.Service().Experiment(cmd.Context(), app.ExperimentRequest{
				Params: f.params, Seed: seedOrDefault(cmd, f.seed, c),
			})
			if err != nil {
				return err
			}
			if f.out != "" {
				return excel.ExportMeasurements(f.out, rows)
			}
			return printJSON(rows)
		},
	}
	f.register(cmd)
	return cmd
}

func newTreatmentCmd() *cobra.Command {
	var f experimentFlags
	var between bool

	cmd := &cobra.Command{
		Use:   "treatment",
		Short: "Simulate an untreated and a treated condition",
		Long: `Simulate a treatment experiment. Between subjects, the first half of the
individuals (rounded half to even) stay untreated and the rest are treated.
Within subjects, every individual is measured in both conditions.

Example: melpower treatment --n 30 --lux 30 --multiplier 0.5 --between`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadContainer()
			if err != nil {
				return err
			}
			rows, err := c.Service().TreatmentExperiment(cmd.Context(), app.ExperimentRequest{
				Params: f.params, Between: between, Seed: seedOrDefault(cmd, f.seed, c),
			})
			if err != nil {
				return err
			}
			if frac := rows.TruncatedFraction(); frac > 0 {
				c.Logger.Warn("%.1f%% of individuals had treated p1 clamped at 0", 100*frac)
			}
			if f.out != "" {
				return excel.ExportMeasurements(f.out, rows)
			}
			return printJSON(rows)
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&between, "between", false, "Between-subject design")
	return cmd
}

func newDrawsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draws",
		Short: "Work with empirical draw tables",
	}

	var out string
	export := &cobra.Command{
		Use:   "template",
		Short: "Write the synthetic tables as a workbook in the layout the loader reads",
		RunE: func(cmd *cobra.Command, args []string) error {
			gen := testkit.NewEmpiricalGenerator(testkit.DefaultEmpiricalConfig())
			if err := excel.WriteTables(out, gen.P1Samples(), gen.RegressionDraws(), testkit.Estimates(), gen.SigmaFitDraws()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	export.Flags().StringVar(&out, "out", "draws.xlsx", "Output workbook")

	check := &cobra.Command{
		Use:   "check",
		Short: "Load and validate the configured draw tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadContainer()
			if err != nil {
				return err
			}
			tables, err := c.Source.Load(cmd.Context())
			if err != nil {
				return err
			}
			lower, upper, err := tables.Estimates.PlausibleBounds(c.Config.Simulation.Thresh25, c.Config.Simulation.Thresh75)
			if err != nil {
				return err
			}
			return printJSON(map[string]interface{}{
				"regression_draws": tables.Regression.Len(),
				"sigma_draws":      tables.SigmaFit.Len(),
				"median_p1":        tables.CDFInvFull(0.5),
				"plausible_ed25":   lower,
				"plausible_ed75":   upper,
			})
		},
	}

	cmd.AddCommand(export, check)
	return cmd
}
