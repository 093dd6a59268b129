package main

import (
	"fmt"
	"os"

	"melpower/adapters/excel"
	"melpower/adapters/report"
	"melpower/app"
	"melpower/internal/container"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

type powerFlags struct {
	req    app.PowerRequest
	out    string
	report string
}

func (f *powerFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.req.Between, "between", false, "Between-subject design")
	cmd.Flags().IntVar(&f.req.N, "n", 20, "Sample size (per group between subjects)")
	cmd.Flags().IntVar(&f.req.PopulationSize, "population", 500, "Size of the simulated population sampled from")
	cmd.Flags().Float64Var(&f.req.VariationLevel, "variation", app.DefaultVariationLevel, "Individual variation level in [0, 1]")
	cmd.Flags().IntVar(&f.req.Repetitions, "nreps", 1000, "Monte Carlo repetitions")
	cmd.Flags().Int64Var(&f.req.Seed, "seed", 0, "Random seed (default from MELPOWER_SEED)")
	cmd.Flags().IntSliceVar(&f.req.SampleSizes, "sweep", nil, "Also estimate power at these sample sizes")
	cmd.Flags().StringVar(&f.out, "out", "", "Write per-repetition results to an xlsx file")
	cmd.Flags().StringVar(&f.report, "report", "", "Write an HTML report to this file")
}

// openForPower loads the container and enables persistence when DATABASE_URL is set.
func openForPower() (*container.Container, error) {
	c, err := loadContainer()
	if err != nil {
		return nil, err
	}
	if url := c.Config.Database.URL; url != "" {
		db, err := sqlx.Connect("postgres", url)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := c.InitWithDatabase(db); err != nil {
			db.Close()
			return nil, err
		}
	}
	return c, nil
}

func (f *powerFlags) finish(cmd *cobra.Command, c *container.Container, res *app.PowerResult) error {
	if f.out != "" {
		if err := excel.ExportResults(f.out, res.Results, res.Curve); err != nil {
			return err
		}
	}
	if f.report != "" {
		pop := res.Population
		html := report.PowerReport{Run: res.Run, Population: &pop, Curve: res.Curve}.HTML()
		if err := os.WriteFile(f.report, html, 0o644); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	if err := c.Shutdown(cmd.Context()); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s: power %.3f (alpha %g), direction correct %.3f over %d repetitions\n",
		res.Run.ID, res.Run.Power, res.Run.Alpha, res.Run.SuccessRate, res.Run.Repetitions)
	for _, p := range res.Curve {
		fmt.Fprintf(cmd.OutOrStdout(), "  n=%-4d power %.3f  direction correct %.3f\n", p.N, p.Power, p.SuccessRate)
	}
	return nil
}

func newPowerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "power",
		Short: "Estimate statistical power by Monte Carlo",
	}
	cmd.AddCommand(newPowerLuxCmd(), newPowerTreatmentCmd())
	return cmd
}

func newPowerLuxCmd() *cobra.Command {
	var f powerFlags

	cmd := &cobra.Command{
		Use:   "lux",
		Short: "Power to detect higher suppression at lux2 than at lux1",
		Long: `Simulate a population measured at two lux levels and repeatedly sample
n individuals, testing the difference with a paired (within) or Welch
(between) t-test.

Example: melpower power lux --lux1 10 --lux2 30 --n 15 --nreps 2000 --sweep 5,10,20,40`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openForPower()
			if err != nil {
				return err
			}
			f.req.Seed = seedOrDefault(cmd, f.req.Seed, c)
			res, err := c.Service().LuxPower(cmd.Context(), f.req)
			if err != nil {
				return err
			}
			return f.finish(cmd, c, res)
		},
	}
	f.register(cmd)
	cmd.Flags().Float64Var(&f.req.Lux1, "lux1", 10, "Lower lux level")
	cmd.Flags().Float64Var(&f.req.Lux2, "lux2", 100, "Higher lux level")
	return cmd
}

func newPowerTreatmentCmd() *cobra.Command {
	var f powerFlags

	cmd := &cobra.Command{
		Use:   "treatment",
		Short: "Power to detect a treatment that shifts ED50",
		Long: `Simulate a treatment experiment at one lux level and repeatedly sample n
individuals (n per group between subjects), testing treated against untreated.

Example: melpower power treatment --lux 30 --multiplier 0.5 --higher --n 20 --between`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openForPower()
			if err != nil {
				return err
			}
			f.req.Seed = seedOrDefault(cmd, f.req.Seed, c)
			res, err := c.Service().TreatmentPower(cmd.Context(), f.req)
			if err != nil {
				return err
			}
			if res.Run.TruncatedFraction > 0 {
				c.Logger.Warn("%.1f%% of individuals had treated p1 clamped at 0", 100*res.Run.TruncatedFraction)
			}
			return f.finish(cmd, c, res)
		},
	}
	f.register(cmd)
	cmd.Flags().Float64Var(&f.req.Lux1, "lux", 30, "Lux level")
	cmd.Flags().Float64Var(&f.req.Multiplier, "multiplier", 0.5, "Multiplier on ED50 for treated individuals")
	cmd.Flags().BoolVar(&f.req.IsTreatedHigher, "higher", true, "Expect higher suppression when treated")
	return cmd
}
