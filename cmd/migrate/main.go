package main

import (
	"fmt"
	"os"

	"melpower/adapters/postgres/migrations"
	"melpower/internal"
	"melpower/internal/config"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

func main() {
	var databaseURL string

	rootCmd := &cobra.Command{
		Use:   "migrate [up|status]",
		Short: "Run database migrations",
		Long: `Run database schema migrations.

Commands:
  up      Apply all pending migrations
  status  Show migration status

The database URL defaults to DATABASE_URL.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"up", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if databaseURL == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				databaseURL = cfg.Database.URL
			}
			if databaseURL == "" {
				return fmt.Errorf("no database URL: set DATABASE_URL or --database-url")
			}

			db, err := sqlx.Connect("postgres", databaseURL)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			m := migrations.NewMigrator(db.DB, internal.NewDefaultLogger())
			switch args[0] {
			case "up":
				return m.Up(cmd.Context())
			case "status":
				statuses, err := m.Status(cmd.Context())
				if err != nil {
					return err
				}
				applied := 0
				for _, s := range statuses {
					state := "pending"
					if s.Applied {
						state = "applied"
						applied++
					}
					fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", s.Name, state)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\nSummary: %d/%d migrations applied\n", applied, len(statuses))
				return nil
			default:
				return fmt.Errorf("unknown action %q (use up or status)", args[0])
			}
		},
	}
	rootCmd.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection string")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
