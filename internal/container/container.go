package container

import (
	"context"
	"fmt"
	"strings"

	"melpower/adapters/excel"
	"melpower/adapters/jsondraws"
	"melpower/adapters/postgres"
	"melpower/adapters/rng"
	"melpower/app"
	"melpower/internal"
	"melpower/internal/config"
	"melpower/internal/testkit"
	"melpower/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB *sqlx.DB

	RNG     ports.RNGPort
	Source  ports.EmpiricalSource
	RunRepo ports.RunRepository // nil without a database

	PowerService *app.PowerService
}

// New creates a container without persistence. Call InitWithDatabase before
// Service to enable run storage.
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	logger := internal.NewLogger(internal.ParseLogLevel(cfg.LogLevel))

	source, err := NewEmpiricalSource(cfg.Data, logger)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config: cfg,
		Logger: logger,
		RNG:    rng.NewSeededAdapter(),
		Source: source,
	}, nil
}

// NewEmpiricalSource picks a loader from the draws location: JSON documents
// and URLs go through jsondraws, anything else through the workbook reader.
// An empty location serves synthetic tables.
func NewEmpiricalSource(cfg config.DataConfig, logger *internal.Logger) (ports.EmpiricalSource, error) {
	loc := cfg.DrawsFile
	switch {
	case loc == "":
		logger.Warn("MELPOWER_DRAWS_FILE not set, using synthetic empirical tables")
		kit, err := testkit.NewTestKit()
		if err != nil {
			return nil, err
		}
		return kit.Source(), nil
	case strings.HasPrefix(loc, "http://"), strings.HasPrefix(loc, "https://"):
		var opts []jsondraws.Option
		if cfg.DrawsToken != "" {
			opts = append(opts, jsondraws.WithBearerToken(cfg.DrawsToken))
		}
		return jsondraws.NewLoader(loc, logger, opts...), nil
	case strings.HasSuffix(strings.ToLower(loc), ".json"):
		return jsondraws.NewLoader(loc, logger), nil
	default:
		return excel.NewDataReader(loc, logger), nil
	}
}

// InitWithDatabase enables run persistence.
func (c *Container) InitWithDatabase(db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}
	if err := db.Ping(); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}
	c.DB = db
	c.RunRepo = postgres.NewRunRepository(db)
	c.Logger.Info("run persistence enabled")
	return nil
}

// Service returns the power service, building it on first call.
func (c *Container) Service() *app.PowerService {
	if c.PowerService == nil {
		sim := c.Config.Simulation
		c.PowerService = app.NewPowerService(c.Source, c.RNG, c.RunRepo, app.ServiceConfig{
			MaxAttempts:   sim.MaxAttempts,
			Workers:       sim.Workers,
			Thresh25:      sim.Thresh25,
			Thresh75:      sim.Thresh75,
			Alpha:         sim.Alpha,
			EqualVariance: sim.EqualVariance,
		}, c.Logger)
	}
	return c.PowerService
}

// Shutdown releases the database connection.
func (c *Container) Shutdown(ctx context.Context) error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
