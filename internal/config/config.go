package config

import (
	"os"
	"runtime"
	"strconv"

	"melpower/internal/errors"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Simulation SimulationConfig
	Data       DataConfig
	Database   DatabaseConfig
	Server     ServerConfig
	LogLevel   string
}

// SimulationConfig holds sampling and Monte Carlo settings
type SimulationConfig struct {
	Seed          int64
	Workers       int
	MaxAttempts   int     // rejection sampling ceiling per individual
	Thresh25      float64 // multiplier on min(estimates.ed_25)
	Thresh75      float64 // multiplier on max(estimates.ed_75)
	Alpha         float64
	EqualVariance bool // pooled t-test for between-subject designs
}

// DataConfig locates the empirical draw tables
type DataConfig struct {
	DrawsFile  string // xlsx workbook, CSV directory or JSON document; empty uses synthetic tables
	DrawsToken string // bearer token when DrawsFile is an http(s) URL
}

// DatabaseConfig holds database connection settings. An empty URL disables persistence.
type DatabaseConfig struct {
	URL string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port          string
	MaxConcurrent int64
}

// Load reads .env (if present) and the environment, then validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	config := &Config{
		Simulation: SimulationConfig{
			Seed:          getEnvInt64OrDefault("MELPOWER_SEED", 42),
			Workers:       getEnvIntOrDefault("MELPOWER_WORKERS", runtime.NumCPU()),
			MaxAttempts:   getEnvIntOrDefault("MELPOWER_MAX_ATTEMPTS", 10000),
			Thresh25:      getEnvFloatOrDefault("MELPOWER_THRESH_25", 1.0),
			Thresh75:      getEnvFloatOrDefault("MELPOWER_THRESH_75", 1.0),
			Alpha:         getEnvFloatOrDefault("MELPOWER_ALPHA", 0.05),
			EqualVariance: getEnvBoolOrDefault("MELPOWER_EQUAL_VARIANCE", false),
		},
		Data: DataConfig{
			DrawsFile:  getEnvOrDefault("MELPOWER_DRAWS_FILE", ""),
			DrawsToken: getEnvOrDefault("MELPOWER_DRAWS_TOKEN", ""),
		},
		Database: DatabaseConfig{
			URL: getEnvOrDefault("DATABASE_URL", ""),
		},
		Server: ServerConfig{
			Port:          getEnvOrDefault("PORT", "8080"),
			MaxConcurrent: int64(getEnvIntOrDefault("MELPOWER_MAX_CONCURRENT", 2)),
		},
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

// Validate checks ranges that would otherwise fail deep inside a simulation.
func (c *Config) Validate() error {
	s := c.Simulation
	if s.Workers < 1 {
		return errors.ConfigInvalid("MELPOWER_WORKERS must be at least 1")
	}
	if s.MaxAttempts < 1 {
		return errors.ConfigInvalid("MELPOWER_MAX_ATTEMPTS must be at least 1")
	}
	if s.Thresh25 <= 0 || s.Thresh75 <= 0 {
		return errors.ConfigInvalid("plausibility thresholds must be positive")
	}
	if s.Alpha <= 0 || s.Alpha >= 1 {
		return errors.ConfigInvalid("MELPOWER_ALPHA must lie in (0, 1)")
	}
	if c.Server.MaxConcurrent < 1 {
		return errors.ConfigInvalid("MELPOWER_MAX_CONCURRENT must be at least 1")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
