package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"melpower/adapters/postgres/migrations"
	"melpower/internal/api"
	"melpower/internal/config"
	"melpower/internal/container"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	c, err := container.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Database.URL != "" {
		db, err := sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		if err := migrations.NewMigrator(db.DB, c.Logger).Up(ctx); err != nil {
			log.Fatalf("Failed to apply migrations: %v", err)
		}
		if err := c.InitWithDatabase(db); err != nil {
			log.Fatalf("Failed to initialize database components: %v", err)
		}
	} else {
		c.Logger.Warn("DATABASE_URL not set, power runs will not be persisted")
	}
	defer c.Shutdown(context.Background())

	// Fail at startup rather than on the first request if the draws are unusable.
	if _, err := c.Service().Generator(ctx); err != nil {
		log.Fatalf("Failed to load empirical tables: %v", err)
	}

	server := api.NewServer(c.Service(), cfg.Server.MaxConcurrent, c.Logger)
	if err := server.ListenAndServe(ctx, ":"+cfg.Server.Port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
