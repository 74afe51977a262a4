// Command seed loads the sample cake catalog into the configured database.
// Running it again resets the sample rows to their original prices.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"estimate-api/internal/config"
	"estimate-api/internal/database"
	"estimate-api/internal/repository"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	migrate := flag.Bool("migrate", true, "apply pending migrations before seeding")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Storage.Driver != "postgres" {
		return fmt.Errorf("seeding needs the postgres storage driver, got %q", cfg.Storage.Driver)
	}

	logger := config.NewLogger(cfg.Logger)
	ctx := context.Background()

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if *migrate {
		if err := database.MigrateUp(ctx, pool, logger); err != nil {
			return fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	catalog := repository.DefaultCatalog()
	if err := repository.SeedCatalog(ctx, pool, catalog, logger); err != nil {
		return err
	}

	logger.Info().
		Int("base_items", len(catalog.Items)).
		Int("options", len(catalog.Options)).
		Msg("sample catalog seeded")
	return nil
}
