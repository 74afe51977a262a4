// Command migrate runs the embedded goose migrations against the configured
// database: migrate [up|down|status|reset|version].
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"estimate-api/internal/config"
	"estimate-api/internal/database"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [up|down|status|reset|version]\n", os.Args[0])
	}
	flag.Parse()

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}
	switch command {
	case "up", "down", "status", "reset", "version":
	default:
		flag.Usage()
		return fmt.Errorf("unknown migration command %q", command)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Storage.Driver != "postgres" {
		return fmt.Errorf("migrations need the postgres storage driver, got %q", cfg.Storage.Driver)
	}

	logger := config.NewLogger(cfg.Logger)
	ctx := context.Background()

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, command, logger); err != nil {
		return err
	}

	logger.Info().Str("command", command).Msg("migration command completed")
	return nil
}
