package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"estimate-api/internal/auth"
	"estimate-api/internal/config"
	"estimate-api/internal/database"
	"estimate-api/internal/events"
	"estimate-api/internal/export"
	"estimate-api/internal/handler"
	"estimate-api/internal/idempotency"
	"estimate-api/internal/metrics"
	"estimate-api/internal/repository"
	"estimate-api/internal/router"
	"estimate-api/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := config.NewLogger(cfg.Logger)
	logger.Info().Str("storage", cfg.Storage.Driver).Msg("starting estimate API server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalogRepo, quoteRepo, closeStore, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	guard := idempotency.Guard(idempotency.NopGuard{})
	if cfg.Redis.Enabled {
		client, err := idempotency.OpenRedis(ctx, cfg.Redis.URL, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer client.Close()

		redisGuard, err := idempotency.NewRedisGuard(client, cfg.Idempotency.InProgressTTL, logger)
		if err != nil {
			return fmt.Errorf("failed to initialise idempotency guard: %w", err)
		}
		guard = redisGuard
	} else {
		logger.Info().Msg("cross-instance idempotency guard disabled (single instance mode)")
	}

	publisher := events.Publisher(events.NopPublisher{})
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), logger)
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("publishing quote events to kafka")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close event publisher")
		}
	}()

	archive, err := openArchive(ctx, cfg, logger)
	if err != nil {
		return err
	}

	issuer, err := auth.NewIssuer(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialise token verifier: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Initialize services
	priceBook := service.NewPriceBook(catalogRepo, logger)
	quoteService := service.NewQuoteService(priceBook, quoteRepo, guard, publisher, m, cfg.Idempotency.InProgressTTL, logger)
	exporter := export.NewExporter(quoteService, archive, logger)

	mux := router.New(router.Handlers{
		Quotes:  handler.NewQuoteHandler(quoteService, logger),
		Catalog: handler.NewCatalogHandler(priceBook, logger),
		Exports: handler.NewExportHandler(exporter, logger),
	}, router.Options{Verifier: issuer, Metrics: m, Gatherer: reg, Logger: logger})

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// openStorage selects the repository driver. The memory driver is seeded with
// the sample catalog and loses quotes on restart.
func openStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.CatalogRepository, repository.QuoteRepository, func(), error) {
	if cfg.Storage.Driver == "memory" {
		catalog := repository.NewMemoryCatalogRepository()
		repository.DefaultCatalog().Load(catalog)
		logger.Warn().Msg("using in-memory storage, quotes are not durable")
		return catalog, repository.NewMemoryQuoteRepository(logger), func() {}, nil
	}

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := database.MigrateUp(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	return repository.NewCatalogRepository(pool, logger), repository.NewQuoteRepository(pool, logger), pool.Close, nil
}

// openArchive builds the export archive: S3 when enabled, with the local
// directory as fallback.
func openArchive(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (export.Archive, error) {
	local, err := export.NewFileArchive(cfg.Export.LocalDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise local export archive: %w", err)
	}

	if !cfg.S3.Enabled {
		logger.Info().Msg("using local file system for exports (S3 disabled)")
		return local, nil
	}

	s3Archive, err := export.NewS3Archive(ctx, cfg.S3.Bucket, cfg.S3.Region, cfg.S3.Prefix, logger)
	if err != nil {
		logger.Warn().
			Err(err).
			Msg("failed to initialise S3 archive, falling back to local file system only")
		return local, nil
	}

	return export.NewFallbackArchive(s3Archive, local, logger), nil
}
