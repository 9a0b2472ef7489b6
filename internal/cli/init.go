// Package cli provides the initialization shared by cmd/budgeteer and
// cmd/budgeteer-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"budgeteer/internal/backend"
	"budgeteer/internal/cache"
	"budgeteer/internal/config"
	"budgeteer/internal/core"
	s3export "budgeteer/internal/export/s3"
	sheetsexport "budgeteer/internal/export/sheets"
	"budgeteer/internal/log"
	"budgeteer/internal/ports"
)

const cacheSweepInterval = time.Minute

// SetupLogger builds the root logger from the LOG_LEVEL and LOG_FORMAT
// environment and installs it as the slog default.
func SetupLogger(component string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(os.Getenv("LOG_LEVEL")),
		Format:    os.Getenv("LOG_FORMAT"),
		Component: component,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it with validate
// (Config.Validate or Config.ValidateWorker). Exits the process on failure.
func LoadAndValidateConfig(logger *log.Logger, validate func(*config.Config) error) *config.Config {
	cfg := config.Load()
	if err := validate(cfg); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend opens the configured store. Exits the process on failure.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldBackend, cfg.DataBackend, log.FieldError, err)
		os.Exit(1)
	}
	return res
}

// SummaryCache is the summary cache plus its teardown.
type SummaryCache struct {
	Store cache.Store[core.PeriodSummary]
	Close func()
}

// InitSummaryCache uses Redis when REDIS_ADDR is set and reachable, and a
// process-local LRU swept by a cache.Manager otherwise.
func InitSummaryCache(ctx context.Context, logger *log.Logger, cfg *config.Config) SummaryCache {
	logger = logger.WithComponent(log.ComponentCache)

	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err == nil {
			logger.Info("Using Redis summary cache", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
			return SummaryCache{
				Store: cache.NewRedis[core.PeriodSummary](rdb, "budgeteer:", cfg.CacheTTL),
				Close: func() { _ = rdb.Close() },
			}
		}
		logger.Warn("Redis unavailable, falling back to local cache", "addr", cfg.RedisAddr, log.FieldError, err)
	}

	lru := cache.NewLRUCache[core.PeriodSummary](cfg.CacheSize, cfg.CacheTTL)
	manager := cache.NewManager(logger)
	manager.Register(lru)
	manager.StartCleanup(cacheSweepInterval)
	// Invalidation only reaches this process; run a single API replica.
	logger.Info("Using local summary cache (single replica only)", "size", cfg.CacheSize, "ttl", cfg.CacheTTL)
	return SummaryCache{
		Store: cache.NewLocal[core.PeriodSummary](lru),
		Close: manager.Stop,
	}
}

// InitExporters builds every exporter whose configuration is present.
func InitExporters(ctx context.Context, logger *log.Logger, cfg *config.Config) ([]ports.SummaryExporter, error) {
	var out []ports.SummaryExporter

	if cfg.GoogleSpreadsheetID != "" {
		e, err := sheetsexport.New(ctx, sheetsexport.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("sheets exporter: %w", err)
		}
		out = append(out, e)
	}

	if cfg.S3Bucket != "" {
		e, err := s3export.New(ctx, s3export.Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			Prefix:          cfg.S3Prefix,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 exporter: %w", err)
		}
		out = append(out, e)
	}

	for _, e := range out {
		logger.Info("Exporter enabled", log.FieldExporter, e.Name())
	}
	return out, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
