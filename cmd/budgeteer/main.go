package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"budgeteer/internal/amqp"
	"budgeteer/internal/cli"
	"budgeteer/internal/config"
	apphttp "budgeteer/internal/http"
	"budgeteer/internal/log"
	"budgeteer/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).Validate)

	ctx := context.Background()
	store := cli.InitBackend(ctx, logger, cfg)
	summaryCache := cli.InitSummaryCache(ctx, logger, cfg)

	// Events are optional; without a broker nothing is exported.
	var (
		publisher  services.EventPublisher
		amqpClient *amqp.Client
	)
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without events", log.FieldError, err)
		} else {
			amqpClient, publisher = c, c
			logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	loc := cfg.Location()
	summaries := services.NewSummaryService(store.Store, services.SummaryOptions{
		Location: loc,
		Cache:    summaryCache.Store,
		Logger:   logger,
	})
	svc := apphttp.Services{
		Summaries:  summaries,
		Expenses:   services.NewExpenseService(store.Store, summaries, publisher, logger),
		Budgets:    services.NewBudgetService(store.Store, summaries, publisher, cfg.BudgetSaveConcurrency, logger),
		Categories: services.NewCategoryService(store.Store, summaries, logger),
	}

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		JWTSecret:          []byte(cfg.JWTSecret),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustForwarded:     cfg.TrustedProxy,
		Ready:              store.Ping,
		Logger:             logger,
	})

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		summaryCache.Close()
		if store.Cleanup != nil {
			if err := store.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", log.FieldError, err)
			}
		}
	})

	logger.Info("Starting budgeteer server",
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend,
		"timezone", loc.String(),
		"events", amqpClient != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
