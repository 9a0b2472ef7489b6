package main

import (
	"context"
	"errors"
	"os"
	"time"

	"budgeteer/internal/amqp"
	"budgeteer/internal/cli"
	"budgeteer/internal/config"
	"budgeteer/internal/log"
	"budgeteer/internal/services"
	"budgeteer/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting budgeteer-worker")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	ctx := context.Background()
	store := cli.InitBackend(ctx, logger, cfg)

	exporters, err := cli.InitExporters(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize exporters", log.FieldError, err)
		os.Exit(1)
	}
	if len(exporters) == 0 {
		logger.Warn("No exporter configured, events will only be logged")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}

	// No summary cache: only the API invalidates, so every event recomputes
	// from the store.
	summaries := services.NewSummaryService(store.Store, services.SummaryOptions{
		Location: cfg.Location(),
		Logger:   logger,
	})
	w := worker.NewExportWorker(summaries, exporters, logger)

	runCtx, done := cli.GracefulShutdown(logger, 15*time.Second, func(context.Context) {
		_ = amqpClient.Close()
		if store.Cleanup != nil {
			if err := store.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", log.FieldError, err)
			}
		}
	})

	logger.Info("Consuming events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue, "exporters", len(exporters))
	if err := amqpClient.Consume(runCtx, w); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(runCtx, done)
	logger.Info("Worker stopped")
}
