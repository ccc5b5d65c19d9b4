package main

import (
	"context"
	"os"
	"time"

	"scadenze/internal/cli"
	"scadenze/internal/log"
	"scadenze/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentReconcile)
	logger.Info("Starting recurring-worker")

	result := cli.MustCreateBackend(context.Background(), logger, cfg)

	// Reminders go out through AMQP; without it the pass only logs.
	var publisher services.EventPublisher
	if result.Events != nil {
		publisher = result.Events
		logger.Info("AMQP client initialized - reminders will be published")
	} else {
		logger.Info("AMQP disabled - reminders will only be logged")
	}

	processor := services.NewReconcileProcessor(result.Engine, publisher, services.ReconcileProcessorConfig{
		Schedule:   cfg.ReconcileCron,
		RunOnStart: true,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		logger.Info("Shutting down recurring-worker...")
		if err := processor.Stop(ctx); err != nil {
			logger.Warn("Reconcile processor did not stop cleanly", log.FieldError, err)
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start reconcile processor", log.FieldError, err)
		_ = result.Cleanup()
		os.Exit(1)
	}
	logger.Info("Reconcile processor configured",
		"schedule", cfg.ReconcileCron,
		"max_lookback_periods", cfg.MaxLookbackPeriods)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Recurring-worker shutdown complete")
}
