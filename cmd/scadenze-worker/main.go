package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"scadenze/internal/cache"
	"scadenze/internal/cli"
	"scadenze/internal/ledger"
	"scadenze/internal/ledger/google"
	"scadenze/internal/log"
	"scadenze/internal/worker"
)

const (
	catchUpInterval = 15 * time.Minute
	catchUpBatch    = 100
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentWorker)
	logger.Info("Starting scadenze-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	result := cli.MustCreateBackend(context.Background(), logger, cfg)
	if result.Events == nil {
		logger.Error("AMQP broker unreachable", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		_ = result.Cleanup()
		os.Exit(1)
	}

	// Mirror to Google Sheets unless the engine already writes there.
	var mirror ledger.Ledger
	var sheetsCache *cache.Manager
	if cfg.GoogleSpreadsheetID != "" && cfg.LedgerBackend != "sheets" {
		sheetsClient, err := google.New(context.Background(), google.Config{
			SpreadsheetID: cfg.GoogleSpreadsheetID,
			SheetName:     cfg.GoogleSheetName,
			CacheTTL:      cfg.SheetsCacheTTL,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			_ = result.Cleanup()
			os.Exit(1)
		}
		sheetsCache = cache.NewManager(logger.WithComponent(log.ComponentSheets).Logger)
		sheetsCache.Register(sheetsClient)
		sheetsCache.StartCleanup(context.Background(), 5*time.Minute)
		mirror = sheetsClient
		logger.Info("Google Sheets mirror enabled", "sheet", cfg.GoogleSheetName)
	} else {
		logger.Info("Google Sheets mirror disabled - worker will only log events")
	}

	syncWorker := worker.NewSyncWorker(result.Ledger, mirror, result.Store, catchUpBatch)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		logger.Info("Shutting down worker...")
		if sheetsCache != nil {
			sheetsCache.Stop()
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	if n, err := syncWorker.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", log.FieldError, err)
	} else if n > 0 {
		logger.Info("Startup sync mirrored missing movements", "count", n)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return result.Events.ConsumeOccurrenceEvents(gctx, syncWorker.HandleOccurrenceEvent)
	})
	if mirror != nil {
		g.Go(func() error {
			ticker := time.NewTicker(catchUpInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if _, err := syncWorker.StartupSyncCheck(gctx); err != nil {
						logger.Error("Periodic catch-up failed", log.FieldError, err)
					}
				}
			}
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		_ = result.Cleanup()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
