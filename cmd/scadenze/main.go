package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"scadenze/internal/cli"
	apphttp "scadenze/internal/http"
	"scadenze/internal/log"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)

	result := cli.MustCreateBackend(context.Background(), logger, cfg)

	var ready func(ctx context.Context) error
	if p, ok := result.Store.(interface{ Ping(context.Context) error }); ok {
		ready = p.Ping
	}

	srv := apphttp.NewServer(":"+cfg.Port, result.Engine, result.Ledger, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AllowedOrigins:     cfg.AllowedOrigins,
		Logger:             logger,
		Ready:              ready,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting scadenze server",
		"port", cfg.Port,
		"store", cfg.StoreBackend,
		"ledger", cfg.LedgerBackend,
		"events", result.Events != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		_ = result.Cleanup()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
