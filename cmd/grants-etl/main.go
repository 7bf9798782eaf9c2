// Command grants-etl refreshes the traffic-safety grants table: it runs at
// startup and then weekly. Failed downloads fall back to the static
// listings, so a run always leaves a table behind.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/civic-data-etl/internal/app"
	"github.com/couchcryptid/civic-data-etl/internal/config"
	"github.com/couchcryptid/civic-data-etl/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	svc, err := app.BuildGrants(cfg, logger, metrics)
	if err != nil {
		logger.Error("failed to build service", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Run(ctx); err != nil {
		logger.Error("service stopped with error", "error", err)
		stop()
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
