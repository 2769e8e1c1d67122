// Command sourceapi serves raw telemetry over REST, plus read access to the
// aggregated target store.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/wind-telemetry-etl/internal/adapter/api"
	"github.com/couchcryptid/wind-telemetry-etl/internal/adapter/postgres"
	"github.com/couchcryptid/wind-telemetry-etl/internal/config"
	"github.com/couchcryptid/wind-telemetry-etl/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sourcePool, err := postgres.Connect(ctx, cfg.SourceDBURL, cfg.DBConnAttempts, cfg.DBConnDelay, logger)
	if err != nil {
		logger.Error("failed to connect to source database", "error", err)
		os.Exit(1)
	}
	defer sourcePool.Close()

	targetPool, err := postgres.Connect(ctx, cfg.TargetDBURL, cfg.DBConnAttempts, cfg.DBConnDelay, logger)
	if err != nil {
		logger.Error("failed to connect to target database", "error", err)
		os.Exit(1)
	}
	defer targetPool.Close()

	srv := api.NewServer(cfg.APIAddr,
		postgres.NewSourceStore(sourcePool),
		postgres.NewTargetStore(targetPool, logger),
		api.HealthInfo{DBHost: cfg.DBHost, SourceDB: cfg.SourceDBName, TargetDB: cfg.TargetDBName},
		logger,
	)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}
