// Command scheduler runs the daily aggregation once per day for the previous
// UTC date, catching up on recent dates that have no recorded success.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	badgerledger "github.com/couchcryptid/wind-telemetry-etl/internal/adapter/badger"
	httpadapter "github.com/couchcryptid/wind-telemetry-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/wind-telemetry-etl/internal/adapter/kafka"
	"github.com/couchcryptid/wind-telemetry-etl/internal/adapter/postgres"
	"github.com/couchcryptid/wind-telemetry-etl/internal/adapter/source"
	"github.com/couchcryptid/wind-telemetry-etl/internal/config"
	"github.com/couchcryptid/wind-telemetry-etl/internal/observability"
	"github.com/couchcryptid/wind-telemetry-etl/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Connect(ctx, cfg.TargetDBURL, cfg.DBConnAttempts, cfg.DBConnDelay, logger)
	if err != nil {
		logger.Error("failed to connect to target database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := postgres.EnsureTargetSchema(ctx, pool); err != nil {
		logger.Error("failed to ensure target schema", "error", err)
		os.Exit(1)
	}
	store := postgres.NewTargetStore(pool, logger)

	ledger, err := badgerledger.Open(badgerledger.Config{Path: cfg.LedgerPath}, logger)
	if err != nil {
		logger.Error("failed to open run ledger", "error", err, "path", cfg.LedgerPath)
		os.Exit(1)
	}

	var publisher pipeline.RunPublisher
	var kafkaPub *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPub = kafkaadapter.NewPublisher(cfg, logger)
		publisher = kafkaPub
		logger.Info("run events enabled", "topic", cfg.KafkaRunsTopic)
	}

	fetcher := source.NewClient(cfg.APIBaseURL, cfg.SourceTimeout, logger)
	p := pipeline.New(fetcher, store, store, logger, metrics)
	sched := pipeline.NewScheduler(p, ledger, publisher, store, clockwork.NewRealClock(), pipeline.ScheduleConfig{
		HourUTC:     cfg.ScheduleHourUTC,
		CatchupDays: cfg.ScheduleCatchupDays,
		MaxAttempts: cfg.ScheduleMaxAttempts,
		BaseBackoff: 30 * time.Second,
		MaxBackoff:  10 * time.Minute,
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, sched, ledger, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := sched.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("scheduler did not stop before shutdown timeout")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPub != nil {
		if err := kafkaPub.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := ledger.Close(); err != nil {
		logger.Error("run ledger close error", "error", err)
	}

	logger.Info("shutdown complete")
}
