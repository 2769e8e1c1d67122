// Command etl runs the daily aggregation for a single UTC date and prints the
// run summary as JSON.
//
// Usage:
//
//	go run ./cmd/etl -date 2024-04-26 -base-url http://localhost:8000
//
// Exit status is 0 on success, 1 when the run fails, and 2 on usage errors.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	kafkaadapter "github.com/couchcryptid/wind-telemetry-etl/internal/adapter/kafka"
	"github.com/couchcryptid/wind-telemetry-etl/internal/adapter/memory"
	"github.com/couchcryptid/wind-telemetry-etl/internal/adapter/postgres"
	"github.com/couchcryptid/wind-telemetry-etl/internal/adapter/source"
	"github.com/couchcryptid/wind-telemetry-etl/internal/config"
	"github.com/couchcryptid/wind-telemetry-etl/internal/domain"
	"github.com/couchcryptid/wind-telemetry-etl/internal/observability"
	"github.com/couchcryptid/wind-telemetry-etl/internal/pipeline"
)

const (
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("etl", flag.ContinueOnError)
	date := fs.String("date", "", "partition date YYYY-MM-DD (default: yesterday, UTC)")
	baseURL := fs.String("base-url", "", "source API base URL (default: API_BASE_URL)")
	dryRun := fs.Bool("dry-run", false, "aggregate into an in-memory store instead of the target database")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected arguments: %v\n", fs.Args())
		fs.Usage()
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return exitFailure
	}
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	if *date == "" {
		*date = domain.Yesterday()
	}
	if *baseURL == "" {
		*baseURL = cfg.APIBaseURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetcher := source.NewClient(*baseURL, cfg.SourceTimeout, logger)

	var (
		resolver pipeline.SignalResolver
		writer   pipeline.MeasurementWriter
	)
	if *dryRun {
		store := memory.New()
		resolver, writer = store, store
		logger.Info("dry run, writing to memory")
	} else {
		pool, err := postgres.Connect(ctx, cfg.TargetDBURL, cfg.DBConnAttempts, cfg.DBConnDelay, logger)
		if err != nil {
			logger.Error("failed to connect to target database", "error", err)
			return exitFailure
		}
		defer pool.Close()
		if err := postgres.EnsureTargetSchema(ctx, pool); err != nil {
			logger.Error("failed to ensure target schema", "error", err)
			return exitFailure
		}
		store := postgres.NewTargetStore(pool, logger)
		resolver, writer = store, store
	}

	p := pipeline.New(fetcher, resolver, writer, logger, metrics)
	summary, err := p.RunDate(ctx, *date)
	if err != nil {
		var runErr *domain.RunError
		if errors.As(err, &runErr) {
			logger.Error("run failed", "date", runErr.Date, "phase", runErr.Phase, "retryable", domain.Retryable(err), "error", runErr.Err)
		}
		return exitFailure
	}

	if cfg.KafkaEnabled {
		publisher := kafkaadapter.NewPublisher(cfg, logger)
		if err := publisher.PublishRun(ctx, summary); err != nil {
			logger.Warn("publish run event failed", "error", err)
		}
		if err := publisher.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		logger.Error("failed to write summary", "error", err)
		return exitFailure
	}
	return 0
}
