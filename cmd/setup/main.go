// Command setup creates the source and target databases and schemas, seeds
// the source with synthetic minute telemetry, and copies the raw variables
// into the target as signals. Each seeding step is skipped when its store
// already holds data.
//
// Usage:
//
//	go run ./cmd/setup -days 10 -seed 42 -now 2024-04-27T00:00:00Z
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/wind-telemetry-etl/internal/adapter/postgres"
	"github.com/couchcryptid/wind-telemetry-etl/internal/config"
	"github.com/couchcryptid/wind-telemetry-etl/internal/domain"
	"github.com/couchcryptid/wind-telemetry-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

func main() {
	if err := run(); err != nil {
		slog.Error("setup failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	days := flag.Int("days", cfg.SeedDays, "days of minute data to generate")
	seed := flag.Uint64("seed", 0, "random seed for reproducible data (0: random)")
	now := flag.String("now", "", "pin the current time (RFC 3339) so the seeded range is reproducible")
	skipTarget := flag.Bool("skip-target", false, "do not copy raw signals into the target")
	flag.Parse()

	if *days < 1 {
		return fmt.Errorf("-days must be positive")
	}
	if *now != "" {
		ts, err := time.Parse(time.RFC3339, *now)
		if err != nil {
			return fmt.Errorf("invalid -now: %w", err)
		}
		domain.SetClock(clockwork.NewFakeClockAt(ts))
		defer domain.SetClock(nil)
	}

	logger := observability.NewLogger(cfg)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, dbURL := range []string{cfg.SourceDBURL, cfg.TargetDBURL} {
		if err := postgres.EnsureDatabase(ctx, dbURL, cfg.DBConnAttempts, cfg.DBConnDelay, logger); err != nil {
			return err
		}
	}

	sourcePool, err := postgres.Connect(ctx, cfg.SourceDBURL, cfg.DBConnAttempts, cfg.DBConnDelay, logger)
	if err != nil {
		return err
	}
	defer sourcePool.Close()
	targetPool, err := postgres.Connect(ctx, cfg.TargetDBURL, cfg.DBConnAttempts, cfg.DBConnDelay, logger)
	if err != nil {
		return err
	}
	defer targetPool.Close()

	if err := postgres.EnsureSourceSchema(ctx, sourcePool); err != nil {
		return err
	}
	if err := postgres.EnsureTargetSchema(ctx, targetPool); err != nil {
		return err
	}

	var rng *rand.Rand
	if *seed != 0 {
		rng = rand.New(rand.NewPCG(*seed, *seed))
	}
	src := postgres.NewSourceStore(sourcePool)
	start, end := domain.SeedRange(*days)
	if _, err := postgres.SeedSource(ctx, src, domain.NewGenerator(rng), start, end, logger); err != nil {
		return fmt.Errorf("seed source: %w", err)
	}

	if *skipTarget {
		return nil
	}
	tgt := postgres.NewTargetStore(targetPool, logger)
	if _, err := postgres.SeedTargetRaw(ctx, src, tgt, cfg.SeedPageSize, logger); err != nil {
		return fmt.Errorf("seed target: %w", err)
	}
	logger.Info("setup complete")
	return nil
}
