// Command validate recomputes a day's aggregates straight from the source
// database and compares them with the measurements stored in the target. It
// reports missing, stale, and mismatched rows and exits non-zero on any
// difference.
//
// Usage:
//
//	go run ./cmd/validate -date 2024-04-26
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/couchcryptid/wind-telemetry-etl/internal/adapter/postgres"
	"github.com/couchcryptid/wind-telemetry-etl/internal/config"
	"github.com/couchcryptid/wind-telemetry-etl/internal/domain"
	"github.com/couchcryptid/wind-telemetry-etl/internal/observability"
)

const tolerance = 1e-9

func main() {
	if err := run(); err != nil {
		slog.Error("validation failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	date := flag.String("date", domain.Yesterday(), "partition date YYYY-MM-DD")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg)

	w, err := domain.BuildDayWindow(*date)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	samples, err := postgres.NewSourceStore(sourcePool).QuerySamples(ctx, w.Start, w.End, domain.TrackedVariables)
	if err != nil {
		return err
	}
	series, err := domain.NewRawSeries(w, domain.TrackedVariables, samples)
	if err != nil {
		return err
	}
	want := make(map[string]map[time.Time]float64)
	for _, r := range domain.Aggregate(series, w) {
		if want[r.Series] == nil {
			want[r.Series] = make(map[time.Time]float64)
		}
		want[r.Series][r.Timestamp] = r.Value
	}

	tgt := postgres.NewTargetStore(targetPool, logger)
	var problems []string
	for _, name := range domain.DerivedNames(domain.TrackedVariables) {
		rows, err := tgt.QueryMeasurements(ctx, name, w.Start, w.End)
		if err != nil {
			return err
		}
		problems = append(problems, compare(name, want[name], rows)...)
	}

	fmt.Printf("date: %s, source rows: %d, expected aggregates: %d\n", *date, series.Len(), countValues(want))
	if len(problems) == 0 {
		fmt.Println("OK: target matches source")
		return nil
	}
	sort.Strings(problems)
	for _, p := range problems {
		fmt.Println("  " + p)
	}
	return fmt.Errorf("%d discrepancies", len(problems))
}

func compare(name string, want map[time.Time]float64, got []domain.Measurement) []string {
	var problems []string
	seen := make(map[time.Time]bool, len(got))
	for _, m := range got {
		seen[m.Timestamp] = true
		exp, ok := want[m.Timestamp]
		if !ok {
			problems = append(problems, fmt.Sprintf("%s %s: stale row %g", name, m.Timestamp.Format(time.RFC3339), m.Value))
			continue
		}
		if math.Abs(exp-m.Value) > tolerance*math.Max(1, math.Abs(exp)) {
			problems = append(problems, fmt.Sprintf("%s %s: got %g, want %g", name, m.Timestamp.Format(time.RFC3339), m.Value, exp))
		}
	}
	for ts, v := range want {
		if !seen[ts] {
			problems = append(problems, fmt.Sprintf("%s %s: missing row, want %g", name, ts.Format(time.RFC3339), v))
		}
	}
	return problems
}

func countValues(m map[string]map[time.Time]float64) int {
	n := 0
	for _, v := range m {
		n += len(v)
	}
	return n
}
