package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/wind-telemetry-etl/internal/domain"
)

// SeedSource fills an empty source table with synthetic minute samples for
// [start, end). It returns 0 without writing when rows already exist.
func SeedSource(ctx context.Context, src *SourceStore, gen *domain.Generator, start, end time.Time, logger *slog.Logger) (int, error) {
	has, err := src.HasRows(ctx)
	if err != nil {
		return 0, err
	}
	if has {
		logger.Info("source already seeded, skipping")
		return 0, nil
	}

	n, err := src.InsertSamples(ctx, gen.Generate(start, end))
	if err != nil {
		return 0, err
	}
	logger.Info("source seeded", "rows", n, "start", start, "end", end)
	return n, nil
}

// SeedTargetRaw copies the source's raw variables into the target as one
// signal per variable, page by page. It is skipped when the target already
// holds measurements.
func SeedTargetRaw(ctx context.Context, src *SourceStore, tgt *TargetStore, pageSize int, logger *slog.Logger) (int, error) {
	has, err := tgt.HasMeasurements(ctx)
	if err != nil {
		return 0, err
	}
	if has {
		logger.Info("target already seeded, skipping")
		return 0, nil
	}

	vars := domain.AllowedVariables
	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = string(v)
	}
	res, err := tgt.ResolveSignals(ctx, names)
	if err != nil {
		return 0, fmt.Errorf("resolve raw signals: %w", err)
	}

	cur, err := src.OpenCursor(ctx, vars, pageSize)
	if err != nil {
		return 0, err
	}

	total := 0
	for page := 1; ; page++ {
		batch, err := cur.Next(ctx)
		if err != nil {
			return total, err
		}
		if len(batch) == 0 {
			break
		}

		rows := make([]domain.Measurement, 0, len(batch)*len(vars))
		for _, s := range batch {
			for _, v := range vars {
				if r := s.Values[v]; r.Valid {
					rows = append(rows, domain.Measurement{Timestamp: s.Timestamp, SignalID: res.IDs[string(v)], Value: r.Value})
				}
			}
		}
		n, err := tgt.InsertMeasurements(ctx, rows)
		if err != nil {
			return total, err
		}
		total += n
		logger.Debug("target page seeded", "page", page, "rows", n)
	}
	logger.Info("target seeded", "rows", total)
	return total, nil
}
