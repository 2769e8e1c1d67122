package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/couchcryptid/wind-telemetry-etl/internal/domain"
	"github.com/couchcryptid/wind-telemetry-etl/internal/observability"
	"github.com/google/uuid"
)

// SeriesFetcher retrieves the raw series for a window.
type SeriesFetcher interface {
	FetchSeries(ctx context.Context, w domain.Window, vars []domain.Variable) (domain.RawSeries, error)
}

// SignalResolver maps derived series names onto the signal dimension.
type SignalResolver interface {
	// ResolveSignals returns an id for every name, creating missing signals.
	// Concurrent first use of a name must not create duplicates.
	ResolveSignals(ctx context.Context, names []string) (domain.SignalResolution, error)

	// LookupSignals returns ids for the names that already exist, creating nothing.
	LookupSignals(ctx context.Context, names []string) (map[string]int64, error)
}

// MeasurementWriter replaces the measurements of a window.
type MeasurementWriter interface {
	// ReplaceWindow deletes every measurement in [w.Start, w.End) whose signal
	// is in signalIDs and inserts rows, as one atomic unit: either both happen
	// or the prior rows are left untouched. Calls for the same window are
	// serialized.
	ReplaceWindow(ctx context.Context, w domain.Window, signalIDs []int64, rows []domain.Measurement) (domain.WriteResult, error)
}

// Pipeline runs the daily aggregation for one date at a time.
type Pipeline struct {
	fetcher  SeriesFetcher
	resolver SignalResolver
	writer   MeasurementWriter
	logger   *slog.Logger
	metrics  *observability.Metrics
	vars     []domain.Variable
}

// New creates a Pipeline over the tracked variables.
func New(f SeriesFetcher, r SignalResolver, w MeasurementWriter, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		fetcher:  f,
		resolver: r,
		writer:   w,
		logger:   logger,
		metrics:  metrics,
		vars:     domain.TrackedVariables,
	}
}

// RunDate builds the UTC window for date, fetches and aggregates the raw
// series, resolves signals, and replaces the window's measurements. Failures
// are returned as *domain.RunError; nothing is retried here.
func (p *Pipeline) RunDate(ctx context.Context, date string) (domain.RunSummary, error) {
	started := time.Now()
	summary := domain.RunSummary{RunID: uuid.NewString(), Date: date}
	logger := p.logger.With("date", date, "run_id", summary.RunID)

	w, err := domain.BuildDayWindow(date)
	if err != nil {
		return summary, p.fail(logger, date, domain.PhaseWindow, err)
	}
	summary.WindowStart, summary.WindowEnd = w.Start, w.End
	logger = logger.With("window_start", w.Start, "window_end", w.End)
	logger.Info("run started")

	fetchStart := time.Now()
	series, err := p.fetcher.FetchSeries(ctx, w, p.vars)
	if err != nil {
		return summary, p.fail(logger, date, domain.PhaseFetch, err)
	}
	p.metrics.FetchDuration.Observe(time.Since(fetchStart).Seconds())
	summary.SourceRows = series.Len()
	p.metrics.SourceRows.Add(float64(series.Len()))
	logger.Debug("raw series fetched", "rows", series.Len())

	records := domain.Aggregate(series, w)
	summary.AggregateRows = len(records)
	p.metrics.AggregateRows.Add(float64(len(records)))

	ids, rows, err := p.resolve(ctx, records)
	if err != nil {
		return summary, p.fail(logger, date, domain.PhaseResolve, err)
	}

	result, err := p.writer.ReplaceWindow(ctx, w, ids, rows)
	if err != nil {
		return summary, p.fail(logger, date, domain.PhaseWrite, storeErr(err))
	}
	summary.Inserted = result.Inserted
	summary.Deleted = result.Deleted
	summary.Duration = time.Since(started)
	summary.CompletedAt = domain.Now()

	p.metrics.MeasurementsWritten.Add(float64(result.Inserted))
	p.metrics.MeasurementsDeleted.Add(float64(result.Deleted))
	p.metrics.Runs.WithLabelValues(observability.OutcomeSuccess).Inc()
	p.metrics.RunDuration.Observe(summary.Duration.Seconds())
	p.metrics.LastSuccessTimestamp.Set(float64(summary.CompletedAt.Unix()))

	if len(rows) == 0 {
		logger.Warn("no data in window, prior measurements cleared", "deleted", result.Deleted)
	}
	logger.Info("run completed",
		"source_rows", summary.SourceRows,
		"agg_rows", summary.AggregateRows,
		"inserted", summary.Inserted,
		"deleted", summary.Deleted,
		"duration", summary.Duration,
	)
	return summary, nil
}

// resolve creates signals for the produced series and looks up the remaining
// derived series of the tracked variables, so a re-run also clears series
// that no longer have data. It returns the write scope and the fact rows.
func (p *Pipeline) resolve(ctx context.Context, records []domain.AggregateRecord) ([]int64, []domain.Measurement, error) {
	produced := domain.SeriesNames(records)

	res, err := p.resolver.ResolveSignals(ctx, produced)
	if err != nil {
		return nil, nil, storeErr(err)
	}
	if len(res.Created) > 0 {
		p.metrics.SignalsCreated.Add(float64(len(res.Created)))
		p.logger.Info("signals created", "signals", res.Created)
	}

	var absent []string
	for _, name := range domain.DerivedNames(p.vars) {
		if _, ok := res.IDs[name]; !ok {
			absent = append(absent, name)
		}
	}
	existing := map[string]int64{}
	if len(absent) > 0 {
		existing, err = p.resolver.LookupSignals(ctx, absent)
		if err != nil {
			return nil, nil, storeErr(err)
		}
	}

	rows, err := domain.ToMeasurements(records, res.IDs)
	if err != nil {
		return nil, nil, err
	}

	ids := make([]int64, 0, len(res.IDs)+len(existing))
	for _, id := range res.IDs {
		ids = append(ids, id)
	}
	for _, id := range existing {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return slices.Compact(ids), rows, nil
}

func (p *Pipeline) fail(logger *slog.Logger, date, phase string, err error) error {
	p.metrics.Runs.WithLabelValues(observability.OutcomeFailure).Inc()
	logger.Error("run failed", "phase", phase, "error", err)
	return &domain.RunError{Date: date, Phase: phase, Err: err}
}

// storeErr tags store failures so callers can classify them as retryable.
func storeErr(err error) error {
	if errors.Is(err, domain.ErrStore) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStore, err)
}
