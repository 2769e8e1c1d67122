package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/couchcryptid/wind-telemetry-etl/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	lookupSignalsSQL = `SELECT id, name FROM signal WHERE name = ANY($1)`
	insertSignalSQL  = `INSERT INTO signal (name) VALUES ($1) RETURNING id`
	selectSignalSQL  = `SELECT id FROM signal WHERE name = $1`
	listSignalsSQL   = `SELECT id, name FROM signal ORDER BY name`

	lockWindowSQL   = `SELECT pg_advisory_xact_lock($1)`
	deleteWindowSQL = `
DELETE FROM data
WHERE "timestamp" >= $1 AND "timestamp" < $2 AND signal_id = ANY($3)`

	queryMeasurementsSQL = `
SELECT d."timestamp", d.signal_id, d.value
FROM data d
JOIN signal s ON s.id = d.signal_id
WHERE s.name = $1 AND d."timestamp" >= $2 AND d."timestamp" < $3
ORDER BY d."timestamp"`

	hasMeasurementsSQL = `SELECT EXISTS (SELECT 1 FROM data)`
)

var measurementColumns = []string{"timestamp", "signal_id", "value"}

// TargetStore holds the signal dimension and measurement facts. It implements
// pipeline.SignalResolver and pipeline.MeasurementWriter.
type TargetStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewTargetStore wraps an open pool.
func NewTargetStore(pool *pgxpool.Pool, logger *slog.Logger) *TargetStore {
	return &TargetStore{pool: pool, logger: logger}
}

// ResolveSignals returns an id for every name. Missing names are inserted one
// at a time; a unique violation means a concurrent run created the name first,
// so the existing row is re-read.
func (s *TargetStore) ResolveSignals(ctx context.Context, names []string) (domain.SignalResolution, error) {
	res := domain.SignalResolution{IDs: make(map[string]int64, len(names))}
	if len(names) == 0 {
		return res, nil
	}

	existing, err := s.LookupSignals(ctx, names)
	if err != nil {
		return res, err
	}
	for _, name := range names {
		if id, ok := existing[name]; ok {
			res.IDs[name] = id
			continue
		}
		if _, done := res.IDs[name]; done {
			continue
		}

		var id int64
		err := s.pool.QueryRow(ctx, insertSignalSQL, name).Scan(&id)
		switch {
		case err == nil:
			res.Created = append(res.Created, name)
		case isUniqueViolation(err):
			s.logger.Debug("signal created concurrently, re-reading", "signal", name)
			if err := s.pool.QueryRow(ctx, selectSignalSQL, name).Scan(&id); err != nil {
				return res, fmt.Errorf("re-read signal %s: %w", name, err)
			}
		default:
			return res, fmt.Errorf("insert signal %s: %w", name, err)
		}
		res.IDs[name] = id
	}
	return res, nil
}

// LookupSignals returns ids for the names that already exist.
func (s *TargetStore) LookupSignals(ctx context.Context, names []string) (map[string]int64, error) {
	out := make(map[string]int64, len(names))
	if len(names) == 0 {
		return out, nil
	}

	rows, err := s.pool.Query(ctx, lookupSignalsSQL, names)
	if err != nil {
		return nil, fmt.Errorf("lookup signals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		out[name] = id
	}
	return out, rows.Err()
}

// ReplaceWindow deletes the window's rows for signalIDs and inserts rows in a
// single transaction. A transaction-scoped advisory lock keyed on the window
// start serializes concurrent runs for the same date.
func (s *TargetStore) ReplaceWindow(ctx context.Context, w domain.Window, signalIDs []int64, rows []domain.Measurement) (domain.WriteResult, error) {
	var res domain.WriteResult
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, lockWindowSQL, WindowLockKey(w)); err != nil {
			return fmt.Errorf("lock window: %w", err)
		}

		tag, err := tx.Exec(ctx, deleteWindowSQL, w.Start, w.End, signalIDs)
		if err != nil {
			return fmt.Errorf("delete window: %w", err)
		}
		res.Deleted = int(tag.RowsAffected())

		if len(rows) == 0 {
			return nil
		}
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"data"}, measurementColumns,
			pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
				r := rows[i]
				return []any{r.Timestamp, r.SignalID, r.Value}, nil
			}))
		if err != nil {
			return fmt.Errorf("insert measurements: %w", err)
		}
		res.Inserted = int(n)
		return nil
	})
	if err != nil {
		return domain.WriteResult{}, err
	}
	return res, nil
}

// WindowLockKey derives the advisory lock key for a window from its start.
func WindowLockKey(w domain.Window) int64 {
	return int64(xxhash.Sum64String("measurements:" + w.Start.UTC().Format(time.RFC3339)))
}

// ListSignals returns all signals ordered by name.
func (s *TargetStore) ListSignals(ctx context.Context) ([]domain.Signal, error) {
	rows, err := s.pool.Query(ctx, listSignalsSQL)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	defer rows.Close()

	signals := make([]domain.Signal, 0)
	for rows.Next() {
		var sig domain.Signal
		if err := rows.Scan(&sig.ID, &sig.Name); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}

// QueryMeasurements returns the named signal's measurements in [start, end).
func (s *TargetStore) QueryMeasurements(ctx context.Context, signal string, start, end time.Time) ([]domain.Measurement, error) {
	rows, err := s.pool.Query(ctx, queryMeasurementsSQL, signal, start, end)
	if err != nil {
		return nil, fmt.Errorf("query measurements: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Measurement, 0)
	for rows.Next() {
		var m domain.Measurement
		if err := rows.Scan(&m.Timestamp, &m.SignalID, &m.Value); err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		m.Timestamp = m.Timestamp.UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

// HasMeasurements reports whether any fact row exists. A missing table counts
// as empty.
func (s *TargetStore) HasMeasurements(ctx context.Context) (bool, error) {
	var ok bool
	if err := s.pool.QueryRow(ctx, hasMeasurementsSQL).Scan(&ok); err != nil {
		if isMissingRelation(err) {
			return false, nil
		}
		return false, fmt.Errorf("check measurements: %w", err)
	}
	return ok, nil
}

// InsertMeasurements bulk-loads rows without touching existing data.
func (s *TargetStore) InsertMeasurements(ctx context.Context, rows []domain.Measurement) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{"data"}, measurementColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			return []any{rows[i].Timestamp, rows[i].SignalID, rows[i].Value}, nil
		}))
	if err != nil {
		return 0, fmt.Errorf("copy measurements: %w", err)
	}
	return int(n), nil
}

// Ping checks connectivity.
func (s *TargetStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", domain.ErrStore, err)
	}
	return nil
}
