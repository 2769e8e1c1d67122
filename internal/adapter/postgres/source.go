package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/wind-telemetry-etl/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	hasSamplesSQL    = `SELECT EXISTS (SELECT 1 FROM data)`
	maxTimestampSQL  = `SELECT max("timestamp") FROM data`
	sampleRangeWhere = ` FROM data WHERE "timestamp" >= $1 AND "timestamp" < $2 ORDER BY "timestamp"`
	samplePageWhere  = ` FROM data WHERE "timestamp" > $1 AND "timestamp" <= $2 ORDER BY "timestamp" LIMIT $3`
)

var sampleColumns = []string{"timestamp", "wind_speed", "power", "ambient_temperature"}

// SourceStore reads and seeds raw minute telemetry.
type SourceStore struct {
	pool *pgxpool.Pool
}

// NewSourceStore wraps an open pool.
func NewSourceStore(pool *pgxpool.Pool) *SourceStore {
	return &SourceStore{pool: pool}
}

// QuerySamples returns rows in [start, end) ordered by timestamp, with only
// the requested variables populated.
func (s *SourceStore) QuerySamples(ctx context.Context, start, end time.Time, vars []domain.Variable) ([]domain.RawSample, error) {
	cols, err := selectList(vars)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, "SELECT "+cols+sampleRangeWhere, start, end)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	return collectSamples(rows, vars)
}

// HasRows reports whether the source table holds any data. A missing table
// counts as empty.
func (s *SourceStore) HasRows(ctx context.Context) (bool, error) {
	var ok bool
	if err := s.pool.QueryRow(ctx, hasSamplesSQL).Scan(&ok); err != nil {
		if isMissingRelation(err) {
			return false, nil
		}
		return false, fmt.Errorf("check samples: %w", err)
	}
	return ok, nil
}

// InsertSamples bulk-loads fully populated samples.
func (s *SourceStore) InsertSamples(ctx context.Context, samples []domain.RawSample) (int, error) {
	if len(samples) == 0 {
		return 0, nil
	}
	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{"data"}, sampleColumns,
		pgx.CopyFromSlice(len(samples), func(i int) ([]any, error) {
			row := []any{samples[i].Timestamp}
			for _, v := range domain.AllowedVariables {
				r := samples[i].Values[v]
				if !r.Valid {
					return nil, fmt.Errorf("sample %s: missing %s", samples[i].Timestamp.Format(time.RFC3339), v)
				}
				row = append(row, r.Value)
			}
			return row, nil
		}))
	if err != nil {
		return 0, fmt.Errorf("copy samples: %w", err)
	}
	return int(n), nil
}

// Ping checks connectivity.
func (s *SourceStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func selectList(vars []domain.Variable) (string, error) {
	ids := []string{pgx.Identifier{"timestamp"}.Sanitize()}
	for _, v := range vars {
		if !v.Valid() {
			return "", fmt.Errorf("%w: %q", domain.ErrInvalidVariable, v)
		}
		ids = append(ids, pgx.Identifier{string(v)}.Sanitize())
	}
	return strings.Join(ids, ", "), nil
}

func collectSamples(rows pgx.Rows, vars []domain.Variable) ([]domain.RawSample, error) {
	defer rows.Close()

	out := make([]domain.RawSample, 0)
	values := make([]*float64, len(vars))
	dest := make([]any, len(vars)+1)
	for i := range values {
		dest[i+1] = &values[i]
	}

	for rows.Next() {
		var ts time.Time
		dest[0] = &ts
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		sample := domain.RawSample{Timestamp: ts.UTC(), Values: make(map[domain.Variable]domain.Reading, len(vars))}
		for i, v := range vars {
			if values[i] == nil {
				sample.Values[v] = domain.Missing
				continue
			}
			sample.Values[v] = domain.Present(*values[i])
		}
		out = append(out, sample)
	}
	return out, rows.Err()
}
