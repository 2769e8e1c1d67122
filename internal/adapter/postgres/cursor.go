package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/wind-telemetry-etl/internal/domain"
)

// Cursor pages through the source table in timestamp order. The upper bound is
// fixed when the cursor is opened, so the sequence is finite even if rows are
// appended meanwhile. Next returns an empty batch once exhausted.
type Cursor struct {
	store    *SourceStore
	vars     []domain.Variable
	pageSize int
	after    time.Time
	until    time.Time
	done     bool
}

// OpenCursor snapshots the newest timestamp and returns a cursor over every
// row up to and including it.
func (s *SourceStore) OpenCursor(ctx context.Context, vars []domain.Variable, pageSize int) (*Cursor, error) {
	if pageSize < 1 {
		return nil, errors.New("cursor page size must be positive")
	}
	if _, err := selectList(vars); err != nil {
		return nil, err
	}

	var until *time.Time
	if err := s.pool.QueryRow(ctx, maxTimestampSQL).Scan(&until); err != nil {
		return nil, fmt.Errorf("open cursor: %w", err)
	}
	c := &Cursor{
		store:    s,
		vars:     vars,
		pageSize: pageSize,
		after:    time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if until == nil {
		c.done = true
		return c, nil
	}
	c.until = until.UTC()
	return c, nil
}

// Next returns the next batch of at most pageSize rows.
func (c *Cursor) Next(ctx context.Context) ([]domain.RawSample, error) {
	if c.done {
		return nil, nil
	}
	cols, err := selectList(c.vars)
	if err != nil {
		return nil, err
	}
	rows, err := c.store.pool.Query(ctx, "SELECT "+cols+samplePageWhere, c.after, c.until, c.pageSize)
	if err != nil {
		return nil, fmt.Errorf("cursor page: %w", err)
	}
	batch, err := collectSamples(rows, c.vars)
	if err != nil {
		return nil, err
	}
	if len(batch) < c.pageSize {
		c.done = true
	}
	if len(batch) > 0 {
		c.after = batch[len(batch)-1].Timestamp
	}
	return batch, nil
}
