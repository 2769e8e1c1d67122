package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const sourceSchemaSQL = `
CREATE TABLE IF NOT EXISTS data (
    "timestamp"         TIMESTAMPTZ PRIMARY KEY,
    wind_speed          DOUBLE PRECISION NOT NULL,
    power               DOUBLE PRECISION NOT NULL,
    ambient_temperature DOUBLE PRECISION NOT NULL
)`

var targetSchemaSQL = []string{
	`CREATE TABLE IF NOT EXISTS signal (
    id   SERIAL PRIMARY KEY,
    name VARCHAR(64) NOT NULL UNIQUE
)`,
	`CREATE TABLE IF NOT EXISTS data (
    "timestamp" TIMESTAMPTZ NOT NULL,
    signal_id   INTEGER NOT NULL REFERENCES signal (id),
    value       DOUBLE PRECISION NOT NULL,
    PRIMARY KEY ("timestamp", signal_id)
)`,
	`CREATE INDEX IF NOT EXISTS data_signal_id_timestamp_idx ON data (signal_id, "timestamp")`,
}

// EnsureSourceSchema creates the raw telemetry table if missing.
func EnsureSourceSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, sourceSchemaSQL); err != nil {
		return fmt.Errorf("create source schema: %w", err)
	}
	return nil
}

// EnsureTargetSchema creates the signal dimension and measurement fact tables
// if missing.
func EnsureTargetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range targetSchemaSQL {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create target schema: %w", err)
		}
	}
	return nil
}
