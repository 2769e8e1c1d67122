// Package postgres implements the source and target stores on PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pingTimeout = 2 * time.Second

// Connect opens a pool and waits until the server answers, trying up to
// attempts times with delay between tries.
func Connect(ctx context.Context, databaseURL string, attempts int, delay time.Duration, logger *slog.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if err := waitForPing(ctx, pool, attempts, delay, logger); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func waitForPing(ctx context.Context, pool *pgxpool.Pool, attempts int, delay time.Duration, logger *slog.Logger) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = pool.Ping(pingCtx)
		cancel()
		if err == nil {
			logger.Info("database connection established", "database", pool.Config().ConnConfig.Database, "attempt", attempt)
			return nil
		}

		logger.Warn("database not ready, retrying",
			"database", pool.Config().ConnConfig.Database,
			"attempt", attempt,
			"max_attempts", attempts,
			"error", err,
		)
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("database not available after %d attempts: %w", attempts, err)
}

// EnsureDatabase creates the database named in databaseURL when it does not
// exist, connecting through the server's maintenance database.
func EnsureDatabase(ctx context.Context, databaseURL string, attempts int, delay time.Duration, logger *slog.Logger) error {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return fmt.Errorf("parse database url: %w", err)
	}
	name := u.Path
	if len(name) > 0 && name[0] == '/' {
		name = name[1:]
	}
	if name == "" {
		return fmt.Errorf("database url %q has no database name", u.Redacted())
	}
	u.Path = "/postgres"

	admin, err := Connect(ctx, u.String(), attempts, delay, logger)
	if err != nil {
		return err
	}
	defer admin.Close()

	var exists bool
	if err := admin.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists); err != nil {
		return fmt.Errorf("check database %s: %w", name, err)
	}
	if exists {
		return nil
	}
	if _, err := admin.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize()); err != nil && !isDuplicateDatabase(err) {
		return fmt.Errorf("create database %s: %w", name, err)
	}
	logger.Info("database created", "database", name)
	return nil
}
