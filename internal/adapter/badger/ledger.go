// Package badger keeps the scheduler's run ledger in an embedded BadgerDB.
package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/wind-telemetry-etl/internal/domain"
	"github.com/dgraph-io/badger/v4"
)

var (
	logPrefix     = []byte("log/")
	successPrefix = []byte("ok/")
	sequenceKey   = []byte("seq/log")
)

// Config holds ledger storage settings.
type Config struct {
	// Path to the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in RAM (for testing).
	InMemory bool
}

// Ledger records every scheduled attempt in insertion order and indexes the
// dates that have succeeded. It implements pipeline.RunLedger.
type Ledger struct {
	db  *badger.DB
	seq *badger.Sequence
}

// Open opens or creates the ledger.
func Open(cfg Config, logger *slog.Logger) (*Ledger, error) {
	path := cfg.Path
	if cfg.InMemory {
		path = ""
	}
	opts := badger.DefaultOptions(path).
		WithInMemory(cfg.InMemory).
		WithNumVersionsToKeep(1).
		WithLogger(slogAdapter{logger.With("component", "badger")})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	seq, err := db.GetSequence(sequenceKey, 64)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger sequence: %w", err)
	}
	return &Ledger{db: db, seq: seq}, nil
}

// Record appends an entry. A successful entry also marks its date done.
func (l *Ledger) Record(ctx context.Context, entry domain.LedgerEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode ledger entry: %w", err)
	}
	n, err := l.seq.Next()
	if err != nil {
		return fmt.Errorf("ledger sequence: %w", err)
	}

	return l.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(logKey(n), value); err != nil {
			return err
		}
		if entry.Status == domain.RunSucceeded {
			return txn.Set(successKey(entry.Date), value)
		}
		return nil
	})
}

// Succeeded reports whether any successful attempt was recorded for date.
func (l *Ledger) Succeeded(ctx context.Context, date string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	err := l.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(successKey(date))
		return err
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("ledger lookup %s: %w", date, err)
	}
}

// List returns up to limit entries, newest first.
func (l *Ledger) List(ctx context.Context, limit int) ([]domain.LedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]domain.LedgerEntry, 0)
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, logPrefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(logPrefix) && len(out) < limit; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var entry domain.LedgerEntry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				return fmt.Errorf("decode ledger entry: %w", err)
			}
			out = append(out, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the sequence lease and closes the database.
func (l *Ledger) Close() error {
	return errors.Join(l.seq.Release(), l.db.Close())
}

func logKey(n uint64) []byte {
	key := make([]byte, len(logPrefix)+8)
	copy(key, logPrefix)
	binary.BigEndian.PutUint64(key[len(logPrefix):], n)
	return key
}

func successKey(date string) []byte {
	return append(append([]byte{}, successPrefix...), date...)
}

// slogAdapter routes badger's internal logging into slog. Badger's info
// output is chatty, so it is demoted to debug.
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Errorf(format string, args ...any) {
	a.logger.Error(fmt.Sprintf(format, args...))
}

func (a slogAdapter) Warningf(format string, args ...any) {
	a.logger.Warn(fmt.Sprintf(format, args...))
}

func (a slogAdapter) Infof(format string, args ...any) {
	a.logger.Debug(fmt.Sprintf(format, args...))
}

func (a slogAdapter) Debugf(format string, args ...any) {
	a.logger.Debug(fmt.Sprintf(format, args...))
}
