// Package memory provides an in-process target store with the same contracts
// as the postgres adapter. Data is lost on restart; useful for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/wind-telemetry-etl/internal/domain"
)

type factKey struct {
	ts       int64 // unix nanos
	signalID int64
}

// Store implements pipeline.SignalResolver and pipeline.MeasurementWriter.
type Store struct {
	mu      sync.RWMutex
	nextID  int64
	signals map[string]int64
	facts   map[factKey]float64
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		signals: make(map[string]int64),
		facts:   make(map[factKey]float64),
	}
}

// ResolveSignals returns an id for every name, creating missing signals.
func (s *Store) ResolveSignals(ctx context.Context, names []string) (domain.SignalResolution, error) {
	if err := ctx.Err(); err != nil {
		return domain.SignalResolution{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res := domain.SignalResolution{IDs: make(map[string]int64, len(names))}
	for _, name := range names {
		id, ok := s.signals[name]
		if !ok {
			s.nextID++
			id = s.nextID
			s.signals[name] = id
			res.Created = append(res.Created, name)
		}
		res.IDs[name] = id
	}
	return res, nil
}

// LookupSignals returns ids for the names that already exist.
func (s *Store) LookupSignals(ctx context.Context, names []string) (map[string]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int64, len(names))
	for _, name := range names {
		if id, ok := s.signals[name]; ok {
			out[name] = id
		}
	}
	return out, nil
}

// ReplaceWindow deletes and inserts under one lock. Rows are validated before
// anything is mutated, so a rejected batch leaves prior rows in place.
func (s *Store) ReplaceWindow(ctx context.Context, w domain.Window, signalIDs []int64, rows []domain.Measurement) (domain.WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.WriteResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	known := make(map[int64]bool, len(s.signals))
	for _, id := range s.signals {
		known[id] = true
	}
	fresh := make(map[factKey]float64, len(rows))
	for _, r := range rows {
		if !known[r.SignalID] {
			return domain.WriteResult{}, fmt.Errorf("insert measurement: unknown signal id %d", r.SignalID)
		}
		if !w.Contains(r.Timestamp) {
			return domain.WriteResult{}, fmt.Errorf("insert measurement: timestamp %s outside window %s", r.Timestamp, w)
		}
		k := factKey{ts: r.Timestamp.UnixNano(), signalID: r.SignalID}
		if _, dup := fresh[k]; dup {
			return domain.WriteResult{}, fmt.Errorf("insert measurement: duplicate key (%s, %d)", r.Timestamp, r.SignalID)
		}
		fresh[k] = r.Value
	}

	scope := make(map[int64]bool, len(signalIDs))
	for _, id := range signalIDs {
		scope[id] = true
	}
	inScope := func(k factKey) bool {
		return scope[k.signalID] && w.Contains(time.Unix(0, k.ts).UTC())
	}
	for k := range fresh {
		if _, exists := s.facts[k]; exists && !inScope(k) {
			return domain.WriteResult{}, fmt.Errorf("insert measurement: duplicate key (%d, %d) outside replace scope", k.ts, k.signalID)
		}
	}

	var res domain.WriteResult
	for k := range s.facts {
		if inScope(k) {
			delete(s.facts, k)
			res.Deleted++
		}
	}
	for k, v := range fresh {
		s.facts[k] = v
		res.Inserted++
	}
	return res, nil
}

// Seed inserts measurements directly, bypassing window replacement.
func (s *Store) Seed(rows []domain.Measurement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.facts[factKey{ts: r.Timestamp.UnixNano(), signalID: r.SignalID}] = r.Value
	}
}

// ListSignals returns all signals ordered by name.
func (s *Store) ListSignals(ctx context.Context) ([]domain.Signal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Signal, 0, len(s.signals))
	for name, id := range s.signals {
		out = append(out, domain.Signal{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// QueryMeasurements returns the named signal's measurements in [start, end),
// ordered by timestamp. An unknown signal yields no rows.
func (s *Store) QueryMeasurements(ctx context.Context, signal string, start, end time.Time) ([]domain.Measurement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.signals[signal]
	if !ok {
		return []domain.Measurement{}, nil
	}
	w := domain.Window{Start: start, End: end}
	out := make([]domain.Measurement, 0)
	for k, v := range s.facts {
		ts := time.Unix(0, k.ts).UTC()
		if k.signalID == id && w.Contains(ts) {
			out = append(out, domain.Measurement{Timestamp: ts, SignalID: id, Value: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Measurements returns every stored measurement ordered by (timestamp, signal id).
func (s *Store) Measurements() []domain.Measurement {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Measurement, 0, len(s.facts))
	for k, v := range s.facts {
		out = append(out, domain.Measurement{Timestamp: time.Unix(0, k.ts).UTC(), SignalID: k.signalID, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].SignalID < out[j].SignalID
	})
	return out
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }
