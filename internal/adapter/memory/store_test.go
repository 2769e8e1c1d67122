package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/wind-telemetry-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWindow(t *testing.T) domain.Window {
	t.Helper()
	w, err := domain.BuildDayWindow("2024-03-05")
	require.NoError(t, err)
	return w
}

func TestStore_ResolveSignals_CreatesOnce(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, err := s.ResolveSignals(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, first.Created)

	second, err := s.ResolveSignals(ctx, []string{"b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, second.Created)
	assert.Equal(t, first.IDs["b"], second.IDs["b"])
	assert.NotEqual(t, second.IDs["b"], second.IDs["c"])
}

func TestStore_ResolveSignals_ConcurrentFirstUse(t *testing.T) {
	s := New()
	names := domain.DerivedNames(domain.TrackedVariables)

	var wg sync.WaitGroup
	results := make([]domain.SignalResolution, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.ResolveSignals(context.Background(), names)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	created := 0
	for _, r := range results {
		created += len(r.Created)
		assert.Equal(t, results[0].IDs, r.IDs)
	}
	assert.Equal(t, len(names), created)

	signals, err := s.ListSignals(context.Background())
	require.NoError(t, err)
	assert.Len(t, signals, len(names))
}

func TestStore_LookupSignals_DoesNotCreate(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.ResolveSignals(ctx, []string{"a"})
	require.NoError(t, err)

	got, err := s.LookupSignals(ctx, []string{"a", "missing"})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	signals, err := s.ListSignals(ctx)
	require.NoError(t, err)
	assert.Len(t, signals, 1)
}

func TestStore_ReplaceWindow(t *testing.T) {
	s := New()
	ctx := context.Background()
	w := testWindow(t)
	res, err := s.ResolveSignals(ctx, []string{"a", "b"})
	require.NoError(t, err)
	a, b := res.IDs["a"], res.IDs["b"]

	nextDay := w.End.Add(10 * time.Minute)
	s.Seed([]domain.Measurement{
		{Timestamp: w.Start, SignalID: a, Value: 1},
		{Timestamp: w.Start, SignalID: b, Value: 2},
		{Timestamp: nextDay, SignalID: a, Value: 3},
	})

	out, err := s.ReplaceWindow(ctx, w, []int64{a}, []domain.Measurement{
		{Timestamp: w.Start, SignalID: a, Value: 10},
		{Timestamp: w.Start.Add(10 * time.Minute), SignalID: a, Value: 11},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.WriteResult{Deleted: 1, Inserted: 2}, out)

	assert.Equal(t, []domain.Measurement{
		{Timestamp: w.Start, SignalID: a, Value: 10},
		{Timestamp: w.Start, SignalID: b, Value: 2},
		{Timestamp: w.Start.Add(10 * time.Minute), SignalID: a, Value: 11},
		{Timestamp: nextDay, SignalID: a, Value: 3},
	}, s.Measurements())
}

func TestStore_ReplaceWindow_RejectedBatchKeepsPriorRows(t *testing.T) {
	s := New()
	ctx := context.Background()
	w := testWindow(t)
	res, err := s.ResolveSignals(ctx, []string{"a"})
	require.NoError(t, err)
	a := res.IDs["a"]
	prior := []domain.Measurement{{Timestamp: w.Start, SignalID: a, Value: 1}}
	s.Seed(prior)

	_, err = s.ReplaceWindow(ctx, w, []int64{a}, []domain.Measurement{
		{Timestamp: w.Start, SignalID: a, Value: 5},
		{Timestamp: w.Start, SignalID: 999, Value: 6},
	})
	require.Error(t, err)
	assert.Equal(t, prior, s.Measurements())
}

func TestStore_QueryMeasurements(t *testing.T) {
	s := New()
	ctx := context.Background()
	w := testWindow(t)
	res, err := s.ResolveSignals(ctx, []string{"a"})
	require.NoError(t, err)
	s.Seed([]domain.Measurement{
		{Timestamp: w.Start.Add(20 * time.Minute), SignalID: res.IDs["a"], Value: 2},
		{Timestamp: w.Start, SignalID: res.IDs["a"], Value: 1},
		{Timestamp: w.End, SignalID: res.IDs["a"], Value: 3},
	})

	got, err := s.QueryMeasurements(ctx, "a", w.Start, w.End)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1.0, got[0].Value)
	assert.Equal(t, 2.0, got[1].Value)

	none, err := s.QueryMeasurements(ctx, "unknown", w.Start, w.End)
	require.NoError(t, err)
	assert.Empty(t, none)
}
