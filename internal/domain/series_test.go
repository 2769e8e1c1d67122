package domain

import (
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVariables(t *testing.T) {
	vars, err := ParseVariables([]string{"power", "wind_speed", "power"})
	require.NoError(t, err)
	assert.Equal(t, []Variable{Power, WindSpeed}, vars)

	_, err = ParseVariables([]string{"wind_speed", "humidity"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidVariable)
	assert.Contains(t, err.Error(), "humidity")
}

func TestNewRawSeries_FillsMissingColumns(t *testing.T) {
	w := mustWindow("2024-01-10")
	s, err := NewRawSeries(w, TrackedVariables, []RawSample{
		{Timestamp: minute(w, 2), Values: map[Variable]Reading{WindSpeed: Present(3)}},
	})
	require.NoError(t, err)

	require.Equal(t, 1, s.Len())
	r, ok := s.Samples[0].Values[Power]
	assert.True(t, ok, "absent variable must be present as an explicit marker")
	assert.False(t, r.Valid)
	assert.Equal(t, Present(3), s.Samples[0].Values[WindSpeed])
}

func TestNewRawSeries_SortsAscending(t *testing.T) {
	w := mustWindow("2024-01-10")
	s, err := NewRawSeries(w, TrackedVariables, []RawSample{
		{Timestamp: minute(w, 9)},
		{Timestamp: minute(w, 1)},
		{Timestamp: minute(w, 5)},
	})
	require.NoError(t, err)

	assert.Equal(t, []time.Time{minute(w, 1), minute(w, 5), minute(w, 9)},
		[]time.Time{s.Samples[0].Timestamp, s.Samples[1].Timestamp, s.Samples[2].Timestamp})
}

func TestNewRawSeries_RejectsContractViolations(t *testing.T) {
	w := mustWindow("2024-01-10")

	_, err := NewRawSeries(w, TrackedVariables, []RawSample{{Timestamp: w.End}})
	assert.ErrorIs(t, err, ErrInvalidResponseShape)

	_, err = NewRawSeries(w, TrackedVariables, []RawSample{{Timestamp: minute(w, 3)}, {Timestamp: minute(w, 3)}})
	assert.ErrorIs(t, err, ErrInvalidResponseShape)
}

func TestDerivedNames(t *testing.T) {
	assert.Equal(t, []string{
		"wind_speed_mean_10m", "wind_speed_min_10m", "wind_speed_max_10m", "wind_speed_std_10m",
		"power_mean_10m", "power_min_10m", "power_max_10m", "power_std_10m",
	}, DerivedNames(TrackedVariables))
}

func TestToMeasurements(t *testing.T) {
	w := mustWindow("2024-01-10")
	records := []AggregateRecord{
		{Timestamp: w.Start, Series: "power_mean_10m", Value: 10},
		{Timestamp: w.Start, Series: "power_max_10m", Value: 12},
	}

	got, err := ToMeasurements(records, map[string]int64{"power_mean_10m": 4, "power_max_10m": 6})
	require.NoError(t, err)
	assert.Equal(t, []Measurement{
		{Timestamp: w.Start, SignalID: 4, Value: 10},
		{Timestamp: w.Start, SignalID: 6, Value: 12},
	}, got)

	_, err = ToMeasurements(records, map[string]int64{"power_mean_10m": 4})
	assert.Error(t, err)
}

func TestGenerator_Ranges(t *testing.T) {
	w := mustWindow("2024-01-10")
	gen := NewGenerator(rand.New(rand.NewPCG(1, 2)))

	samples := gen.Generate(w.Start, w.Start.Add(6*time.Hour))
	require.Len(t, samples, 360)
	for i, s := range samples {
		assert.Equal(t, minute(w, i), s.Timestamp)
		ws := s.Values[WindSpeed]
		p := s.Values[Power]
		temp := s.Values[AmbientTemperature]
		assert.True(t, ws.Valid && p.Valid && temp.Valid)
		assert.GreaterOrEqual(t, ws.Value, 0.0)
		assert.GreaterOrEqual(t, p.Value, 0.0)
		assert.GreaterOrEqual(t, temp.Value, minAmbientTemp)
		assert.Less(t, temp.Value, maxAmbientTemp)
	}
}

func TestRetryable(t *testing.T) {
	wrapped := &RunError{Date: "2024-01-10", Phase: PhaseFetch, Err: ErrSourceUnavailable}
	assert.True(t, Retryable(wrapped))
	assert.True(t, Retryable(errors.Join(ErrStore, errors.New("conn reset"))))
	assert.False(t, Retryable(&RunError{Date: "x", Phase: PhaseWindow, Err: ErrInvalidDateFormat}))
	assert.False(t, Retryable(ErrInvalidResponseShape))
	assert.Equal(t, "run 2024-01-10: fetch: source unavailable", wrapped.Error())
}
