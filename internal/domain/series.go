package domain

import (
	"fmt"
	"sort"
	"time"
)

// Variable names a raw telemetry column.
type Variable string

const (
	WindSpeed          Variable = "wind_speed"
	Power              Variable = "power"
	AmbientTemperature Variable = "ambient_temperature"
)

// AllowedVariables is every variable the source can return, in column order.
var AllowedVariables = []Variable{WindSpeed, Power, AmbientTemperature}

// TrackedVariables are the variables the daily pipeline requests and aggregates.
var TrackedVariables = []Variable{WindSpeed, Power}

// ParseVariables validates names against AllowedVariables, preserving order
// and dropping duplicates.
func ParseVariables(names []string) ([]Variable, error) {
	out := make([]Variable, 0, len(names))
	seen := make(map[Variable]bool, len(names))
	for _, n := range names {
		v := Variable(n)
		if !v.Valid() {
			return nil, fmt.Errorf("%w: %q (allowed: %v)", ErrInvalidVariable, n, AllowedVariables)
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out, nil
}

// Valid reports whether v is one of AllowedVariables.
func (v Variable) Valid() bool {
	for _, a := range AllowedVariables {
		if v == a {
			return true
		}
	}
	return false
}

// Reading is a single variable value; Valid is false for "no value".
type Reading struct {
	Value float64
	Valid bool
}

// Present returns a valid Reading.
func Present(v float64) Reading { return Reading{Value: v, Valid: true} }

// Missing is the explicit "no value" marker.
var Missing = Reading{}

// RawSample is one minute of source telemetry.
type RawSample struct {
	Timestamp time.Time
	Values    map[Variable]Reading
}

// RawSeries is a time-indexed table over a window with one column per
// requested variable. Samples are sorted ascending with unique timestamps,
// all inside the window.
type RawSeries struct {
	Window    Window
	Variables []Variable
	Samples   []RawSample
}

// NewRawSeries builds a RawSeries, filling every requested variable that a
// sample lacks with Missing. It sorts by timestamp and rejects duplicates or
// samples outside the window with ErrInvalidResponseShape.
func NewRawSeries(w Window, vars []Variable, samples []RawSample) (RawSeries, error) {
	rows := make([]RawSample, len(samples))
	for i, s := range samples {
		if !w.Contains(s.Timestamp) {
			return RawSeries{}, fmt.Errorf("%w: timestamp %s outside window %s",
				ErrInvalidResponseShape, s.Timestamp.Format(time.RFC3339), w)
		}
		values := make(map[Variable]Reading, len(vars))
		for _, v := range vars {
			values[v] = s.Values[v]
		}
		rows[i] = RawSample{Timestamp: s.Timestamp.UTC(), Values: values}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Timestamp.Before(rows[j].Timestamp)
	})
	for i := 1; i < len(rows); i++ {
		if rows[i].Timestamp.Equal(rows[i-1].Timestamp) {
			return RawSeries{}, fmt.Errorf("%w: duplicate timestamp %s",
				ErrInvalidResponseShape, rows[i].Timestamp.Format(time.RFC3339))
		}
	}

	return RawSeries{Window: w, Variables: vars, Samples: rows}, nil
}

// Len returns the number of samples.
func (s RawSeries) Len() int { return len(s.Samples) }
