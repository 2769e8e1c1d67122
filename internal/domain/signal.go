package domain

import (
	"fmt"
	"time"
)

// Statistic is a per-bin summary function.
type Statistic string

const (
	StatMean Statistic = "mean"
	StatMin  Statistic = "min"
	StatMax  Statistic = "max"
	StatStd  Statistic = "std"
)

// Statistics lists the computed statistics in output order.
var Statistics = []Statistic{StatMean, StatMin, StatMax, StatStd}

// BinSuffix tags derived series with their bin width.
const BinSuffix = "10m"

// SeriesName returns the derived series name, e.g. "power_max_10m".
func SeriesName(v Variable, s Statistic) string {
	return fmt.Sprintf("%s_%s_%s", v, s, BinSuffix)
}

// DerivedNames returns every derived series name for vars, variable-major.
func DerivedNames(vars []Variable) []string {
	names := make([]string, 0, len(vars)*len(Statistics))
	for _, v := range vars {
		for _, s := range Statistics {
			names = append(names, SeriesName(v, s))
		}
	}
	return names
}

// Signal is a row of the signal dimension.
type Signal struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Measurement is a row of the fact table. (Timestamp, SignalID) is unique.
type Measurement struct {
	Timestamp time.Time `json:"timestamp"`
	SignalID  int64     `json:"signal_id"`
	Value     float64   `json:"value"`
}

// ToMeasurements translates aggregate records using the resolved ids. A
// record whose series has no id is an error: the resolver must cover every
// produced name.
func ToMeasurements(records []AggregateRecord, ids map[string]int64) ([]Measurement, error) {
	out := make([]Measurement, 0, len(records))
	for _, r := range records {
		id, ok := ids[r.Series]
		if !ok {
			return nil, fmt.Errorf("no signal id resolved for %q", r.Series)
		}
		out = append(out, Measurement{Timestamp: r.Timestamp, SignalID: id, Value: r.Value})
	}
	return out, nil
}

// SeriesNames returns the distinct series referenced by records, in first-seen order.
func SeriesNames(records []AggregateRecord) []string {
	seen := make(map[string]bool)
	var names []string
	for _, r := range records {
		if seen[r.Series] {
			continue
		}
		seen[r.Series] = true
		names = append(names, r.Series)
	}
	return names
}

// SignalResolution maps derived series names to signal ids. Created lists the
// names that had no signal row before this resolution.
type SignalResolution struct {
	IDs     map[string]int64
	Created []string
}

// WriteResult reports the effect of replacing a window.
type WriteResult struct {
	Deleted  int
	Inserted int
}
