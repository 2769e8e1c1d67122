package domain

import (
	"math"
	"time"
)

// BinWidth is the resampling interval.
const BinWidth = 10 * time.Minute

// Bin is a half-open sub-interval of a window.
type Bin struct {
	Start time.Time
	End   time.Time
}

// AggregateRecord is one statistic of one derived series for one bin.
type AggregateRecord struct {
	Timestamp time.Time `json:"timestamp"` // bin start
	Series    string    `json:"series"`
	Value     float64   `json:"value"`
}

// Bins tiles w with consecutive bins of the given width starting at w.Start.
// The last bin is clipped to w.End when the window is not a whole multiple
// of width.
func Bins(w Window, width time.Duration) []Bin {
	if width <= 0 || !w.End.After(w.Start) {
		return nil
	}
	n := int((w.Duration() + width - 1) / width)
	bins := make([]Bin, 0, n)
	for start := w.Start; start.Before(w.End); start = start.Add(width) {
		end := start.Add(width)
		if end.After(w.End) {
			end = w.End
		}
		bins = append(bins, Bin{Start: start, End: end})
	}
	return bins
}

// Aggregate resamples s into BinWidth bins over w and emits mean, min, max,
// and population standard deviation per tracked variable of s. Missing
// readings are excluded; a bin with no present value for a variable emits
// nothing for that variable. Output is ordered by bin, then variable, then
// statistic.
func Aggregate(s RawSeries, w Window) []AggregateRecord {
	return AggregateWidth(s, w, BinWidth)
}

// AggregateWidth is Aggregate with an explicit bin width.
func AggregateWidth(s RawSeries, w Window, width time.Duration) []AggregateRecord {
	if len(s.Samples) == 0 {
		return nil
	}
	bins := Bins(w, width)
	if len(bins) == 0 {
		return nil
	}

	acc := make([][]accumulator, len(bins))
	for i := range acc {
		acc[i] = make([]accumulator, len(s.Variables))
	}

	for _, sample := range s.Samples {
		if !w.Contains(sample.Timestamp) {
			continue
		}
		idx := int(sample.Timestamp.Sub(w.Start) / width)
		for vi, v := range s.Variables {
			r := sample.Values[v]
			if !r.Valid || math.IsNaN(r.Value) {
				continue
			}
			acc[idx][vi].push(r.Value)
		}
	}

	var out []AggregateRecord
	for bi, b := range bins {
		for vi, v := range s.Variables {
			a := acc[bi][vi]
			if a.count == 0 {
				continue
			}
			out = append(out,
				AggregateRecord{Timestamp: b.Start, Series: SeriesName(v, StatMean), Value: a.mean},
				AggregateRecord{Timestamp: b.Start, Series: SeriesName(v, StatMin), Value: a.min},
				AggregateRecord{Timestamp: b.Start, Series: SeriesName(v, StatMax), Value: a.max},
				AggregateRecord{Timestamp: b.Start, Series: SeriesName(v, StatStd), Value: a.stddev()},
			)
		}
	}
	return out
}

// accumulator keeps a running mean and sum of squared deviations (Welford),
// plus min and max.
type accumulator struct {
	count int
	mean  float64
	m2    float64
	min   float64
	max   float64
}

func (a *accumulator) push(v float64) {
	a.count++
	if a.count == 1 {
		a.min, a.max = v, v
	} else {
		a.min = math.Min(a.min, v)
		a.max = math.Max(a.max, v)
	}
	delta := v - a.mean
	a.mean += delta / float64(a.count)
	a.m2 += delta * (v - a.mean)
}

func (a *accumulator) stddev() float64 {
	if a.count < 2 {
		return 0
	}
	variance := a.m2 / float64(a.count)
	if variance < 0 {
		return 0
	}
	return math.Sqrt(variance)
}
