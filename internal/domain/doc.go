// Package domain models minute-resolution wind telemetry and its daily
// 10-minute statistical aggregates.
//
// # Source Data
//
// The source store holds one row per minute with three variables:
//
//	wind_speed           m/s
//	power                kW
//	ambient_temperature  °C
//
// Timestamps are UTC instants truncated to the minute and unique per row.
//
// # Day Windows
//
// A run covers exactly one calendar day in UTC, expressed as the half-open
// interval [00:00, 24:00). See [BuildDayWindow].
//
// # Bins and Derived Series
//
// The window is tiled by 10-minute bins aligned to its start. For every bin
// and every tracked variable (wind_speed, power) four statistics are computed
// over the values present in that bin:
//
//	mean, min, max, std  (std is the population standard deviation)
//
// Each statistic is a derived series named "<variable>_<statistic>_10m",
// e.g. "wind_speed_mean_10m". A bin with no present value for a variable
// yields no record for any of its four series. See [Aggregate].
//
// # Target Model
//
// Derived series names map onto the Signal dimension (id, unique name). Facts
// are Measurement rows keyed by (timestamp, signal id), where the timestamp is
// the bin start. A run owns every Measurement in its window for the signals it
// resolves: prior rows are deleted and the fresh aggregates inserted as one
// unit, which keeps re-runs idempotent.
package domain
