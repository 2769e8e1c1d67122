package source

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/couchcryptid/wind-telemetry-etl/internal/domain"
)

// TimestampLayout is the wire format for row timestamps and range bounds.
const TimestampLayout = "2006-01-02T15:04:05Z"

// naiveLayout accepts timestamps serialized without a zone; they are read as UTC.
const naiveLayout = "2006-01-02T15:04:05"

// EncodeRow flattens a sample into its wire form: a "timestamp" key plus one
// key per requested variable. Missing readings encode as null.
func EncodeRow(s domain.RawSample, vars []domain.Variable) map[string]any {
	row := make(map[string]any, len(vars)+1)
	row["timestamp"] = s.Timestamp.UTC().Format(TimestampLayout)
	for _, v := range vars {
		r := s.Values[v]
		if !r.Valid {
			row[string(v)] = nil
			continue
		}
		row[string(v)] = r.Value
	}
	return row
}

// DecodeRows parses a JSON array of wire rows. Requested variables that are
// absent or null become domain.Missing; unrequested keys are ignored.
func DecodeRows(data []byte, vars []domain.Variable) ([]domain.RawSample, error) {
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", domain.ErrInvalidResponseShape, err)
	}

	samples := make([]domain.RawSample, 0, len(raw))
	for i, row := range raw {
		ts, err := decodeTimestamp(row["timestamp"])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", domain.ErrInvalidResponseShape, i, err)
		}
		values := make(map[domain.Variable]domain.Reading, len(vars))
		for _, v := range vars {
			r, err := decodeReading(row[string(v)])
			if err != nil {
				return nil, fmt.Errorf("%w: row %d: %s: %w", domain.ErrInvalidResponseShape, i, v, err)
			}
			values[v] = r
		}
		samples = append(samples, domain.RawSample{Timestamp: ts, Values: values})
	}
	return samples, nil
}

func decodeTimestamp(msg json.RawMessage) (time.Time, error) {
	if msg == nil {
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	var s string
	if err := json.Unmarshal(msg, &s); err != nil {
		return time.Time{}, fmt.Errorf("timestamp: %w", err)
	}
	return ParseTimestamp(s)
}

// ParseTimestamp reads an RFC 3339 instant, or a zone-less one as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.ParseInLocation(naiveLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return ts, nil
}

func decodeReading(msg json.RawMessage) (domain.Reading, error) {
	if msg == nil || string(msg) == "null" {
		return domain.Missing, nil
	}
	var f float64
	if err := json.Unmarshal(msg, &f); err != nil {
		return domain.Reading{}, err
	}
	return domain.Present(f), nil
}
