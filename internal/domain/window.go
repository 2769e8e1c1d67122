package domain

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format accepted by the batch entry point.
const DateLayout = "2006-01-02"

// Window is a half-open UTC interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// BuildDayWindow maps a YYYY-MM-DD date to the UTC day [00:00, +24h).
func BuildDayWindow(date string) (Window, error) {
	day, err := time.ParseInLocation(DateLayout, date, time.UTC)
	if err != nil {
		return Window{}, fmt.Errorf("%w: %q: %w", ErrInvalidDateFormat, date, err)
	}
	return Window{Start: day, End: day.Add(24 * time.Hour)}, nil
}

// Contains reports whether t falls inside [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}
