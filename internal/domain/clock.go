package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is a package-level time source so tests can freeze time via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current instant in UTC.
func Now() time.Time {
	return clock.Now().UTC()
}

// Yesterday returns the previous UTC calendar date in DateLayout form. It is
// the default partition for a daily run.
func Yesterday() string {
	return Now().AddDate(0, 0, -1).Format(DateLayout)
}
