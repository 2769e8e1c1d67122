package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDateFormat means the run date is not a YYYY-MM-DD calendar date.
	ErrInvalidDateFormat = errors.New("invalid date format")

	// ErrSourceUnavailable covers connection failures, timeouts, and non-2xx
	// responses from the raw series source. Safe to retry.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrInvalidResponseShape means the source payload could not be parsed into
	// time-indexed rows, or violated the window/ordering contract.
	ErrInvalidResponseShape = errors.New("invalid response shape")

	// ErrInvalidVariable is a client-side rejection of an unknown variable name.
	ErrInvalidVariable = errors.New("invalid variable")

	// ErrStore wraps target store failures during resolve or write.
	ErrStore = errors.New("store failure")
)

// Run phases, in execution order.
const (
	PhaseWindow    = "window"
	PhaseFetch     = "fetch"
	PhaseAggregate = "aggregate"
	PhaseResolve   = "resolve"
	PhaseWrite     = "write"
)

// RunError attaches the date and phase to a failed run.
type RunError struct {
	Date  string
	Phase string
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s: %s: %v", e.Date, e.Phase, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Retryable reports whether re-running the whole invocation may succeed
// without operator intervention.
func Retryable(err error) bool {
	return errors.Is(err, ErrSourceUnavailable) || errors.Is(err, ErrStore)
}
