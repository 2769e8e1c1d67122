package domain

import "time"

// RunSummary reports the outcome of one daily run.
type RunSummary struct {
	RunID         string        `json:"run_id"`
	Date          string        `json:"date"`
	WindowStart   time.Time     `json:"window_start"`
	WindowEnd     time.Time     `json:"window_end"`
	SourceRows    int           `json:"source_rows"`
	AggregateRows int           `json:"agg_rows"`
	Inserted      int           `json:"inserted"`
	Deleted       int           `json:"deleted"`
	Duration      time.Duration `json:"duration_ns"`
	CompletedAt   time.Time     `json:"completed_at"`
}

// Run ledger statuses.
const (
	RunSucceeded = "success"
	RunFailed    = "failure"
)

// LedgerEntry records one scheduled attempt for a date.
type LedgerEntry struct {
	Date       string      `json:"date"`
	Status     string      `json:"status"`
	Attempt    int         `json:"attempt"`
	Error      string      `json:"error,omitempty"`
	Summary    *RunSummary `json:"summary,omitempty"`
	RecordedAt time.Time   `json:"recorded_at"`
}
