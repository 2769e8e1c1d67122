package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/wind-telemetry-etl/internal/domain"
	"github.com/couchcryptid/wind-telemetry-etl/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Runner executes a single-date run.
type Runner interface {
	RunDate(ctx context.Context, date string) (domain.RunSummary, error)
}

// RunLedger remembers scheduled attempts so restarts do not repeat finished dates.
type RunLedger interface {
	Record(ctx context.Context, entry domain.LedgerEntry) error
	Succeeded(ctx context.Context, date string) (bool, error)
}

// RunPublisher announces successful runs to downstream consumers.
type RunPublisher interface {
	PublishRun(ctx context.Context, summary domain.RunSummary) error
}

// Pinger checks that a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ScheduleConfig controls when and how often the scheduler invokes runs.
type ScheduleConfig struct {
	HourUTC     int // fire hour; each firing targets the previous calendar day
	CatchupDays int // how many past dates are eligible for a missed run
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// Scheduler triggers a daily run for the previous UTC date and catches up on
// recent dates with no recorded success.
type Scheduler struct {
	runner    Runner
	ledger    RunLedger
	publisher RunPublisher
	pinger    Pinger
	clock     clockwork.Clock
	cfg       ScheduleConfig
	logger    *slog.Logger
	metrics   *observability.Metrics
	running   atomic.Bool
}

// NewScheduler creates a Scheduler. publisher may be nil.
func NewScheduler(r Runner, ledger RunLedger, publisher RunPublisher, pinger Pinger, clock clockwork.Clock, cfg ScheduleConfig, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 30 * time.Second
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		cfg.MaxBackoff = cfg.BaseBackoff
	}
	return &Scheduler{
		runner:    r,
		ledger:    ledger,
		publisher: publisher,
		pinger:    pinger,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil while the scheduler loop is running and the
// target store answers a ping.
func (s *Scheduler) CheckReadiness(ctx context.Context) error {
	if !s.running.Load() {
		return errors.New("scheduler is not running")
	}
	if s.pinger == nil {
		return nil
	}
	if err := s.pinger.Ping(ctx); err != nil {
		return fmt.Errorf("target store: %w", err)
	}
	return nil
}

// Run catches up on due dates, then fires once per day until the context is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"hour_utc", s.cfg.HourUTC,
		"catchup_days", s.cfg.CatchupDays,
		"max_attempts", s.cfg.MaxAttempts,
	)
	s.running.Store(true)
	s.metrics.SchedulerRunning.Set(1)
	defer func() {
		s.running.Store(false)
		s.metrics.SchedulerRunning.Set(0)
	}()

	for {
		s.runDue(ctx)

		next := s.nextFire(s.clock.Now())
		s.logger.Debug("next run scheduled", "at", next)
		if !sleepWithContext(ctx, s.clock, next.Sub(s.clock.Now())) {
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// DueDates returns, oldest first, the dates within the catch-up horizon whose
// fire time has passed at now.
func (s *Scheduler) DueDates(now time.Time) []string {
	today := now.UTC().Truncate(24 * time.Hour)
	days := max(s.cfg.CatchupDays, 1)

	dates := make([]string, 0, days)
	for d := days; d >= 1; d-- {
		date := today.AddDate(0, 0, -d)
		if s.fireTime(date).After(now) {
			continue
		}
		dates = append(dates, date.Format(domain.DateLayout))
	}
	return dates
}

func (s *Scheduler) runDue(ctx context.Context) {
	for _, date := range s.DueDates(s.clock.Now()) {
		if ctx.Err() != nil {
			return
		}
		done, err := s.ledger.Succeeded(ctx, date)
		if err != nil {
			s.logger.Warn("ledger lookup failed, running anyway", "date", date, "error", err)
		}
		if done {
			continue
		}
		s.runWithRetry(ctx, date)
	}
}

// runWithRetry invokes the runner for date, retrying retryable failures with
// capped exponential backoff. Reports whether the date eventually succeeded.
func (s *Scheduler) runWithRetry(ctx context.Context, date string) bool {
	backoff := s.cfg.BaseBackoff

	for attempt := 1; ; attempt++ {
		summary, err := s.runner.RunDate(ctx, date)
		if err == nil {
			s.record(ctx, domain.LedgerEntry{
				Date:    date,
				Status:  domain.RunSucceeded,
				Attempt: attempt,
				Summary: &summary,
			})
			s.publish(ctx, summary)
			return true
		}

		s.record(ctx, domain.LedgerEntry{
			Date:    date,
			Status:  domain.RunFailed,
			Attempt: attempt,
			Error:   err.Error(),
		})
		if ctx.Err() != nil {
			return false
		}
		if !domain.Retryable(err) || attempt >= s.cfg.MaxAttempts {
			s.logger.Error("run abandoned", "date", date, "attempt", attempt, "error", err)
			return false
		}

		s.logger.Warn("run failed, retrying", "date", date, "attempt", attempt, "backoff", backoff, "error", err)
		if !sleepWithContext(ctx, s.clock, backoff) {
			return false
		}
		backoff = nextBackoff(backoff, s.cfg.MaxBackoff)
	}
}

func (s *Scheduler) record(ctx context.Context, entry domain.LedgerEntry) {
	entry.RecordedAt = s.clock.Now().UTC()
	if err := s.ledger.Record(ctx, entry); err != nil {
		s.logger.Warn("ledger record failed", "date", entry.Date, "status", entry.Status, "error", err)
	}
}

func (s *Scheduler) publish(ctx context.Context, summary domain.RunSummary) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRun(ctx, summary); err != nil {
		s.logger.Warn("publish run event failed", "date", summary.Date, "error", err)
	}
}

// fireTime is when the run for date becomes due: the configured hour of the
// following day.
func (s *Scheduler) fireTime(date time.Time) time.Time {
	return date.AddDate(0, 0, 1).Add(time.Duration(s.cfg.HourUTC) * time.Hour)
}

// nextFire returns the first fire instant strictly after now.
func (s *Scheduler) nextFire(now time.Time) time.Time {
	now = now.UTC()
	next := now.Truncate(24 * time.Hour).Add(time.Duration(s.cfg.HourUTC) * time.Hour)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
