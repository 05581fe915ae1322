// Package reminder runs the daily sweep over signature expiry dates and
// fans reminder notifications out to subscribed chats.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sigreg/internal/platform/metrics"
	"sigreg/internal/registry"
	"sigreg/internal/render"
	dErrors "sigreg/pkg/domain-errors"
)

// DefaultThresholds is the reminder ladder in days before expiry.
var DefaultThresholds = []int{25, 20, 15, 10, 5, 0}

// Store is the read slice of the registry the sweep needs.
type Store interface {
	ListSignaturesExpiringOn(ctx context.Context, dates []time.Time) ([]registry.EntityRow, error)
	ListSubscribers(ctx context.Context) ([]int64, error)
}

// Notifier delivers plain-text reminders. Satisfied by transport.Messenger.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// Scheduler computes which signatures cross a reminder threshold today and
// delivers best-effort notifications. It runs independently of sessions.
type Scheduler struct {
	store      Store
	notifier   Notifier
	logger     *slog.Logger
	metrics    *metrics.Metrics
	thresholds []int
	hour       int
	minute     int
	loc        *time.Location
	now        func() time.Time
}

type Option func(s *Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// WithThresholds overrides the reminder ladder.
func WithThresholds(days []int) Option {
	return func(s *Scheduler) {
		if len(days) > 0 {
			s.thresholds = days
		}
	}
}

// WithSchedule sets the local wall-clock time of the daily run.
func WithSchedule(hour, minute int, loc *time.Location) Option {
	return func(s *Scheduler) {
		s.hour, s.minute = hour, minute
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock overrides the wall clock for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New constructs a Scheduler. The default schedule is 09:00 UTC.
func New(store Store, notifier Notifier, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:      store,
		notifier:   notifier,
		logger:     slog.Default(),
		thresholds: DefaultThresholds,
		hour:       9,
		loc:        time.UTC,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start blocks, firing one sweep per calendar day at the configured local
// time, until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	for {
		next := s.nextRun(s.now().In(s.loc))
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err := s.RunOnce(ctx, 0); err != nil {
			s.logger.Error("reminder sweep failed", "error", err)
		}
	}
}

// nextRun returns the next occurrence of the scheduled wall-clock time
// strictly after now.
func (s *Scheduler) nextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunOnce executes one sweep. offsetDays shifts the sweep's notion of
// "today", letting an operator replay or preview a day; a positive offset
// can push signatures into the overdue range.
func (s *Scheduler) RunOnce(ctx context.Context, offsetDays int) error {
	today := registry.DateOnly(s.now().In(s.loc)).AddDate(0, 0, offsetDays)
	return s.Sweep(ctx, today)
}

// Sweep performs one atomic read of the signatures matching today's
// threshold set and delivers a notification per signature to every
// subscriber. Delivery failures are logged and swallowed, never retried.
func (s *Scheduler) Sweep(ctx context.Context, today time.Time) error {
	start := time.Now()
	today = registry.DateOnly(today)

	dates := make([]time.Time, 0, len(s.thresholds))
	for _, d := range s.thresholds {
		dates = append(dates, today.AddDate(0, 0, d))
	}

	rows, err := s.store.ListSignaturesExpiringOn(ctx, dates)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read due signatures")
	}
	if len(rows) == 0 {
		s.observe(start)
		return nil
	}

	subscribers, err := s.store.ListSubscribers(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list subscribers")
	}

	messages := make([]string, 0, len(rows))
	for _, row := range rows {
		messages = append(messages, s.message(row, today))
	}

	for _, chatID := range subscribers {
		for _, msg := range messages {
			if err := s.notifier.Notify(ctx, chatID, msg); err != nil {
				s.logger.Warn("reminder delivery failed", "chat_id", chatID, "error", err)
				if s.metrics != nil {
					s.metrics.DeliveryFailures.Inc()
				}
				continue
			}
			if s.metrics != nil {
				s.metrics.RemindersSent.Inc()
			}
		}
	}

	s.logger.Info("reminder sweep completed",
		"due", len(rows), "subscribers", len(subscribers))
	s.observe(start)
	return nil
}

// message renders one reminder: a lead line placing the expiry relative to
// today, then the usual status line.
func (s *Scheduler) message(row registry.EntityRow, today time.Time) string {
	days := render.DaysUntil(*row.Expiry, today)

	var header string
	switch {
	case days > 0:
		header = fmt.Sprintf("Signature expires through %d days:", days)
	case days == 0:
		header = "Signature is due today:"
	default:
		header = fmt.Sprintf("Signature overdue by %d days:", -days)
	}
	return header + "\n" + render.StatusLine(row, today)
}

func (s *Scheduler) observe(start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.SweepRuns.Inc()
	s.metrics.SweepDurationSecs.Observe(time.Since(start).Seconds())
}
