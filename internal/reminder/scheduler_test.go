package reminder_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"sigreg/internal/registry"
	"sigreg/internal/reminder"
)

// fakeNotifier records deliveries and can be told to fail for given chats.
type fakeNotifier struct {
	mu       sync.Mutex
	sent     map[int64][]string
	failFor  map[int64]bool
	failures int
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: map[int64][]string{}, failFor: map[int64]bool{}}
}

func (f *fakeNotifier) Notify(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[chatID] {
		f.failures++
		return fmt.Errorf("chat %d unreachable", chatID)
	}
	f.sent[chatID] = append(f.sent[chatID], text)
	return nil
}

type SchedulerSuite struct {
	suite.Suite
	ctx      context.Context
	store    *registry.InMemoryStore
	notifier *fakeNotifier
	today    time.Time
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerSuite))
}

func (s *SchedulerSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = registry.NewInMemoryStore()
	s.notifier = newFakeNotifier()
	s.today = time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	s.Require().NoError(s.store.AddSubscriber(s.ctx, 100))
}

func (s *SchedulerSuite) scheduler(opts ...reminder.Option) *reminder.Scheduler {
	return reminder.New(s.store, s.notifier, opts...)
}

// sign creates a person with an active signature expiring on the given day.
func (s *SchedulerSuite) sign(name string, expiry time.Time) uuid.UUID {
	id, err := s.store.CreateEntity(s.ctx, name, registry.KindPerson, nil)
	s.Require().NoError(err)
	s.Require().NoError(s.store.UpsertSignature(s.ctx, id, expiry, nil))
	return id
}

func (s *SchedulerSuite) TestThresholdBoundaries() {
	s.sign("At Five", s.today.AddDate(0, 0, 5))
	s.sign("At Ten", s.today.AddDate(0, 0, 10))
	s.sign("Due Today", s.today)
	s.sign("At Three", s.today.AddDate(0, 0, 3))

	s.Require().NoError(s.scheduler().Sweep(s.ctx, s.today))

	got := s.notifier.sent[100]
	s.Require().Len(got, 3, "today+3 sits between thresholds and must not notify")
	joined := fmt.Sprint(got)
	s.Contains(joined, "At Five")
	s.Contains(joined, "At Ten")
	s.Contains(joined, "Due Today")
	s.NotContains(joined, "At Three")
}

func (s *SchedulerSuite) TestOrderingAscendingByExpiry() {
	s.sign("Later", s.today.AddDate(0, 0, 25))
	s.sign("Sooner", s.today.AddDate(0, 0, 10))

	s.Require().NoError(s.scheduler().Sweep(s.ctx, s.today))

	got := s.notifier.sent[100]
	s.Require().Len(got, 2)
	s.Contains(got[0], "Sooner")
	s.Contains(got[1], "Later")
}

func (s *SchedulerSuite) TestHeaders() {
	s.Run("future expiry", func() {
		s.sign("Future", s.today.AddDate(0, 0, 10))
		s.Require().NoError(s.scheduler().Sweep(s.ctx, s.today))
		s.Require().Len(s.notifier.sent[100], 1)
		s.Contains(s.notifier.sent[100][0], "Signature expires through 10 days:")
	})

	s.Run("due today", func() {
		s.notifier.sent = map[int64][]string{}
		s.sign("Today", s.today)
		s.Require().NoError(s.scheduler(reminder.WithThresholds([]int{0})).Sweep(s.ctx, s.today))
		s.Require().Len(s.notifier.sent[100], 1)
		s.Contains(s.notifier.sent[100][0], "Signature is due today:")
		s.Contains(s.notifier.sent[100][0], "due today!")
	})

	s.Run("overdue via negative threshold", func() {
		s.notifier.sent = map[int64][]string{}
		s.sign("Past", s.today.AddDate(0, 0, -2))
		s.Require().NoError(s.scheduler(reminder.WithThresholds([]int{-2})).Sweep(s.ctx, s.today))
		s.Require().Len(s.notifier.sent[100], 1)
		s.Contains(s.notifier.sent[100][0], "Signature overdue by 2 days:")
		s.Contains(s.notifier.sent[100][0], "expired")
	})
}

func (s *SchedulerSuite) TestDeliveryFailureDoesNotAbortFanout() {
	s.Require().NoError(s.store.AddSubscriber(s.ctx, 200))
	s.Require().NoError(s.store.AddSubscriber(s.ctx, 300))
	s.notifier.failFor[200] = true

	s.sign("Someone", s.today.AddDate(0, 0, 5))

	s.Require().NoError(s.scheduler().Sweep(s.ctx, s.today))

	s.Len(s.notifier.sent[100], 1)
	s.Len(s.notifier.sent[300], 1)
	s.Empty(s.notifier.sent[200])
	s.Equal(1, s.notifier.failures)
}

func (s *SchedulerSuite) TestRunOnceOffsetShiftsToday() {
	// Expiry at real-today+7 matches the 5-day threshold when the sweep is
	// replayed two days ahead.
	s.sign("Shifted", s.today.AddDate(0, 0, 7))

	sched := s.scheduler(reminder.WithClock(func() time.Time { return s.today }))
	s.Require().NoError(sched.RunOnce(s.ctx, 2))

	s.Require().Len(s.notifier.sent[100], 1)
	s.Contains(s.notifier.sent[100][0], "Signature expires through 5 days:")
}

func (s *SchedulerSuite) TestNoSubscribersIsQuiet() {
	store := registry.NewInMemoryStore()
	id, err := store.CreateEntity(s.ctx, "Lonely", registry.KindPerson, nil)
	s.Require().NoError(err)
	s.Require().NoError(store.UpsertSignature(s.ctx, id, s.today, nil))

	sched := reminder.New(store, s.notifier)
	s.Require().NoError(sched.Sweep(s.ctx, s.today))
	s.Empty(s.notifier.sent)
}

func (s *SchedulerSuite) TestStartStopsOnCancel() {
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan error, 1)

	sched := s.scheduler(reminder.WithSchedule(23, 59, time.UTC))
	go func() { done <- sched.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		s.ErrorIs(err, context.Canceled)
	case <-time.After(2 * time.Second):
		s.Fail("scheduler did not stop on cancel")
	}
}
