package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropcare/reminder-api/internal/model"
	"github.com/cropcare/reminder-api/internal/notifier"
	"github.com/cropcare/reminder-api/internal/repository/memstore"
	"github.com/cropcare/reminder-api/pkg/logger"
	"github.com/cropcare/reminder-api/pkg/messaging/memory"
)

type recordingNotifier struct {
	mu       sync.Mutex
	notified []uuid.UUID
}

func (n *recordingNotifier) Notify(ctx context.Context, r *model.Reminder) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified = append(n.notified, r.ID)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notified)
}

type failingNotifier struct{}

func (failingNotifier) Notify(ctx context.Context, r *model.Reminder) error {
	return errors.New("notification permission denied")
}

type failingChime struct{}

func (failingChime) Play(ctx context.Context) error {
	return errors.New("autoplay blocked")
}

func testLogger() *logger.Logger {
	return logger.New(&logger.Config{Level: logger.ErrorLevel, Console: false, Output: io.Discard})
}

func newMockClock() *clock.Mock {
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC))
	return mock
}

func newTestService(t *testing.T, mock *clock.Mock, store *memstore.Store, notif notifier.Notifier, chime notifier.Chime) (*Service, *memory.Broker) {
	t.Helper()
	broker := memory.NewBroker()
	t.Cleanup(func() { broker.Close() })

	svc, err := NewService(
		context.Background(),
		store, broker, notif, chime,
		mock, testLogger(), nil,
		Config{},
	)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc, broker
}

func blightTreatment() model.Treatment {
	return model.Treatment{
		Name:      "Copper Fungicide",
		Dosage:    "2g per liter",
		Frequency: "Every 7 days",
	}
}

func blight() model.Disease {
	return model.Disease{Name: "Late Blight"}
}

func TestCreateReminderPersistsAndSchedules(t *testing.T) {
	mock := newMockClock()
	store := memstore.NewStore("cropcare_reminders")
	svc, _ := newTestService(t, mock, store, &recordingNotifier{}, notifier.NoopChime{})

	r, err := svc.CreateReminder(context.Background(), blightTreatment(), blight(), nil)
	require.NoError(t, err)

	assert.Equal(t, "Copper Fungicide", r.TreatmentName)
	assert.Equal(t, "Late Blight", r.DiseaseName)
	assert.Equal(t, 7*24*time.Hour, r.Interval)
	assert.Equal(t, mock.Now().Add(7*24*time.Hour), r.NextDue)
	assert.True(t, r.IsActive)
	assert.Zero(t, r.CompletedCount)
	assert.True(t, svc.sched.HasPending(r.ID))

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, r.ID, stored[0].ID)
}

func TestCreateReminderWithCustomTime(t *testing.T) {
	mock := newMockClock()
	store := memstore.NewStore("cropcare_reminders")
	svc, _ := newTestService(t, mock, store, &recordingNotifier{}, notifier.NoopChime{})

	custom := mock.Now().Add(36 * time.Hour)
	r, err := svc.CreateReminder(context.Background(), blightTreatment(), blight(), &model.ReminderOptions{
		CustomTime:   &custom,
		Note:         "before the rains",
		ScheduleType: model.ScheduleTypeSuggested,
	})
	require.NoError(t, err)

	assert.Equal(t, custom, r.NextDue)
	assert.Equal(t, 7*24*time.Hour, r.Interval, "custom time must not change the interval")
	assert.Equal(t, "before the rains", r.Note)
	assert.Equal(t, model.ScheduleTypeSuggested, r.ScheduleType)
}

func TestFiringAdvancesDueTimeAndBroadcasts(t *testing.T) {
	mock := newMockClock()
	store := memstore.NewStore("cropcare_reminders")
	notif := &recordingNotifier{}
	svc, broker := newTestService(t, mock, store, notif, notifier.NoopChime{})

	events, err := broker.Subscribe(context.Background(), model.EventTypeReminderFired)
	require.NoError(t, err)

	r, err := svc.CreateReminder(context.Background(), model.Treatment{
		Name: "Neem Oil", Dosage: "5ml per liter", Frequency: "1 day",
	}, blight(), nil)
	require.NoError(t, err)

	mock.Add(24 * time.Hour)
	firedAt := mock.Now()

	assert.Equal(t, 1, notif.count())
	active := svc.ActiveReminders()
	require.Len(t, active, 1)
	assert.Equal(t, firedAt.Add(24*time.Hour), active[0].NextDue, "firing advances NextDue by one interval")
	assert.True(t, svc.sched.HasPending(r.ID), "firing re-arms the next occurrence")

	var event model.ReminderFiredEvent
	select {
	case payload := <-events:
		require.NoError(t, json.Unmarshal(payload, &event))
	default:
		t.Fatal("expected a broadcast event")
	}
	assert.Equal(t, model.EventTypeReminderFired, event.Type)
	require.NotNil(t, event.Reminder)
	assert.Equal(t, r.ID, event.Reminder.ID)

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, active[0].NextDue, stored[0].NextDue, "advanced due time is persisted")
}

func TestOverdueOnLoadFiresImmediately(t *testing.T) {
	mock := newMockClock()
	store := memstore.NewStore("cropcare_reminders")

	overdue := &model.Reminder{
		ID:            uuid.New(),
		TreatmentName: "Copper Fungicide",
		DiseaseName:   "Late Blight",
		Dosage:        "2g per liter",
		NextDue:       mock.Now().Add(-48 * time.Hour),
		Interval:      7 * 24 * time.Hour,
		IsActive:      true,
		CreatedAt:     mock.Now().Add(-30 * 24 * time.Hour),
	}
	require.NoError(t, store.Save(context.Background(), []*model.Reminder{overdue}))

	notif := &recordingNotifier{}
	svc, _ := newTestService(t, mock, store, notif, notifier.NoopChime{})

	assert.Equal(t, 1, notif.count(), "overdue reminder fires during startup")

	active := svc.ActiveReminders()
	require.Len(t, active, 1)
	assert.True(t, active[0].NextDue.After(mock.Now()), "fired reminder reschedules into the future")
	assert.True(t, svc.sched.HasPending(overdue.ID))
}

func TestFutureRemindersRescheduledOnLoad(t *testing.T) {
	mock := newMockClock()
	store := memstore.NewStore("cropcare_reminders")

	upcoming := &model.Reminder{
		ID:            uuid.New(),
		TreatmentName: "Neem Oil",
		DiseaseName:   "Powdery Mildew",
		Dosage:        "5ml per liter",
		NextDue:       mock.Now().Add(6 * time.Hour),
		Interval:      3 * 24 * time.Hour,
		IsActive:      true,
		CreatedAt:     mock.Now().Add(-24 * time.Hour),
	}
	inactive := &model.Reminder{
		ID:            uuid.New(),
		TreatmentName: "Sulfur Dust",
		DiseaseName:   "Rust",
		Dosage:        "3g per liter",
		NextDue:       mock.Now().Add(-time.Hour),
		Interval:      24 * time.Hour,
		IsActive:      false,
		CreatedAt:     mock.Now().Add(-24 * time.Hour),
	}
	require.NoError(t, store.Save(context.Background(), []*model.Reminder{upcoming, inactive}))

	notif := &recordingNotifier{}
	svc, _ := newTestService(t, mock, store, notif, notifier.NoopChime{})

	assert.Equal(t, 0, notif.count())
	assert.True(t, svc.sched.HasPending(upcoming.ID))
	assert.False(t, svc.sched.HasPending(inactive.ID), "inactive reminders are never scheduled")

	mock.Add(6 * time.Hour)
	assert.Equal(t, 1, notif.count())
}

func TestCompleteDoesNotReschedule(t *testing.T) {
	mock := newMockClock()
	store := memstore.NewStore("cropcare_reminders")
	svc, _ := newTestService(t, mock, store, &recordingNotifier{}, notifier.NoopChime{})

	r, err := svc.CreateReminder(context.Background(), blightTreatment(), blight(), nil)
	require.NoError(t, err)
	dueBefore := r.NextDue

	mock.Add(time.Hour)
	require.NoError(t, svc.CompleteReminder(context.Background(), r.ID))

	active := svc.ActiveReminders()
	require.Len(t, active, 1)
	assert.Equal(t, 1, active[0].CompletedCount)
	require.NotNil(t, active[0].LastCompleted)
	assert.Equal(t, mock.Now(), *active[0].LastCompleted)
	assert.Equal(t, dueBefore, active[0].NextDue, "completion must not move the due time")
	assert.True(t, svc.sched.HasPending(r.ID), "completion must not touch the timer")

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stored[0].CompletedCount)
}

func TestCompleteUnknownIDIsNoop(t *testing.T) {
	mock := newMockClock()
	store := memstore.NewStore("cropcare_reminders")
	svc, _ := newTestService(t, mock, store, &recordingNotifier{}, notifier.NoopChime{})

	assert.NoError(t, svc.CompleteReminder(context.Background(), uuid.New()))
	assert.NoError(t, svc.SnoozeReminder(context.Background(), uuid.New(), 10))
	assert.NoError(t, svc.DeleteReminder(context.Background(), uuid.New()))
}

func TestSnoozeOverridesDueTimeNotInterval(t *testing.T) {
	mock := newMockClock()
	store := memstore.NewStore("cropcare_reminders")
	notif := &recordingNotifier{}
	svc, _ := newTestService(t, mock, store, notif, notifier.NoopChime{})

	r, err := svc.CreateReminder(context.Background(), blightTreatment(), blight(), nil)
	require.NoError(t, err)

	require.NoError(t, svc.SnoozeReminder(context.Background(), r.ID, 15))

	snoozed := svc.ActiveReminders()[0]
	assert.Equal(t, mock.Now().Add(15*time.Minute), snoozed.NextDue)
	assert.Equal(t, 7*24*time.Hour, snoozed.Interval, "snooze must not change the interval")

	// The snoozed firing happens after 15 minutes, and the following
	// recurrence returns to the original interval from that point.
	mock.Add(15 * time.Minute)
	require.Equal(t, 1, notif.count())
	assert.Equal(t, mock.Now().Add(7*24*time.Hour), svc.ActiveReminders()[0].NextDue)
}

func TestSnoozeZeroMinutesUsesDefault(t *testing.T) {
	mock := newMockClock()
	store := memstore.NewStore("cropcare_reminders")
	svc, _ := newTestService(t, mock, store, &recordingNotifier{}, notifier.NoopChime{})

	r, err := svc.CreateReminder(context.Background(), blightTreatment(), blight(), nil)
	require.NoError(t, err)

	require.NoError(t, svc.SnoozeReminder(context.Background(), r.ID, 0))
	assert.Equal(t, mock.Now().Add(30*time.Minute), svc.ActiveReminders()[0].NextDue)
	assert.True(t, svc.sched.HasPending(r.ID))
}

func TestDeleteCancelsPendingTimer(t *testing.T) {
	mock := newMockClock()
	store := memstore.NewStore("cropcare_reminders")
	notif := &recordingNotifier{}
	svc, _ := newTestService(t, mock, store, notif, notifier.NoopChime{})

	r, err := svc.CreateReminder(context.Background(), blightTreatment(), blight(), nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteReminder(context.Background(), r.ID))
	assert.False(t, svc.sched.HasPending(r.ID))

	// Even past the original due time, the deleted reminder stays silent.
	mock.Add(8 * 24 * time.Hour)
	assert.Equal(t, 0, notif.count())

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Empty(t, svc.ActiveReminders())
}

func TestSingleTimerInvariant(t *testing.T) {
	mock := newMockClock()
	store := memstore.NewStore("cropcare_reminders")
	svc, _ := newTestService(t, mock, store, &recordingNotifier{}, notifier.NoopChime{})
	ctx := context.Background()

	first, err := svc.CreateReminder(ctx, blightTreatment(), blight(), nil)
	require.NoError(t, err)
	second, err := svc.CreateReminder(ctx, model.Treatment{
		Name: "Neem Oil", Dosage: "5ml per liter", Frequency: "3 days",
	}, model.Disease{Name: "Powdery Mildew"}, nil)
	require.NoError(t, err)

	require.NoError(t, svc.SnoozeReminder(ctx, first.ID, 10))
	require.NoError(t, svc.SnoozeReminder(ctx, first.ID, 20))
	require.NoError(t, svc.CompleteReminder(ctx, second.ID))

	assert.Equal(t, 2, svc.sched.PendingCount(), "one timer per active reminder")

	require.NoError(t, svc.DeleteReminder(ctx, second.ID))
	assert.Equal(t, 1, svc.sched.PendingCount())
	assert.True(t, svc.sched.HasPending(first.ID))
}

func TestActiveRemindersInsertionOrder(t *testing.T) {
	mock := newMockClock()
	store := memstore.NewStore("cropcare_reminders")
	svc, _ := newTestService(t, mock, store, &recordingNotifier{}, notifier.NoopChime{})
	ctx := context.Background()

	names := []string{"Copper Fungicide", "Neem Oil", "Sulfur Dust"}
	for _, name := range names {
		_, err := svc.CreateReminder(ctx, model.Treatment{
			Name: name, Dosage: "2g per liter", Frequency: "5 days",
		}, blight(), nil)
		require.NoError(t, err)
	}

	active := svc.ActiveReminders()
	require.Len(t, active, 3)
	for i, name := range names {
		assert.Equal(t, name, active[i].TreatmentName)
	}
}

func TestBestEffortFailuresDoNotBlockFiring(t *testing.T) {
	mock := newMockClock()
	store := memstore.NewStore("cropcare_reminders")
	svc, broker := newTestService(t, mock, store, failingNotifier{}, failingChime{})

	events, err := broker.Subscribe(context.Background(), model.EventTypeReminderFired)
	require.NoError(t, err)

	r, err := svc.CreateReminder(context.Background(), model.Treatment{
		Name: "Copper Fungicide", Dosage: "2g per liter", Frequency: "1 day",
	}, blight(), nil)
	require.NoError(t, err)

	mock.Add(24 * time.Hour)

	active := svc.ActiveReminders()
	require.Len(t, active, 1)
	assert.Equal(t, mock.Now().Add(24*time.Hour), active[0].NextDue, "due time advances despite notification failure")
	assert.True(t, svc.sched.HasPending(r.ID), "rescheduling happens despite notification failure")

	select {
	case <-events:
	default:
		t.Fatal("broadcast must happen despite notification failure")
	}

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, active[0].NextDue, stored[0].NextDue)
}

func TestConcurrentCompleteAndSnooze(t *testing.T) {
	mock := newMockClock()
	store := memstore.NewStore("cropcare_reminders")
	svc, _ := newTestService(t, mock, store, &recordingNotifier{}, notifier.NoopChime{})
	ctx := context.Background()

	r, err := svc.CreateReminder(ctx, blightTreatment(), blight(), nil)
	require.NoError(t, err)

	const workers = 4
	const rounds = 50

	// Complete and snooze mutate the record while Save and list callers
	// marshal snapshots of it; run with -race to catch aliasing.
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				assert.NoError(t, svc.CompleteReminder(ctx, r.ID))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				assert.NoError(t, svc.SnoozeReminder(ctx, r.ID, 15))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				for _, got := range svc.ActiveReminders() {
					_, err := json.Marshal(got)
					assert.NoError(t, err)
				}
			}
		}()
	}
	wg.Wait()

	active := svc.ActiveReminders()
	require.Len(t, active, 1)
	assert.Equal(t, workers*rounds, active[0].CompletedCount)
	assert.True(t, svc.sched.HasPending(r.ID))
}

func TestActiveRemindersAreDetachedCopies(t *testing.T) {
	mock := newMockClock()
	store := memstore.NewStore("cropcare_reminders")
	svc, _ := newTestService(t, mock, store, &recordingNotifier{}, notifier.NoopChime{})

	r, err := svc.CreateReminder(context.Background(), blightTreatment(), blight(), nil)
	require.NoError(t, err)

	got := svc.ActiveReminders()[0]
	got.CompletedCount = 99
	got.NextDue = got.NextDue.Add(time.Hour)

	fresh := svc.ActiveReminders()[0]
	assert.Zero(t, fresh.CompletedCount, "mutating a returned record must not touch the collection")
	assert.Equal(t, r.NextDue, fresh.NextDue)
}

func TestCorruptStoreStartsEmpty(t *testing.T) {
	mock := newMockClock()
	store := memstore.NewStore("cropcare_reminders")
	store.SetRaw([]byte(`not json at all`))

	svc, _ := newTestService(t, mock, store, &recordingNotifier{}, notifier.NoopChime{})
	assert.Empty(t, svc.ActiveReminders())
	assert.Equal(t, 0, svc.sched.PendingCount())
}
