package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/cropcare/reminder-api/internal/model"
	"github.com/cropcare/reminder-api/internal/notifier"
	"github.com/cropcare/reminder-api/internal/repository"
	"github.com/cropcare/reminder-api/internal/scheduler"
	"github.com/cropcare/reminder-api/pkg/logger"
	"github.com/cropcare/reminder-api/pkg/messaging"
	"github.com/cropcare/reminder-api/pkg/metrics"
)

const (
	DefaultSnoozeMinutes = 30
	scheduleEntries      = 5
)

type Config struct {
	DefaultSnoozeMinutes int
	FallbackInterval     time.Duration
	FiredChannel         string
}

// Service owns the reminder collection and composes the store, scheduler,
// notification channels and event broker. Construct it once at application
// start; Close cancels all armed timers.
type Service struct {
	store   repository.ReminderStore
	sched   *scheduler.Scheduler
	notif   notifier.Notifier
	chime   notifier.Chime
	broker  messaging.Broker
	clock   clock.Clock
	logger  *logger.Logger
	metrics *metrics.Metrics
	cfg     Config

	mu        sync.Mutex
	reminders []*model.Reminder
}

// NewService loads the stored collection and schedules every active
// reminder. Reminders whose due time passed while the process was down fire
// immediately during construction.
func NewService(
	ctx context.Context,
	store repository.ReminderStore,
	broker messaging.Broker,
	notif notifier.Notifier,
	chime notifier.Chime,
	clk clock.Clock,
	log *logger.Logger,
	m *metrics.Metrics,
	cfg Config,
) (*Service, error) {
	if cfg.DefaultSnoozeMinutes <= 0 {
		cfg.DefaultSnoozeMinutes = DefaultSnoozeMinutes
	}
	if cfg.FallbackInterval <= 0 {
		cfg.FallbackInterval = FallbackInterval
	}
	if cfg.FiredChannel == "" {
		cfg.FiredChannel = model.EventTypeReminderFired
	}

	reminders, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load reminders: %w", err)
	}

	s := &Service{
		store:     store,
		notif:     notif,
		chime:     chime,
		broker:    broker,
		clock:     clk,
		logger:    log,
		metrics:   m,
		cfg:       cfg,
		reminders: reminders,
	}
	s.sched = scheduler.New(clk, s.fire, log)

	active := 0
	for _, r := range reminders {
		if r.IsActive {
			active++
			s.sched.Schedule(r.Clone())
		}
	}
	if m != nil {
		m.ActiveReminders.Set(float64(active))
	}
	log.Info("reminder service started", "reminders", len(reminders), "active", active)

	return s, nil
}

// CreateReminder builds a reminder from a treatment and disease description,
// persists it and arms its first timer. The recurrence interval is derived
// from the frequency text once and never recomputed.
func (s *Service) CreateReminder(ctx context.Context, treatment model.Treatment, disease model.Disease, opts *model.ReminderOptions) (*model.Reminder, error) {
	now := s.clock.Now()
	interval := parseFrequency(treatment.Frequency, s.cfg.FallbackInterval)

	r := &model.Reminder{
		ID:            uuid.New(),
		TreatmentName: treatment.Name,
		DiseaseName:   disease.Name,
		Dosage:        treatment.Dosage,
		Instructions:  treatment.Instructions,
		Warning:       treatment.Warning,
		NextDue:       now.Add(interval),
		Interval:      interval,
		IsActive:      true,
		CreatedAt:     now,
	}
	if opts != nil {
		if opts.CustomTime != nil {
			r.NextDue = *opts.CustomTime
		}
		r.Note = opts.Note
		r.ScheduleType = opts.ScheduleType
	}

	s.mu.Lock()
	s.reminders = append(s.reminders, r)
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.store.Save(ctx, snapshot); err != nil {
		return nil, fmt.Errorf("failed to persist reminder: %w", err)
	}

	s.sched.Schedule(r.Clone())

	if s.metrics != nil {
		s.metrics.RemindersCreated.Inc()
		s.metrics.ActiveReminders.Inc()
	}

	// Re-read under mu: an overdue custom time fires during Schedule and
	// advances NextDue before we return.
	s.mu.Lock()
	out := r.Clone()
	s.mu.Unlock()

	s.logger.Info("reminder created",
		"reminder_id", out.ID.String(),
		"treatment", out.TreatmentName,
		"interval", out.Interval.String(),
	)
	return out, nil
}

// CompleteReminder acknowledges one applied dose. It never touches NextDue
// or the armed timer; the recurring schedule is unaffected. Unknown ids are
// a no-op.
func (s *Service) CompleteReminder(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	r := s.findLocked(id)
	if r == nil {
		s.mu.Unlock()
		return nil
	}
	now := s.clock.Now()
	r.CompletedCount++
	r.LastCompleted = &now
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	return s.store.Save(ctx, snapshot)
}

// SnoozeReminder pushes the next firing out by the given number of minutes
// without changing the recurrence interval. Zero or negative minutes use the
// configured default. Unknown ids are a no-op.
func (s *Service) SnoozeReminder(ctx context.Context, id uuid.UUID, minutes int) error {
	if minutes <= 0 {
		minutes = s.cfg.DefaultSnoozeMinutes
	}

	s.mu.Lock()
	r := s.findLocked(id)
	if r == nil {
		s.mu.Unlock()
		return nil
	}
	r.NextDue = s.clock.Now().Add(time.Duration(minutes) * time.Minute)
	next := r.Clone()
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.store.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to persist snooze: %w", err)
	}

	s.sched.Cancel(id)
	s.sched.Schedule(next)

	if s.metrics != nil {
		s.metrics.RemindersSnoozed.Inc()
	}
	return nil
}

// DeleteReminder removes the record and cancels its timer. Unknown ids are a
// no-op.
func (s *Service) DeleteReminder(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	found := false
	wasActive := false
	kept := s.reminders[:0]
	for _, r := range s.reminders {
		if r.ID == id {
			found = true
			wasActive = r.IsActive
			continue
		}
		kept = append(kept, r)
	}
	s.reminders = kept
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if !found {
		return nil
	}

	if err := s.store.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to persist deletion: %w", err)
	}

	s.sched.Cancel(id)

	if s.metrics != nil {
		s.metrics.RemindersDeleted.Inc()
		if wasActive {
			s.metrics.ActiveReminders.Dec()
		}
	}
	return nil
}

// ActiveReminders returns the active records in insertion order. The records
// are clones; callers may read and serialize them without holding any lock.
func (s *Service) ActiveReminders() []*model.Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make([]*model.Reminder, 0, len(s.reminders))
	for _, r := range s.reminders {
		if r.IsActive {
			active = append(active, r.Clone())
		}
	}
	return active
}

// Close cancels all armed timers. The stored collection is left as-is; a
// later construction re-arms it.
func (s *Service) Close() {
	s.sched.Close()
}

// fire is the firing procedure for one due reminder: advance the due time
// and persist, then best-effort notification and audio cue, then broadcast
// the full record and re-arm the next occurrence. Notification and cue
// failures never block persistence, broadcast or re-scheduling.
func (s *Service) fire(fired *model.Reminder) {
	ctx := context.Background()
	now := s.clock.Now()

	// The scheduler holds a clone; resolve the live record by id. A reminder
	// deleted between arming and firing is simply gone.
	s.mu.Lock()
	live := s.findLocked(fired.ID)
	if live == nil {
		s.mu.Unlock()
		return
	}
	live.NextDue = now.Add(live.Interval)
	r := live.Clone()
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.store.Save(ctx, snapshot); err != nil {
		s.logger.Warn(err, "failed to persist fired reminder", "reminder_id", r.ID.String())
	}

	if err := s.notif.Notify(ctx, r); err != nil {
		s.logger.Debug("notification skipped", "reminder_id", r.ID.String(), "reason", err.Error())
		if s.metrics != nil {
			s.metrics.NotificationsFailed.Inc()
		}
	} else if s.metrics != nil {
		s.metrics.NotificationsSent.Inc()
	}

	if err := s.chime.Play(ctx); err != nil {
		s.logger.Debug("audio cue skipped", "reason", err.Error())
	}

	event := model.ReminderFiredEvent{
		Type:     model.EventTypeReminderFired,
		Reminder: r,
		FiredAt:  now,
	}
	if err := s.broker.Publish(ctx, s.cfg.FiredChannel, event); err != nil {
		s.logger.Warn(err, "failed to broadcast reminder event", "reminder_id", r.ID.String())
		if s.metrics != nil {
			s.metrics.EventsFailed.Inc()
		}
	} else if s.metrics != nil {
		s.metrics.EventsPublished.Inc()
	}

	s.sched.Schedule(r)

	if s.metrics != nil {
		s.metrics.RemindersFired.Inc()
	}
}

func (s *Service) findLocked(id uuid.UUID) *model.Reminder {
	for _, r := range s.reminders {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// snapshotLocked clones the collection so Save can marshal it after mu is
// released without aliasing records a concurrent mutation is writing to.
func (s *Service) snapshotLocked() []*model.Reminder {
	snapshot := make([]*model.Reminder, len(s.reminders))
	for i, r := range s.reminders {
		snapshot[i] = r.Clone()
	}
	return snapshot
}
