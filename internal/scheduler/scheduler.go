package scheduler

import (
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/cropcare/reminder-api/internal/model"
	"github.com/cropcare/reminder-api/pkg/logger"
)

// FireFunc runs the firing procedure for one due reminder. It is expected to
// advance the reminder's NextDue and call Schedule again to arm the next
// occurrence.
type FireFunc func(r *model.Reminder)

type pending struct {
	timer *clock.Timer
	seq   uint64
}

// Scheduler keeps at most one pending one-shot timer per active reminder.
// Recurrence is achieved by re-scheduling after each firing rather than by a
// repeating timer, so a snooze can override the next occurrence by simply
// cancelling and re-arming.
type Scheduler struct {
	clock  clock.Clock
	fire   FireFunc
	logger *logger.Logger

	mu      sync.Mutex
	pending map[uuid.UUID]pending
	seq     uint64
	closed  bool
}

func New(clk clock.Clock, fire FireFunc, log *logger.Logger) *Scheduler {
	return &Scheduler{
		clock:   clk,
		fire:    fire,
		logger:  log,
		pending: make(map[uuid.UUID]pending),
	}
}

// Schedule arms the timer for a reminder's NextDue. Inactive reminders are
// ignored. An already-due reminder fires synchronously instead of waiting.
// Any previously pending timer for the same reminder is cancelled first, so
// a reminder never has more than one timer armed.
func (s *Scheduler) Schedule(r *model.Reminder) {
	if r == nil || !r.IsActive {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.cancelLocked(r.ID)

	delay := r.NextDue.Sub(s.clock.Now())
	if delay <= 0 {
		s.mu.Unlock()
		s.logger.Debug("reminder overdue, firing now", "reminder_id", r.ID.String())
		s.fire(r)
		return
	}

	s.seq++
	seq := s.seq
	timer := s.clock.AfterFunc(delay, func() {
		s.expired(r, seq)
	})
	s.pending[r.ID] = pending{timer: timer, seq: seq}
	s.mu.Unlock()
}

// expired runs on timer expiry. The sequence check drops callbacks from
// timers that were cancelled or replaced after they had already started.
func (s *Scheduler) expired(r *model.Reminder, seq uint64) {
	s.mu.Lock()
	p, ok := s.pending[r.ID]
	if !ok || p.seq != seq {
		s.mu.Unlock()
		return
	}
	delete(s.pending, r.ID)
	s.mu.Unlock()

	s.fire(r)
}

// Cancel clears any pending timer for the reminder. Cancelling a reminder
// with no pending timer is a no-op.
func (s *Scheduler) Cancel(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(id)
}

func (s *Scheduler) cancelLocked(id uuid.UUID) {
	if p, ok := s.pending[id]; ok {
		p.timer.Stop()
		delete(s.pending, id)
	}
}

// HasPending reports whether a timer is currently armed for the reminder.
func (s *Scheduler) HasPending(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[id]
	return ok
}

// PendingCount returns the number of armed timers.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close cancels every pending timer and rejects further scheduling.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, id)
	}
}
