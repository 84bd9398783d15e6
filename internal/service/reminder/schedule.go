package reminder

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/cropcare/reminder-api/internal/model"
)

// GenerateSchedule proposes the next five application slots for a treatment
// without creating any reminders. Slots are spaced by the parsed recurrence
// interval starting from now, and each is nudged into an early-morning
// (06:00-08:00) or evening (18:00-20:00) window with a randomized minute
// offset. Callers materialize accepted slots through CreateReminder with a
// custom time.
func (s *Service) GenerateSchedule(treatment model.Treatment, disease model.Disease) []*model.ScheduleEntry {
	now := s.clock.Now()
	interval := parseFrequency(treatment.Frequency, s.cfg.FallbackInterval)

	entries := make([]*model.ScheduleEntry, 0, scheduleEntries)
	for i := 0; i < scheduleEntries; i++ {
		base := now.Add(time.Duration(i) * interval)
		entries = append(entries, &model.ScheduleEntry{
			Application: i + 1,
			DueTime:     applicationWindow(base),
			Description: fmt.Sprintf("Application %d of %s", i+1, treatment.Name),
		})
	}
	return entries
}

// applicationWindow moves a timestamp into the morning or evening spraying
// window, keeping its date.
func applicationWindow(base time.Time) time.Time {
	hour := 6
	if rand.Intn(2) == 1 {
		hour = 18
	}
	hour += rand.Intn(2)
	minute := rand.Intn(60)

	return time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, base.Location())
}
