package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropcare/reminder-api/internal/notifier"
	"github.com/cropcare/reminder-api/internal/repository/memstore"
)

func TestGenerateScheduleShape(t *testing.T) {
	mock := newMockClock()
	store := memstore.NewStore("cropcare_reminders")
	svc, _ := newTestService(t, mock, store, &recordingNotifier{}, notifier.NoopChime{})

	entries := svc.GenerateSchedule(blightTreatment(), blight())

	require.Len(t, entries, 5)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Application)
		assert.Contains(t, e.Description, "Copper Fungicide")

		hour := e.DueTime.Hour()
		inMorning := hour >= 6 && hour < 8
		inEvening := hour >= 18 && hour < 20
		assert.True(t, inMorning || inEvening, "entry %d hour %d outside spraying windows", i, hour)
	}
}

func TestGenerateScheduleSpacedByInterval(t *testing.T) {
	mock := newMockClock()
	store := memstore.NewStore("cropcare_reminders")
	svc, _ := newTestService(t, mock, store, &recordingNotifier{}, notifier.NoopChime{})

	entries := svc.GenerateSchedule(blightTreatment(), blight())

	// A 7-day interval dominates the intra-day window jitter, so due times
	// strictly increase and consecutive applications land 7 days apart.
	for i := 1; i < len(entries); i++ {
		assert.True(t, entries[i].DueTime.After(entries[i-1].DueTime), "entry %d not after entry %d", i, i-1)

		gapDays := entries[i].DueTime.Truncate(24*time.Hour).Sub(entries[i-1].DueTime.Truncate(24*time.Hour)) / (24 * time.Hour)
		assert.Equal(t, time.Duration(7), gapDays)
	}
}

func TestGenerateScheduleDoesNotCreateReminders(t *testing.T) {
	mock := newMockClock()
	store := memstore.NewStore("cropcare_reminders")
	svc, _ := newTestService(t, mock, store, &recordingNotifier{}, notifier.NoopChime{})

	_ = svc.GenerateSchedule(blightTreatment(), blight())

	assert.Empty(t, svc.ActiveReminders())
	assert.Equal(t, 0, svc.sched.PendingCount())

	stored, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)
}
