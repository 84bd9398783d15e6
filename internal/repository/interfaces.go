package repository

import (
	"context"

	"github.com/cropcare/reminder-api/internal/model"
)

// ReminderStore persists the whole reminder collection as one blob. Save is
// a full overwrite on every mutation; Load returns an empty collection when
// the blob is missing or unreadable, never an error the caller must branch
// on for corruption.
type ReminderStore interface {
	Load(ctx context.Context) ([]*model.Reminder, error)
	Save(ctx context.Context, reminders []*model.Reminder) error
}
