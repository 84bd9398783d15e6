package model

import (
	"time"

	"github.com/google/uuid"
)

type ScheduleType string

const (
	ScheduleTypeManual    ScheduleType = "manual"
	ScheduleTypeSuggested ScheduleType = "suggested"
	ScheduleTypeCustom    ScheduleType = "custom"
)

// Reminder is one recurring treatment-application schedule. The treatment
// fields are copied verbatim at creation time and never change; NextDue is
// the only field the scheduler mutates.
type Reminder struct {
	ID             uuid.UUID     `json:"id"`
	TreatmentName  string        `json:"treatment_name"`
	DiseaseName    string        `json:"disease_name"`
	Dosage         string        `json:"dosage"`
	Instructions   string        `json:"instructions,omitempty"`
	Warning        string        `json:"warning,omitempty"`
	Note           string        `json:"note,omitempty"`
	ScheduleType   ScheduleType  `json:"schedule_type,omitempty"`
	NextDue        time.Time     `json:"next_due"`
	Interval       time.Duration `json:"interval"`
	IsActive       bool          `json:"is_active"`
	CompletedCount int           `json:"completed_count"`
	LastCompleted  *time.Time    `json:"last_completed,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Clone returns an independent copy of the record. The service hands clones
// to callers and serializers so in-flight reads never alias a record that a
// timer callback is mutating.
func (r *Reminder) Clone() *Reminder {
	if r == nil {
		return nil
	}
	cp := *r
	if r.LastCompleted != nil {
		t := *r.LastCompleted
		cp.LastCompleted = &t
	}
	return &cp
}

// Treatment describes the treatment a reminder is created from.
type Treatment struct {
	Name         string `json:"name" binding:"required" validate:"required"`
	Dosage       string `json:"dosage" binding:"required" validate:"required"`
	Frequency    string `json:"frequency" binding:"required" validate:"required"`
	Instructions string `json:"instructions,omitempty"`
	Warning      string `json:"warning,omitempty"`
}

// Disease identifies the diagnosed disease the treatment targets.
type Disease struct {
	Name string `json:"name" binding:"required" validate:"required"`
}

// ReminderOptions tweaks reminder creation. CustomTime overrides the
// default next-due of now plus one parsed interval.
type ReminderOptions struct {
	CustomTime   *time.Time   `json:"custom_time,omitempty"`
	Note         string       `json:"note,omitempty"`
	ScheduleType ScheduleType `json:"schedule_type,omitempty"`
}

type CreateReminderRequest struct {
	Treatment Treatment        `json:"treatment" binding:"required"`
	Disease   Disease          `json:"disease" binding:"required"`
	Options   *ReminderOptions `json:"options,omitempty"`
}

type SnoozeReminderRequest struct {
	Minutes int `json:"minutes" validate:"min=1,max=1440"`
}

type GenerateScheduleRequest struct {
	Treatment Treatment `json:"treatment" binding:"required"`
	Disease   Disease   `json:"disease" binding:"required"`
}

// ScheduleEntry is one proposed application slot. Entries are suggestions
// only; nothing is persisted until the caller materializes them through
// reminder creation.
type ScheduleEntry struct {
	Application int       `json:"application"`
	DueTime     time.Time `json:"due_time"`
	Description string    `json:"description"`
}

// ReminderFiredEvent is the payload broadcast whenever a reminder fires.
type ReminderFiredEvent struct {
	Type     string    `json:"type"`
	Reminder *Reminder `json:"reminder"`
	FiredAt  time.Time `json:"fired_at"`
}

const EventTypeReminderFired = "reminder.fired"
