package notifier

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/cropcare/reminder-api/internal/email"
	"github.com/cropcare/reminder-api/internal/model"
)

// Notifier delivers a user-facing notification for a due reminder. Delivery
// is best-effort: callers swallow errors, so implementations must never
// block the firing path for long.
type Notifier interface {
	Notify(ctx context.Context, r *model.Reminder) error
}

// Chime plays a short audible cue alongside a notification, best-effort.
type Chime interface {
	Play(ctx context.Context) error
}

// EmailNotifier sends reminder notifications by mail.
type EmailNotifier struct {
	svc       email.Service
	recipient string
}

func NewEmailNotifier(svc email.Service, recipient string) *EmailNotifier {
	return &EmailNotifier{svc: svc, recipient: recipient}
}

func (n *EmailNotifier) Notify(ctx context.Context, r *model.Reminder) error {
	subject := "Treatment Reminder"
	body := fmt.Sprintf(
		"<p>Apply <strong>%s</strong> for <strong>%s</strong>.</p><p>Dosage: %s</p>",
		r.TreatmentName, r.DiseaseName, r.Dosage,
	)
	if r.Warning != "" {
		body += fmt.Sprintf("<p>Warning: %s</p>", r.Warning)
	}
	return n.svc.SendCustom(ctx, n.recipient, subject, body)
}

// NoopNotifier stands in when no notification channel is configured, the
// equivalent of running without notification permission.
type NoopNotifier struct{}

func (NoopNotifier) Notify(ctx context.Context, r *model.Reminder) error { return nil }

// TerminalChime rings the terminal bell.
type TerminalChime struct {
	Out io.Writer
}

func (c TerminalChime) Play(ctx context.Context) error {
	out := c.Out
	if out == nil {
		out = os.Stdout
	}
	_, err := out.Write([]byte("\a"))
	return err
}

// NoopChime is used when audio cues are disabled.
type NoopChime struct{}

func (NoopChime) Play(ctx context.Context) error { return nil }
