package notifier

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cropcare/reminder-api/internal/model"
)

type capturingEmail struct {
	to      string
	subject string
	content string
}

func (c *capturingEmail) SendCustom(ctx context.Context, to, subject, content string) error {
	c.to = to
	c.subject = subject
	c.content = content
	return nil
}

func TestEmailNotifierBody(t *testing.T) {
	mail := &capturingEmail{}
	n := NewEmailNotifier(mail, "farmer@example.com")

	err := n.Notify(context.Background(), &model.Reminder{
		ID:            uuid.New(),
		TreatmentName: "Copper Fungicide",
		DiseaseName:   "Late Blight",
		Dosage:        "2g per liter",
		Warning:       "Wear gloves",
	})
	require.NoError(t, err)

	assert.Equal(t, "farmer@example.com", mail.to)
	assert.Equal(t, "Treatment Reminder", mail.subject)
	assert.Contains(t, mail.content, "Copper Fungicide")
	assert.Contains(t, mail.content, "Late Blight")
	assert.Contains(t, mail.content, "2g per liter")
	assert.Contains(t, mail.content, "Wear gloves")
}

func TestEmailNotifierOmitsEmptyWarning(t *testing.T) {
	mail := &capturingEmail{}
	n := NewEmailNotifier(mail, "farmer@example.com")

	err := n.Notify(context.Background(), &model.Reminder{
		TreatmentName: "Neem Oil",
		DiseaseName:   "Powdery Mildew",
		Dosage:        "5ml per liter",
	})
	require.NoError(t, err)
	assert.NotContains(t, mail.content, "Warning")
}

func TestTerminalChimeRingsBell(t *testing.T) {
	var buf bytes.Buffer
	c := TerminalChime{Out: &buf}

	require.NoError(t, c.Play(context.Background()))
	assert.Equal(t, "\a", buf.String())
}

func TestNoopsSucceed(t *testing.T) {
	assert.NoError(t, NoopNotifier{}.Notify(context.Background(), &model.Reminder{}))
	assert.NoError(t, NoopChime{}.Play(context.Background()))
}
