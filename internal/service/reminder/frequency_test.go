package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseFrequency(t *testing.T) {
	day := 24 * time.Hour

	tests := []struct {
		name string
		text string
		want time.Duration
	}{
		{"single day count", "Every 7 days", 7 * day},
		{"singular day", "1 day", day},
		{"day range uses mean", "Every 7-10 days", 204 * time.Hour},
		{"wider day range", "Every 10-14 days", 12 * day},
		{"hours", "every 12 hours", 12 * time.Hour},
		{"hour range", "2-4 hours", 3 * time.Hour},
		{"singular hour", "1 hour", time.Hour},
		{"uppercase unit", "EVERY 3 DAYS", 3 * day},
		{"pattern embedded in text", "Spray once every 5 days after rain", 5 * day},
		{"no pattern", "apply as needed", FallbackInterval},
		{"empty", "", FallbackInterval},
		{"unit without count", "daily", FallbackInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseFrequency(tt.text))
		})
	}
}

func TestParseFrequencyMatchesMillisecondContract(t *testing.T) {
	// "Every 7-10 days" averages to 8.5 days, i.e. 734400000 ms.
	assert.Equal(t, 734400000*time.Millisecond, ParseFrequency("Every 7-10 days"))
	assert.Equal(t, 1036800000*time.Millisecond, ParseFrequency("Every 10-14 days"))
}

func TestParseFrequencyDeterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		assert.Equal(t, 204*time.Hour, ParseFrequency("Every 7-10 days"))
	}
}

func TestParseFrequencyAlwaysPositive(t *testing.T) {
	for _, text := range []string{"", "0 days", "never", "-3 days", "garbage 0-0 hours"} {
		got := ParseFrequency(text)
		assert.Positive(t, int64(got), "input %q", text)
	}
}

func TestParseFrequencyCustomFallback(t *testing.T) {
	assert.Equal(t, 48*time.Hour, parseFrequency("whenever", 48*time.Hour))
	assert.Equal(t, FallbackInterval, parseFrequency("whenever", 0))
}
