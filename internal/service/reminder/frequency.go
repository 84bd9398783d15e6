package reminder

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FallbackInterval is used when a frequency description has no recognizable
// pattern.
const FallbackInterval = 7 * 24 * time.Hour

// Matches "7 days", "every 7-10 days", "12 hours" anywhere in the text.
var frequencyPattern = regexp.MustCompile(`(?i)(\d+)(?:-(\d+))?\s*(day|hour)s?`)

// ParseFrequency converts a human-readable treatment frequency into a
// recurrence interval. A range like "7-10 days" uses the arithmetic mean of
// its bounds. The result is always positive.
func ParseFrequency(text string) time.Duration {
	return parseFrequency(text, FallbackInterval)
}

func parseFrequency(text string, fallback time.Duration) time.Duration {
	if fallback <= 0 {
		fallback = FallbackInterval
	}

	m := frequencyPattern.FindStringSubmatch(text)
	if m == nil {
		return fallback
	}

	lo, err := strconv.Atoi(m[1])
	if err != nil || lo <= 0 {
		return fallback
	}
	hi := lo
	if m[2] != "" {
		if v, err := strconv.Atoi(m[2]); err == nil && v > 0 {
			hi = v
		}
	}
	avg := float64(lo+hi) / 2

	unit := time.Hour
	if strings.EqualFold(m[3], "day") {
		unit = 24 * time.Hour
	}

	return time.Duration(avg * float64(unit))
}
