package reservation

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Accepted ETA layouts without zone, interpreted in the engine location.
var etaLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// ParseETA parses a reservation deadline. Seconds are dropped.
func ParseETA(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidETA)
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(loc).Truncate(time.Minute), nil
	}
	for _, layout := range etaLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.Truncate(time.Minute), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidETA, raw)
}

// ParseDate parses an optional YYYY-MM-DD filter bound. Empty input yields nil.
func ParseDate(raw string, loc *time.Location) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return &t, nil
}

// NormalizeUser trims and upper-cases a user name.
func NormalizeUser(user string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(user))
}

func normalizeName(name string) string {
	return strings.TrimSpace(name)
}
