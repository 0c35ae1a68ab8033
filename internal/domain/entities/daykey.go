package entities

import (
	"fmt"
	"strings"
	"time"
)

// DayKeyLayout is the canonical calendar-day form used to bucket tasks and
// notes, e.g. "Mon Oct 19 2026".
const DayKeyLayout = "Mon Jan 02 2006"

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	DayKeyLayout,
}

// DayKey formats t as a day key in loc. A nil loc means time.Local.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DayKeyLayout)
}

// ParseTimestamp parses the timestamp forms accepted in created_at and
// completed_at. Zone-less forms are read in loc.
func ParseTimestamp(v string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	v = strings.TrimSpace(v)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", v)
}

// DayKeyFor derives the bucket of a created_at value. ok is false when the
// value cannot be parsed.
func DayKeyFor(createdAt string, loc *time.Location) (string, bool) {
	t, err := ParseTimestamp(createdAt, loc)
	if err != nil {
		return "", false
	}
	return DayKey(t, loc), true
}

// FormatTimestamp renders t the way created_at and completed_at are stored.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
