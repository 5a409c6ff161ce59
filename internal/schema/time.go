package schema

import (
	"fmt"
	"time"
)

// TimeLayout matches the ISO-8601 form stored in the *_at text columns.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Stamp returns the string and millisecond forms of t.
// Both are derived from the same millisecond-truncated instant so they always agree.
func Stamp(t time.Time) (string, int64) {
	t = t.UTC().Truncate(time.Millisecond)
	return t.Format(TimeLayout), t.UnixMilli()
}

// FormatTime renders t in TimeLayout (UTC, millisecond precision).
func FormatTime(t time.Time) string {
	s, _ := Stamp(t)
	return s
}

// FromMillis converts a millisecond epoch into a UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// ParseTime parses a stored timestamp string.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// checkStamp reports a string/millisecond timestamp pair that does not name
// the same instant. field is the string column; its twin is field+"_timestamp_ms".
func checkStamp(fe *fieldErrors, field, s string, ms int64) {
	t, err := ParseTime(s)
	if err != nil {
		fe.add(field, "must be an ISO-8601 timestamp (got %q)", s)
		return
	}
	if t.UnixMilli() != ms {
		fe.add(field+"_timestamp_ms", "must equal %s (%d), got %d", field, t.UnixMilli(), ms)
	}
}
