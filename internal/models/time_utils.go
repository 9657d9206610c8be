package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	RFC3339Milli = "2006-01-02T15:04:05.000Z"
	// SQLiteDateTime is the CURRENT_TIMESTAMP layout used by the hospital database.
	SQLiteDateTime = "2006-01-02 15:04:05"
)

// JSONTime wraps time.Time so server timestamps in any of the known layouts decode.
type JSONTime time.Time

func (jt JSONTime) MarshalJSON() ([]byte, error) {
	if time.Time(jt).IsZero() {
		return []byte("null"), nil
	}
	return []byte(fmt.Sprintf("\"%s\"", time.Time(jt).UTC().Format(time.RFC3339Nano))), nil
}

func (jt *JSONTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), "\"")
	if s == "null" || s == "" {
		*jt = JSONTime(time.Time{})
		return nil
	}

	t, err := ParseTimestamp(s)
	if err != nil {
		return fmt.Errorf("JSONTime.UnmarshalJSON: %w", err)
	}
	*jt = JSONTime(t)
	return nil
}

// ParseTimestamp tries every layout the API has been seen to emit.
// Layouts without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		RFC3339Milli,
		"2006-01-02T15:04:05Z",
		time.RFC3339,
		"2006-01-02T15:04:05.999999",
		"2006-01-02T15:04:05",
		SQLiteDateTime,
		"2006-01-02 15:04:05.999999",
	}

	var err error
	for _, format := range formats {
		var t time.Time
		t, err = time.Parse(format, s)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse time string '%s' with known formats: %w", s, err)
}

func (jt JSONTime) Time() time.Time {
	return time.Time(jt)
}

func (jt JSONTime) IsZero() bool {
	return time.Time(jt).IsZero()
}
