package sqlitedb

import (
	"errors"
	"strings"
	"time"
)

// timeLayout keeps a fixed fractional width so stored values sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t the way every trackline table stores timestamps.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseTime accepts RFC3339Nano values and SQLite's CURRENT_TIMESTAMP layout.
func ParseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func NullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func NullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return FormatTime(*value)
}

// Placeholders returns count comma-separated "?" markers.
func Placeholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
