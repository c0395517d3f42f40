package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// TimeLayout is fixed-width so TEXT columns sort chronologically
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t for a TEXT timestamp column
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a TEXT timestamp column
func ParseTime(column, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %s: %w", column, err)
	}
	return t, nil
}

// ParseNullTime parses a nullable TEXT timestamp column
func ParseNullTime(column string, value sql.NullString) (*time.Time, error) {
	if !value.Valid {
		return nil, nil
	}
	t, err := ParseTime(column, value.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// NullTime converts an optional instant to a nullable column value
func NullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: FormatTime(*t), Valid: true}
}
