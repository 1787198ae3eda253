package database

import (
	"strings"
	"time"
)

// TimeFormat is the layout for TEXT timestamp columns. It is fixed-width
// so stored values sort chronologically as strings.
const TimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t in UTC using TimeFormat.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// ParseTime parses a timestamp column written by FormatTime.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// NullString maps "" to NULL for nullable TEXT columns.
func NullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Where accumulates AND-ed conditions with their bind arguments. Column
// names come from code, never from request input.
type Where struct {
	clauses []string
	args    []any
}

// Eq adds "column = ?" when value is non-empty.
func (w *Where) Eq(column, value string) *Where {
	if value != "" {
		w.clauses = append(w.clauses, column+" = ?")
		w.args = append(w.args, value)
	}
	return w
}

// After adds "column >= ?" when t is set.
func (w *Where) After(column string, t time.Time) *Where {
	if !t.IsZero() {
		w.clauses = append(w.clauses, column+" >= ?")
		w.args = append(w.args, FormatTime(t))
	}
	return w
}

// Before adds "column < ?" when t is set.
func (w *Where) Before(column string, t time.Time) *Where {
	if !t.IsZero() {
		w.clauses = append(w.clauses, column+" < ?")
		w.args = append(w.args, FormatTime(t))
	}
	return w
}

// String returns the WHERE clause, or "" with no conditions.
func (w *Where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.clauses, " AND ")
}

// Args returns the bind arguments, followed by extra.
func (w *Where) Args(extra ...any) []any {
	out := make([]any, 0, len(w.args)+len(extra))
	out = append(out, w.args...)
	return append(out, extra...)
}

// Page clamps a limit/offset pair. A non-positive limit becomes def, a
// limit above ceiling becomes ceiling and a negative offset becomes zero.
func Page(limit, offset, def, ceiling int) (int, int) {
	if limit <= 0 {
		limit = def
	}
	if limit > ceiling {
		limit = ceiling
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
