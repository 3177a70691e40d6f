package domain

import (
	"strings"
	"time"
)

// DateLayout is the canonical output format for calendar dates.
const DateLayout = "2006-01-02"

var isoLayouts = []string{
	DateLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006/01/02",
}

var dayFirstLayouts = []string{
	"02-01-2006",
	"02/01/2006",
	"02.01.2006",
	"02-01-2006 15:04:05",
	"02/01/2006 15:04:05",
	"2-1-2006",
	"2/1/2006",
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay parses s with the given layouts and returns its UTC calendar day.
func ParseDay(s string, layouts []string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), true
		}
	}
	return time.Time{}, false
}

// ParseISODay parses a single ISO date or timestamp.
func ParseISODay(s string) (time.Time, bool) {
	return ParseDay(s, isoLayouts)
}

// ParseDateColumn parses a whole column. Calendar columns are tried as ISO;
// when no value parses the column is retried day-first. The bool result is
// false when the column held values and none of them parsed.
func ParseDateColumn(values []string, mode DateMode) ([]time.Time, bool) {
	out, parsed, nonEmpty := parseAll(values, isoLayouts)
	if parsed > 0 || nonEmpty == 0 {
		return out, true
	}
	if mode == DateCalendar {
		out, parsed, _ = parseAll(values, dayFirstLayouts)
	}
	return out, parsed > 0
}

func parseAll(values []string, layouts []string) (out []time.Time, parsed, nonEmpty int) {
	out = make([]time.Time, len(values))
	for i, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		nonEmpty++
		if t, ok := ParseDay(v, layouts); ok {
			out[i] = t
			parsed++
		}
	}
	return out, parsed, nonEmpty
}

// FormatDay formats t as YYYY-MM-DD; the zero time is "".
func FormatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// DaysBetween returns (a − b) in days, absent if either date is missing.
func DaysBetween(a, b time.Time) NullFloat {
	if a.IsZero() || b.IsZero() {
		return Null
	}
	return Float(a.Sub(b).Hours() / 24)
}
