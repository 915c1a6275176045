package core

import (
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// ParseDate parses a YYYY-MM-DD calendar day as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// TruncateDate drops the clock part of t, keeping its calendar day in t's location, as midnight UTC.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EndOfDay is the last nanosecond of the calendar day of t, as UTC.
func EndOfDay(t time.Time) time.Time {
	return TruncateDate(t).Add(24*time.Hour - time.Nanosecond)
}

// MonthBounds returns the first and last calendar days of the month of t.
func MonthBounds(t time.Time) (time.Time, time.Time) {
	y, m, _ := t.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, -1)
}

// CountWeekdays counts Monday to Friday days between from and to, both inclusive.
func CountWeekdays(from, to time.Time) int {
	from, to = TruncateDate(from), TruncateDate(to)
	var n int
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n++
		}
	}
	return n
}
