// Package week derives the calendar keys used by the cleaning roster.
// All dates are calendar-day granularity in the server's local time.
package week

import "time"

// Start returns the Monday of the week containing t, truncated to midnight.
// Weekly roster rows are keyed by this date so that repeated reads within
// the same week resolve to the same seven slots.
func Start(t time.Time) time.Time {
	// time.Weekday has Sunday = 0; shift so Monday = 0.
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartKey returns Start(t) formatted as YYYY-MM-DD for storage keys.
func StartKey(t time.Time) string {
	return Start(t).Format("2006-01-02")
}

// ValidDay reports whether d is a valid day-of-week index (0..6).
func ValidDay(d int) bool {
	return d >= 0 && d <= 6
}
