package herd

import "time"

// Clock supplies "now" so date-driven behavior (code prefixes, pregnant-date
// stamping, aging thresholds) is deterministic under test.
type Clock func() time.Time

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from one date to another.
func DaysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)).Hours() / 24)
}
