// ABOUTME: Time utility functions for date range calculations
// ABOUTME: Provides UTC ranges for list views like today, yesterday, this week

package timeutil

import "time"

// Range is a half-open interval [Start, End). A zero End is unbounded.
type Range struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	if t.Before(r.Start) {
		return false
	}
	return r.End.IsZero() || t.Before(r.End)
}

// StartOfDay returns midnight UTC of the day containing t
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfWeek returns midnight UTC of the most recent Sunday
// Note: Week starts on Sunday
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// StartOfMonth returns midnight UTC of the first day of the month containing t
func StartOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ParsePeriod converts a period name to the range it covers relative to now.
// Supported values: "today", "yesterday", "week", "month"
func ParsePeriod(period string, now time.Time) (Range, bool) {
	today := StartOfDay(now)
	switch period {
	case "today":
		return Range{Start: today}, true
	case "yesterday":
		return Range{Start: today.AddDate(0, 0, -1), End: today}, true
	case "week":
		return Range{Start: StartOfWeek(now)}, true
	case "month":
		return Range{Start: StartOfMonth(now)}, true
	default:
		return Range{}, false
	}
}
