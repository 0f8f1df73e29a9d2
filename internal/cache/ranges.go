package cache

import (
	"fmt"
	"time"
)

const monthKeyLayout = "2006-01"

// DateRange is a half-open [Start, End) span of local time.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains checks if t falls inside the range
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Days is the number of civil days covered by the range
func (r DateRange) Days() int {
	n := 0
	for d := r.Start; d.Before(r.End); d = d.AddDate(0, 0, 1) {
		n++
	}
	return n
}

// MonthStart returns 00:00:00 on the first day of t's month in loc
func MonthStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}

// MonthKeyFor converts a time to a cache key string (YYYY-MM) in loc.
// Keys are civil months, so they never shift across a DST change.
func MonthKeyFor(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(monthKeyLayout)
}

// KeyToMonth parses a cache key back to the month start in loc
func KeyToMonth(key string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(monthKeyLayout, key, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month key %q: %w", key, err)
	}
	return t, nil
}

// MonthRange returns the [first day, first day of next month) span for key
func MonthRange(key string, loc *time.Location) (DateRange, error) {
	start, err := KeyToMonth(key, loc)
	if err != nil {
		return DateRange{}, err
	}
	return DateRange{Start: start, End: start.AddDate(0, 1, 0)}, nil
}

// AdjacentMonths returns the keys of the months before and after t's month
func AdjacentMonths(t time.Time, loc *time.Location) (prev, next string) {
	start := MonthStart(t, loc)
	return MonthKeyFor(start.AddDate(0, -1, 0), loc), MonthKeyFor(start.AddDate(0, 1, 0), loc)
}
