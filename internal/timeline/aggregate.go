// Package timeline turns a flat event log into day buckets, range summaries
// and paginated history windows.
package timeline

import (
	"sort"
	"strings"
	"time"

	"nestling/internal/models"
)

// StartOfDay returns local midnight of the civil date of t in loc. Days are
// civil dates, so DST transition days are 23 or 25 hours long.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Aggregate buckets events by the local calendar day of their start time.
// Days are returned newest first, events within a day newest first.
func Aggregate(events []models.Event, loc *time.Location) []models.HistoryDay {
	if loc == nil {
		loc = time.Local
	}

	type bucket struct {
		date   time.Time
		events []models.Event
	}
	buckets := make(map[string]*bucket)
	for _, e := range events {
		day := StartOfDay(e.StartTime, loc)
		key := day.Format("2006-01-02")
		b, ok := buckets[key]
		if !ok {
			b = &bucket{date: day}
			buckets[key] = b
		}
		b.events = append(b.events, e)
	}

	days := make([]models.HistoryDay, 0, len(buckets))
	for _, b := range buckets {
		sortEvents(b.events)
		days = append(days, models.HistoryDay{
			Date:    b.date,
			Events:  b.events,
			Summary: SummarizeDay(b.events),
		})
	}

	sort.Slice(days, func(i, j int) bool {
		return days[i].Date.After(days[j].Date)
	})
	return days
}

// Flatten returns the events of all days in display order.
func Flatten(days []models.HistoryDay) []models.Event {
	n := 0
	for _, d := range days {
		n += len(d.Events)
	}
	events := make([]models.Event, 0, n)
	for _, d := range days {
		events = append(events, d.Events...)
	}
	return events
}

// SummarizeDay computes counts and durations for one bucket.
func SummarizeDay(events []models.Event) models.DaySummary {
	var s models.DaySummary
	for _, e := range events {
		switch e.Type {
		case models.EventSleep:
			s.NapCount++
			if d, ok := e.Duration(); ok {
				s.TotalSleepMinutes += int(d / time.Minute)
			}
		case models.EventFeed:
			s.FeedCount++
		case models.EventDiaper:
			s.DiaperCount++
			sub := strings.ToLower(e.Subtype)
			if strings.Contains(sub, "wet") || isMixed(sub) {
				s.WetCount++
			}
			if strings.Contains(sub, "dirty") || strings.Contains(sub, "poop") || isMixed(sub) {
				s.DirtyCount++
			}
		case models.EventTummyTime:
			s.TummyTimeCount++
		case models.EventCry:
			s.CryCount++
		}
	}
	return s
}

func isMixed(subtype string) bool {
	return subtype == "both" || subtype == "mixed"
}

// sortEvents orders newest first; equal start times fall back to ID so
// re-aggregation is deterministic.
func sortEvents(events []models.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].StartTime.Equal(events[j].StartTime) {
			return events[i].StartTime.After(events[j].StartTime)
		}
		return events[i].ID < events[j].ID
	})
}
