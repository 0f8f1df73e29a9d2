// Package analyzer renders history snapshots as plain text reports.
package analyzer

import (
	"fmt"
	"io"
	"strings"
	"time"

	"nestling/internal/cache"
	"nestling/internal/history"
	"nestling/internal/models"
)

// PrintSummary writes the range overview. The rolling 24h range reports
// totals only; longer ranges add per-day averages.
func PrintSummary(w io.Writer, s models.RangeSummary) {
	fmt.Fprintf(w, "\nRange Summary (%s, %d %s):\n", s.Range, s.TotalDays, dayWord(s.TotalDays))
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 40))

	avg := s.Range.UsesAverages()
	line := func(label string, total string, perDay float64, unit string) {
		if avg {
			fmt.Fprintf(w, "%-12s %10s   %6.1f%s/day\n", label, total, perDay, unit)
			return
		}
		fmt.Fprintf(w, "%-12s %10s\n", label, total)
	}
	line("Feeds:", fmt.Sprint(s.TotalFeeds), s.AvgFeedsPerDay, "")
	if s.TotalFeedML > 0 {
		fmt.Fprintf(w, "%-12s %7.0f ml\n", "Volume:", s.TotalFeedML)
	}
	line("Diapers:", fmt.Sprint(s.TotalDiapers), s.AvgDiapersPerDay, "")
	line("Sleep:", formatMinutes(s.TotalSleepMinutes), s.AvgSleepMinutesPerDay, "m")
	line("Cries:", fmt.Sprint(s.TotalCries), s.AvgCriesPerDay, "")
	fmt.Fprintf(w, "%-12s %10d\n", "Tummy time:", s.TotalTummyTime)
}

// PrintDays writes one block per day, newest first.
func PrintDays(w io.Writer, days []models.HistoryDay, loc *time.Location) {
	fmt.Fprintf(w, "\nDays:\n")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 40))
	if len(days) == 0 {
		fmt.Fprintf(w, "no events\n")
		return
	}
	for _, day := range days {
		fmt.Fprintf(w, "%s  %s\n", day.Date.Format("Mon 2006-01-02"), day.Summary.Text())
		for _, e := range day.Events {
			fmt.Fprintf(w, "  %s  %-10s %s\n", e.StartTime.In(loc).Format("15:04"), e.Type.DisplayName(), detail(e))
		}
	}
}

// PrintSnapshot writes the summary followed by the days of snap.
func PrintSnapshot(w io.Writer, snap history.Snapshot, loc *time.Location) {
	PrintSummary(w, snap.RangeSummary)
	PrintDays(w, snap.Days, loc)
	if snap.CanLoadMore {
		fmt.Fprintf(w, "\n(more history available)\n")
	}
}

// PrintMonthCounts writes the calendar counts of a cached month.
func PrintMonthCounts(w io.Writer, key string, counts []cache.DayCounts) {
	fmt.Fprintf(w, "\nMonth %s:\n", key)
	fmt.Fprintf(w, "%-10s %6s %6s %8s %6s %6s\n", "Date", "Feeds", "Sleep", "Diapers", "Tummy", "Cries")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 47))
	for _, c := range counts {
		fmt.Fprintf(w, "%-10s %6d %6d %8d %6d %6d\n",
			c.Date.Format("2006-01-02"), c.Feeds, c.Sleep, c.Diapers, c.TummyTime, c.Cries)
	}
}

func detail(e models.Event) string {
	var parts []string
	if e.Subtype != "" {
		parts = append(parts, e.Subtype)
	}
	if e.Amount != nil {
		unit := e.Unit
		if unit == "" {
			unit = "ml"
		}
		parts = append(parts, fmt.Sprintf("%g %s", *e.Amount, unit))
	}
	if d, ok := e.Duration(); ok {
		parts = append(parts, formatMinutes(int(d/time.Minute)))
	} else if e.Type == models.EventSleep {
		parts = append(parts, "in progress")
	}
	if e.Side != "" {
		parts = append(parts, e.Side)
	}
	if e.Note != "" {
		parts = append(parts, fmt.Sprintf("%q", e.Note))
	}
	return strings.Join(parts, ", ")
}

func formatMinutes(m int) string {
	if m < 60 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %dm", m/60, m%60)
}

func dayWord(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}
