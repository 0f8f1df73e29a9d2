package timeline

import (
	"strings"
	"time"

	"nestling/internal/models"
)

const mlPerFluidOunce = 29.5735

// Window returns the inclusive [from, to] bounds of a range ending at now.
// 24h is a rolling window; 7d and 30d start at local midnight N-1 days back.
func Window(rng models.Range, now time.Time, loc *time.Location) (from, to time.Time) {
	if loc == nil {
		loc = time.Local
	}
	if !rng.UsesAverages() {
		return now.Add(-24 * time.Hour), now
	}
	return StartOfDay(now, loc).AddDate(0, 0, -(rng.DaysToFetch() - 1)), now
}

// Summarize derives totals and per-day averages for rng from the loaded days.
// Only events inside the range window count. The result is always defined:
// an empty window yields zeros with TotalDays 1.
func Summarize(days []models.HistoryDay, rng models.Range, now time.Time, loc *time.Location) models.RangeSummary {
	if loc == nil {
		loc = time.Local
	}
	from, to := Window(rng, now, loc)

	s := models.RangeSummary{Range: rng}
	present := make(map[string]struct{})

	for _, day := range days {
		for _, e := range day.Events {
			if e.StartTime.Before(from) || e.StartTime.After(to) {
				continue
			}
			present[StartOfDay(e.StartTime, loc).Format("2006-01-02")] = struct{}{}

			switch e.Type {
			case models.EventFeed:
				s.TotalFeeds++
				s.TotalFeedML += feedML(e)
			case models.EventDiaper:
				s.TotalDiapers++
			case models.EventSleep:
				if d, ok := e.Duration(); ok {
					s.TotalSleepMinutes += int(d / time.Minute)
				}
			case models.EventCry:
				s.TotalCries++
			case models.EventTummyTime:
				s.TotalTummyTime++
			}
		}
	}

	s.TotalDays = max(1, min(rng.DaysToFetch(), len(present)))

	n := float64(s.TotalDays)
	s.AvgFeedsPerDay = float64(s.TotalFeeds) / n
	s.AvgDiapersPerDay = float64(s.TotalDiapers) / n
	s.AvgSleepMinutesPerDay = float64(s.TotalSleepMinutes) / n
	s.AvgCriesPerDay = float64(s.TotalCries) / n
	return s
}

// feedML normalizes a feed amount to millilitres. Unknown units count as 0.
func feedML(e models.Event) float64 {
	if e.Amount == nil {
		return 0
	}
	switch strings.ToLower(strings.TrimSpace(e.Unit)) {
	case "", "ml", "milliliter", "millilitre":
		return *e.Amount
	case "oz", "floz", "fl oz":
		return *e.Amount * mlPerFluidOunce
	}
	return 0
}
