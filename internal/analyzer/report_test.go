package analyzer

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"nestling/internal/cache"
	"nestling/internal/models"
	"nestling/internal/timeline"
)

func TestPrintSummaryTotalsOnlyFor24h(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, models.RangeSummary{Range: models.Range24h, TotalDays: 1, TotalFeeds: 3, TotalFeedML: 350})
	out := buf.String()
	assert.Contains(t, out, "Range Summary (24h, 1 day)")
	assert.Contains(t, out, "350 ml")
	assert.NotContains(t, out, "/day")
}

func TestPrintSummaryAverages(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, models.RangeSummary{Range: models.Range7d, TotalDays: 7, TotalFeeds: 21, AvgFeedsPerDay: 3})
	assert.Contains(t, buf.String(), "3.0/day")
}

func TestPrintDays(t *testing.T) {
	start := time.Date(2024, 3, 10, 13, 5, 0, 0, time.UTC)
	ml := 120.0
	days := timeline.Aggregate([]models.Event{
		{ID: "s", Type: models.EventSleep, StartTime: start},
		{ID: "f", Type: models.EventFeed, StartTime: start.Add(time.Hour), Amount: &ml, Unit: "ml", Note: "left side"},
	}, time.UTC)

	var buf bytes.Buffer
	PrintDays(&buf, days, time.UTC)
	out := buf.String()
	assert.Contains(t, out, "Sun 2024-03-10")
	assert.Contains(t, out, "14:05  Feed")
	assert.Contains(t, out, "120 ml")
	assert.Contains(t, out, "in progress")
	assert.Contains(t, out, `"left side"`)

	buf.Reset()
	PrintDays(&buf, nil, time.UTC)
	assert.Contains(t, buf.String(), "no events")
}

func TestPrintMonthCounts(t *testing.T) {
	var buf bytes.Buffer
	PrintMonthCounts(&buf, "2024-02", []cache.DayCounts{{Date: time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), Feeds: 4}})
	assert.Contains(t, buf.String(), "2024-02-03")
	assert.Contains(t, buf.String(), "Month 2024-02")
}
