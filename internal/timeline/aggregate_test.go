package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nestling/internal/models"
)

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func ev(id string, typ models.EventType, start string) models.Event {
	return models.Event{ID: id, SubjectID: "baby", Type: typ, StartTime: at(start)}
}

func intp(i int) *int { return &i }

func TestAggregateBucketsByLocalDay(t *testing.T) {
	zurich, err := time.LoadLocation("Europe/Zurich")
	require.NoError(t, err)

	events := []models.Event{
		ev("a", models.EventFeed, "2024-03-10T22:30:00Z"), // 23:30 local, Mar 10
		ev("b", models.EventFeed, "2024-03-10T23:30:00Z"), // 00:30 local, Mar 11
		ev("c", models.EventDiaper, "2024-03-10T08:00:00Z"),
	}
	days := Aggregate(events, zurich)
	require.Len(t, days, 2)
	assert.Equal(t, "2024-03-11", days[0].Date.Format("2006-01-02"))
	assert.Equal(t, "2024-03-10", days[1].Date.Format("2006-01-02"))
	assert.Equal(t, []string{"a", "c"}, ids(days[1].Events))
	assert.Equal(t, 1, days[1].Summary.FeedCount)
	assert.Equal(t, 1, days[1].Summary.DiaperCount)
}

func TestAggregateIsIdempotent(t *testing.T) {
	events := []models.Event{
		ev("x", models.EventFeed, "2024-03-10T08:00:00Z"),
		ev("y", models.EventFeed, "2024-03-10T08:00:00Z"),
		ev("z", models.EventSleep, "2024-03-09T13:00:00Z"),
	}
	once := Aggregate(events, time.UTC)
	twice := Aggregate(Flatten(once), time.UTC)
	assert.Equal(t, once, twice)
	assert.Equal(t, []string{"x", "y"}, ids(once[0].Events), "ties break on ID")
}

func TestAggregateConservesEvents(t *testing.T) {
	var events []models.Event
	start := at("2024-03-01T00:00:00Z")
	for i := 0; i < 50; i++ {
		e := ev("", models.EventFeed, "2024-03-01T00:00:00Z")
		e.ID = string(rune('A' + i))
		e.StartTime = start.Add(time.Duration(i) * 5 * time.Hour)
		events = append(events, e)
	}
	days := Aggregate(events, time.UTC)

	feeds := 0
	for _, d := range days {
		feeds += d.Summary.FeedCount
		assert.Len(t, d.Events, d.Summary.FeedCount)
	}
	assert.Equal(t, 50, feeds)
	assert.Len(t, Flatten(days), 50)
}

func TestAggregateEmpty(t *testing.T) {
	assert.Empty(t, Aggregate(nil, time.UTC))
}

func TestSummarizeDay(t *testing.T) {
	sleep := ev("s1", models.EventSleep, "2024-03-10T13:00:00Z")
	sleep.DurationMinutes = intp(45)
	open := ev("s2", models.EventSleep, "2024-03-10T20:00:00Z")
	end := at("2024-03-10T21:30:00Z")
	closed := ev("s3", models.EventSleep, "2024-03-10T16:00:00Z")
	closed.EndTime = &end

	wet := ev("d1", models.EventDiaper, "2024-03-10T09:00:00Z")
	wet.Subtype = "wet"
	dirty := ev("d2", models.EventDiaper, "2024-03-10T10:00:00Z")
	dirty.Subtype = "Dirty"
	both := ev("d3", models.EventDiaper, "2024-03-10T11:00:00Z")
	both.Subtype = "both"

	s := SummarizeDay([]models.Event{sleep, open, closed, wet, dirty, both,
		ev("t", models.EventTummyTime, "2024-03-10T12:00:00Z"),
		ev("c", models.EventCry, "2024-03-10T12:30:00Z")})

	assert.Equal(t, 3, s.NapCount)
	assert.Equal(t, 45+330, s.TotalSleepMinutes, "open sleep adds nothing")
	assert.Equal(t, 3, s.DiaperCount)
	assert.Equal(t, 2, s.WetCount)
	assert.Equal(t, 2, s.DirtyCount)
	assert.Equal(t, 1, s.TummyTimeCount)
	assert.Equal(t, 1, s.CryCount)
	assert.Equal(t, "3 diapers • 6h 15m sleep • 1 tummy time • 1 cry", s.Text())
}

func TestStartOfDayAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	// 2024-03-10 is 23 hours long in New York
	day := StartOfDay(at("2024-03-10T18:00:00Z"), ny)
	next := StartOfDay(at("2024-03-11T18:00:00Z"), ny)
	assert.Equal(t, 23*time.Hour, next.Sub(day))
	assert.Equal(t, 0, day.Hour())
}

func ids(events []models.Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}
