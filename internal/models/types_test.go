package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)

func TestEventDuration(t *testing.T) {
	end := t0.Add(90 * time.Minute)
	before := t0.Add(-time.Minute)
	mins := 20

	tests := []struct {
		name string
		ev   Event
		want time.Duration
		ok   bool
	}{
		{"point", Event{StartTime: t0}, 0, false},
		{"interval", Event{StartTime: t0, EndTime: &end}, 90 * time.Minute, true},
		{"minutes win", Event{StartTime: t0, EndTime: &end, DurationMinutes: &mins}, 20 * time.Minute, true},
		{"negative clamps", Event{StartTime: t0, EndTime: &before}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := tt.ev.Duration()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, d)
		})
	}
}

func TestDraftRoundTrip(t *testing.T) {
	amount := 120.0
	end := t0.Add(time.Hour)
	e := Event{
		ID: "a", SubjectID: "baby", Type: EventSleep, StartTime: t0, EndTime: &end,
		Amount: &amount, Note: "crib", CreatedAt: t0, UpdatedAt: t0,
	}
	again := e.Draft().Event("b", t0.Add(time.Minute))

	assert.Equal(t, "b", again.ID)
	assert.True(t, e.SameContent(again))
	assert.NotSame(t, e.EndTime, again.EndTime)
	assert.NotSame(t, e.Amount, again.Amount)

	other := again
	other.Note = "stroller"
	assert.False(t, e.SameContent(other))
}

func TestWithStartKeepsInterval(t *testing.T) {
	end := t0.Add(45 * time.Minute)
	mins := 10
	d := EventDraft{StartTime: t0, EndTime: &end}
	moved := d.WithStart(t0.Add(3 * time.Hour))
	require.NotNil(t, moved.EndTime)
	assert.Equal(t, t0.Add(3*time.Hour+45*time.Minute), *moved.EndTime)
	assert.Equal(t, t0.Add(45*time.Minute), *d.EndTime)

	point := EventDraft{StartTime: t0, DurationMinutes: &mins}.WithStart(t0.Add(time.Hour))
	assert.Nil(t, point.EndTime)
	assert.Equal(t, 10, *point.DurationMinutes)
}

func TestDaySummaryText(t *testing.T) {
	assert.Equal(t, "", DaySummary{}.Text())
	assert.True(t, DaySummary{}.IsEmpty())
	assert.Equal(t, "1 feed • 2h sleep", DaySummary{FeedCount: 1, TotalSleepMinutes: 120}.Text())
	assert.Equal(t, "2 diapers • 45m sleep • 2 tummy times • 2 cries",
		DaySummary{DiaperCount: 2, TotalSleepMinutes: 45, TummyTimeCount: 2, CryCount: 2}.Text())
}

func TestParseRange(t *testing.T) {
	for in, want := range map[string]Range{"": Range24h, "24h": Range24h, "7D": Range7d, "week": Range7d, "30d": Range30d, "month": Range30d} {
		got, err := ParseRange(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseRange("year")
	assert.Error(t, err)

	assert.Equal(t, 1, Range24h.DaysToFetch())
	assert.Equal(t, 7, Range7d.DaysToFetch())
	assert.Equal(t, 30, Range30d.DaysToFetch())
	assert.False(t, Range24h.UsesAverages())
	assert.True(t, Range30d.UsesAverages())
}

func TestTypeFilter(t *testing.T) {
	f, err := ParseTypeFilter(" Diapers ")
	require.NoError(t, err)
	assert.Equal(t, FilterDiapers, f)
	f, err = ParseTypeFilter("")
	require.NoError(t, err)
	assert.Equal(t, FilterAll, f)
	_, err = ParseTypeFilter("baths")
	assert.Error(t, err)

	for _, typ := range EventTypes {
		assert.True(t, FilterAll.Allows(typ))
	}
	assert.True(t, FilterTummy.Allows(EventTummyTime))
	assert.False(t, FilterTummy.Allows(EventSleep))
	assert.True(t, FilterCry.Allows(EventCry))
}

func TestEventTypeValid(t *testing.T) {
	assert.True(t, EventTummyTime.Valid())
	assert.False(t, EventType("bath").Valid())
	assert.Equal(t, "Tummy Time", EventTummyTime.DisplayName())
}

func TestErrorMatching(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("refresh: %w", NewError(FetchFailed, "load more", cause))

	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, &Error{Kind: FetchFailed, Op: "load more"})
	assert.NotErrorIs(t, err, &Error{Kind: FetchFailed, Op: "load initial"})
	assert.NotErrorIs(t, err, ErrDeleteFailed)
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, err, "refresh: load more: FETCH_FAILED: connection reset")

	var typed *Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, FetchFailed, typed.Kind)
	assert.Equal(t, "NOTHING_TO_UNDO", NewError(NothingToUndo, "", nil).Error())
}
