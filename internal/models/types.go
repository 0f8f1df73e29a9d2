package models

import (
	"fmt"
	"strings"
	"time"
)

type EventType string

const (
	EventFeed      EventType = "feed"
	EventSleep     EventType = "sleep"
	EventDiaper    EventType = "diaper"
	EventTummyTime EventType = "tummyTime"
	EventCry       EventType = "cry"
)

// EventTypes lists every known type in display order.
var EventTypes = []EventType{EventFeed, EventSleep, EventDiaper, EventTummyTime, EventCry}

func (t EventType) Valid() bool {
	switch t {
	case EventFeed, EventSleep, EventDiaper, EventTummyTime, EventCry:
		return true
	}
	return false
}

// DisplayName is the user facing label, also used by text search.
func (t EventType) DisplayName() string {
	switch t {
	case EventFeed:
		return "Feed"
	case EventSleep:
		return "Sleep"
	case EventDiaper:
		return "Diaper"
	case EventTummyTime:
		return "Tummy Time"
	case EventCry:
		return "Cry"
	}
	return string(t)
}

type Event struct {
	ID              string     `json:"id" yaml:"id"`
	SubjectID       string     `json:"babyId" yaml:"babyId"`
	Type            EventType  `json:"type" yaml:"type"`
	Subtype         string     `json:"subtype,omitempty" yaml:"subtype,omitempty"`
	StartTime       time.Time  `json:"startTime" yaml:"startTime"`
	EndTime         *time.Time `json:"endTime,omitempty" yaml:"endTime,omitempty"`
	DurationMinutes *int       `json:"durationMinutes,omitempty" yaml:"durationMinutes,omitempty"`
	Amount          *float64   `json:"amount,omitempty" yaml:"amount,omitempty"`
	Unit            string     `json:"unit,omitempty" yaml:"unit,omitempty"`
	Side            string     `json:"side,omitempty" yaml:"side,omitempty"`
	Note            string     `json:"note,omitempty" yaml:"note,omitempty"`
	CreatedAt       time.Time  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt" yaml:"updatedAt"`
}

// Duration returns the event length. DurationMinutes wins over EndTime;
// ok is false for point logs and open intervals.
func (e Event) Duration() (time.Duration, bool) {
	if e.DurationMinutes != nil {
		return time.Duration(*e.DurationMinutes) * time.Minute, true
	}
	if e.EndTime != nil {
		d := e.EndTime.Sub(e.StartTime)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

// Draft strips identity and bookkeeping timestamps so the content can be
// written again, e.g. when undoing a delete.
func (e Event) Draft() EventDraft {
	return EventDraft{
		SubjectID:       e.SubjectID,
		Type:            e.Type,
		Subtype:         e.Subtype,
		StartTime:       e.StartTime,
		EndTime:         copyTime(e.EndTime),
		DurationMinutes: copyInt(e.DurationMinutes),
		Amount:          copyFloat(e.Amount),
		Unit:            e.Unit,
		Side:            e.Side,
		Note:            e.Note,
	}
}

// SameContent reports whether two events carry the same logged content,
// ignoring ID and bookkeeping timestamps.
func (e Event) SameContent(o Event) bool {
	return e.Draft().Equal(o.Draft())
}

// EventDraft is the input to CreateEvent.
type EventDraft struct {
	SubjectID       string     `json:"babyId" validate:"required"`
	Type            EventType  `json:"type" validate:"required,oneof=feed sleep diaper tummyTime cry"`
	Subtype         string     `json:"subtype,omitempty" validate:"max=64"`
	StartTime       time.Time  `json:"startTime" validate:"required"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	DurationMinutes *int       `json:"durationMinutes,omitempty" validate:"omitempty,min=0"`
	Amount          *float64   `json:"amount,omitempty" validate:"omitempty,min=0"`
	Unit            string     `json:"unit,omitempty" validate:"max=16"`
	Side            string     `json:"side,omitempty" validate:"max=16"`
	Note            string     `json:"note,omitempty" validate:"max=2000"`
}

// WithStart moves the draft to a new start time, keeping any interval length.
func (d EventDraft) WithStart(start time.Time) EventDraft {
	if d.EndTime != nil {
		end := start.Add(d.EndTime.Sub(d.StartTime))
		d.EndTime = &end
	}
	d.StartTime = start
	return d
}

// Event materializes the draft with the given identity.
func (d EventDraft) Event(id string, now time.Time) Event {
	return Event{
		ID:              id,
		SubjectID:       d.SubjectID,
		Type:            d.Type,
		Subtype:         d.Subtype,
		StartTime:       d.StartTime,
		EndTime:         copyTime(d.EndTime),
		DurationMinutes: copyInt(d.DurationMinutes),
		Amount:          copyFloat(d.Amount),
		Unit:            d.Unit,
		Side:            d.Side,
		Note:            d.Note,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (d EventDraft) Equal(o EventDraft) bool {
	return d.SubjectID == o.SubjectID &&
		d.Type == o.Type &&
		d.Subtype == o.Subtype &&
		d.StartTime.Equal(o.StartTime) &&
		equalTime(d.EndTime, o.EndTime) &&
		equalInt(d.DurationMinutes, o.DurationMinutes) &&
		equalFloat(d.Amount, o.Amount) &&
		d.Unit == o.Unit &&
		d.Side == o.Side &&
		d.Note == o.Note
}

// HistoryDay is one local calendar day of events, newest first.
type HistoryDay struct {
	Date    time.Time  `json:"date"`
	Events  []Event    `json:"events"`
	Summary DaySummary `json:"summary"`
}

type DaySummary struct {
	TotalSleepMinutes int `json:"totalSleepMinutes"`
	NapCount          int `json:"napCount"`
	FeedCount         int `json:"feedCount"`
	DiaperCount       int `json:"diaperCount"`
	WetCount          int `json:"wetCount"`
	DirtyCount        int `json:"dirtyCount"`
	TummyTimeCount    int `json:"tummyTimeCount"`
	CryCount          int `json:"cryCount"`
}

func (s DaySummary) IsEmpty() bool {
	return s.FeedCount == 0 && s.DiaperCount == 0 && s.NapCount == 0 &&
		s.TotalSleepMinutes == 0 && s.TummyTimeCount == 0 && s.CryCount == 0
}

func (s DaySummary) SleepHours() int {
	return s.TotalSleepMinutes / 60
}

func (s DaySummary) SleepRemainderMinutes() int {
	return s.TotalSleepMinutes % 60
}

// Text renders a one line summary such as "3 feeds • 2 diapers • 1h 30m sleep".
func (s DaySummary) Text() string {
	var parts []string
	if s.FeedCount > 0 {
		parts = append(parts, plural(s.FeedCount, "feed"))
	}
	if s.DiaperCount > 0 {
		parts = append(parts, plural(s.DiaperCount, "diaper"))
	}
	if s.TotalSleepMinutes > 0 {
		h, m := s.SleepHours(), s.SleepRemainderMinutes()
		switch {
		case h > 0 && m > 0:
			parts = append(parts, fmt.Sprintf("%dh %dm sleep", h, m))
		case h > 0:
			parts = append(parts, fmt.Sprintf("%dh sleep", h))
		default:
			parts = append(parts, fmt.Sprintf("%dm sleep", m))
		}
	}
	if s.TummyTimeCount > 0 {
		parts = append(parts, plural(s.TummyTimeCount, "tummy time"))
	}
	if s.CryCount > 0 {
		parts = append(parts, plural(s.CryCount, "cry"))
	}
	return strings.Join(parts, " • ")
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	if strings.HasSuffix(word, "y") && !strings.HasSuffix(word, "ay") {
		return fmt.Sprintf("%d %sies", n, strings.TrimSuffix(word, "y"))
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// Range is a caller selected lookback window.
type Range string

const (
	Range24h Range = "24h"
	Range7d  Range = "7d"
	Range30d Range = "30d"
)

func ParseRange(s string) (Range, error) {
	switch Range(strings.ToLower(strings.TrimSpace(s))) {
	case Range24h, "1d", "":
		return Range24h, nil
	case Range7d, "week":
		return Range7d, nil
	case Range30d, "month":
		return Range30d, nil
	}
	return "", fmt.Errorf("unknown range %q (use 24h, 7d or 30d)", s)
}

func (r Range) DaysToFetch() int {
	switch r {
	case Range7d:
		return 7
	case Range30d:
		return 30
	}
	return 1
}

// UsesAverages is false for the rolling 24h window, which reports totals.
func (r Range) UsesAverages() bool {
	return r != Range24h
}

func (r Range) String() string {
	return string(r)
}

type TypeFilter string

const (
	FilterAll     TypeFilter = "all"
	FilterFeeds   TypeFilter = "feeds"
	FilterDiapers TypeFilter = "diapers"
	FilterSleep   TypeFilter = "sleep"
	FilterTummy   TypeFilter = "tummy"
	FilterCry     TypeFilter = "cry"
)

func ParseTypeFilter(s string) (TypeFilter, error) {
	switch f := TypeFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterFeeds, FilterDiapers, FilterSleep, FilterTummy, FilterCry:
		return f, nil
	}
	return "", fmt.Errorf("unknown filter %q", s)
}

func (f TypeFilter) Allows(t EventType) bool {
	switch f {
	case FilterAll, "":
		return true
	case FilterFeeds:
		return t == EventFeed
	case FilterDiapers:
		return t == EventDiaper
	case FilterSleep:
		return t == EventSleep
	case FilterTummy:
		return t == EventTummyTime
	case FilterCry:
		return t == EventCry
	}
	return false
}

// RangeSummary aggregates a selected window. Averages are per TotalDays,
// which is never zero.
type RangeSummary struct {
	Range                 Range   `json:"range"`
	TotalDays             int     `json:"totalDays"`
	TotalFeeds            int     `json:"totalFeeds"`
	TotalDiapers          int     `json:"totalDiapers"`
	TotalSleepMinutes     int     `json:"totalSleepMinutes"`
	TotalCries            int     `json:"totalCries"`
	TotalTummyTime        int     `json:"totalTummyTime"`
	TotalFeedML           float64 `json:"totalFeedMl"`
	AvgFeedsPerDay        float64 `json:"avgFeedsPerDay"`
	AvgDiapersPerDay      float64 `json:"avgDiapersPerDay"`
	AvgSleepMinutesPerDay float64 `json:"avgSleepMinutesPerDay"`
	AvgCriesPerDay        float64 `json:"avgCriesPerDay"`
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func equalInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func equalFloat(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
