package timeline

import (
	"strings"
	"time"

	"nestling/internal/models"
)

// aliases maps free text words to the event type they refer to.
var aliases = []struct {
	word string
	typ  models.EventType
}{
	{"feed", models.EventFeed},
	{"bottle", models.EventFeed},
	{"breast", models.EventFeed},
	{"nurse", models.EventFeed},
	{"diaper", models.EventDiaper},
	{"poop", models.EventDiaper},
	{"poo", models.EventDiaper},
	{"wet", models.EventDiaper},
	{"dirty", models.EventDiaper},
	{"nap", models.EventSleep},
	{"sleep", models.EventSleep},
	{"bedtime", models.EventSleep},
	{"tummy", models.EventTummyTime},
	{"cry", models.EventCry},
	{"fuss", models.EventCry},
}

// timeLayout mirrors a short localized time, e.g. "8:30 PM".
const timeLayout = "3:04 PM"

// Matcher evaluates the type filter and search query against events. It
// holds the most recent event per type across the whole loaded set, which
// the "last" keyword needs.
type Matcher struct {
	loc    *time.Location
	latest map[models.EventType]models.Event
}

func NewMatcher(loaded []models.Event, loc *time.Location) *Matcher {
	if loc == nil {
		loc = time.Local
	}
	m := &Matcher{loc: loc, latest: make(map[models.EventType]models.Event)}
	for _, e := range loaded {
		cur, ok := m.latest[e.Type]
		if !ok || e.StartTime.After(cur.StartTime) ||
			(e.StartTime.Equal(cur.StartTime) && e.ID < cur.ID) {
			m.latest[e.Type] = e
		}
	}
	return m
}

// Matches reports whether e passes filter and query.
//
// A query containing the word "last" does not substring match at all: it
// selects the single most recent event of the kind named in the query (or of
// e's own type when the query names none).
func (m *Matcher) Matches(e models.Event, filter models.TypeFilter, query string) bool {
	if !filter.Allows(e.Type) {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}

	if hasWord(q, "last") {
		kind, ok := aliasType(q)
		if !ok {
			kind = e.Type
		}
		if e.Type != kind {
			return false
		}
		latest, ok := m.latest[kind]
		return ok && latest.ID == e.ID
	}

	if strings.Contains(strings.ToLower(e.Type.DisplayName()), q) {
		return true
	}
	if e.Note != "" && strings.Contains(strings.ToLower(e.Note), q) {
		return true
	}
	if e.Subtype != "" && strings.Contains(strings.ToLower(e.Subtype), q) {
		return true
	}
	if strings.Contains(strings.ToLower(e.StartTime.In(m.loc).Format(timeLayout)), q) {
		return true
	}
	for _, a := range aliases {
		if a.typ == e.Type && strings.Contains(q, a.word) {
			return true
		}
	}
	return false
}

// Filter keeps the matching events of days and re-buckets them. Days left
// without events are dropped.
func (m *Matcher) Filter(days []models.HistoryDay, filter models.TypeFilter, query string) []models.HistoryDay {
	if (filter == models.FilterAll || filter == "") && strings.TrimSpace(query) == "" {
		return days
	}
	var kept []models.Event
	for _, day := range days {
		for _, e := range day.Events {
			if m.Matches(e, filter, query) {
				kept = append(kept, e)
			}
		}
	}
	return Aggregate(kept, m.loc)
}

func aliasType(q string) (models.EventType, bool) {
	for _, a := range aliases {
		if strings.Contains(q, a.word) {
			return a.typ, true
		}
	}
	return "", false
}

func hasWord(q, word string) bool {
	for _, f := range strings.FieldsFunc(q, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if f == word {
			return true
		}
	}
	return false
}

var cannedSuggestions = []string{"feeds", "diapers", "naps", "tummy"}

// Suggestions returns search suggestions: the canned list followed by
// distinct recent note terms, at most five in total.
func Suggestions(events []models.Event) []string {
	out := append([]string(nil), cannedSuggestions...)
	seen := make(map[string]bool)
	for _, s := range out {
		seen[s] = true
	}
	for _, e := range events {
		for _, term := range strings.Fields(strings.ToLower(e.Note)) {
			if len(out) >= 5 {
				return out
			}
			if len(term) > 2 && !seen[term] {
				seen[term] = true
				out = append(out, term)
			}
		}
	}
	return out
}
