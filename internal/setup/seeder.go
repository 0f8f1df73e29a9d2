// Package setup seeds an event store with canned scenarios for demos and QA.
package setup

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"nestling/internal/models"
)

type Scenario string

const (
	ScenarioDemo        Scenario = "demo"
	ScenarioLight       Scenario = "light"
	ScenarioHeavy       Scenario = "heavy"
	ScenarioNewborn     Scenario = "newborn"
	ScenarioThreeMonths Scenario = "threeMonths"
	ScenarioSixMonths   Scenario = "sixMonths"
	ScenarioRealistic   Scenario = "realistic"
)

var Scenarios = []Scenario{
	ScenarioDemo, ScenarioLight, ScenarioHeavy, ScenarioNewborn,
	ScenarioThreeMonths, ScenarioSixMonths, ScenarioRealistic,
}

func ParseScenario(s string) (Scenario, error) {
	for _, sc := range Scenarios {
		if strings.EqualFold(string(sc), s) {
			return sc, nil
		}
	}
	return "", fmt.Errorf("unknown scenario %q", s)
}

// Creator is the write side of an event store.
type Creator interface {
	CreateEvent(ctx context.Context, draft models.EventDraft) (models.Event, error)
}

type Seeder struct {
	store     Creator
	subjectID string
	now       time.Time
	rng       *rand.Rand
}

// NewSeeder creates a seeder anchored at now. The seed makes the realistic
// scenario reproducible.
func NewSeeder(store Creator, subjectID string, now time.Time, seed int64) *Seeder {
	return &Seeder{
		store:     store,
		subjectID: subjectID,
		now:       now,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Apply writes the events of scenario and returns them, oldest first.
func (s *Seeder) Apply(ctx context.Context, scenario Scenario) ([]models.Event, error) {
	drafts, err := s.Drafts(scenario)
	if err != nil {
		return nil, err
	}
	created := make([]models.Event, 0, len(drafts))
	for _, d := range drafts {
		e, err := s.store.CreateEvent(ctx, d)
		if err != nil {
			return created, fmt.Errorf("seeding %s: %w", scenario, err)
		}
		created = append(created, e)
	}
	return created, nil
}

// Drafts returns the events of scenario without writing them.
func (s *Seeder) Drafts(scenario Scenario) ([]models.EventDraft, error) {
	var out []models.EventDraft
	at := func(hoursAgo float64) time.Time {
		return s.now.Add(-time.Duration(hoursAgo * float64(time.Hour)))
	}

	switch scenario {
	case ScenarioDemo:
		out = append(out,
			s.feed(at(2), 120),
			s.sleep(at(3), 45),
			s.diaper(at(1), "wet"))
	case ScenarioLight:
		for day := 0; day < 3; day++ {
			base := s.now.AddDate(0, 0, -day)
			out = append(out, s.feed(base.Add(-4*time.Hour), 100))
			if day < 2 {
				out = append(out, s.diaper(base.Add(-2*time.Hour), "wet"))
			}
		}
	case ScenarioHeavy:
		for day := 0; day < 7; day++ {
			base := s.now.AddDate(0, 0, -day)
			for _, h := range []int{2, 5, 8, 11, 14, 17, 20} {
				out = append(out, s.feed(base.Add(-time.Duration(h)*time.Hour), 120))
			}
			for _, h := range []int{3, 6, 9, 12, 15, 18} {
				out = append(out, s.diaper(base.Add(-time.Duration(h)*time.Hour), "wet"))
			}
			out = append(out,
				s.sleep(base.Add(-14*time.Hour), 60),
				s.sleep(base.Add(-10*time.Hour), 90))
		}
	case ScenarioNewborn:
		for h := 2; h <= 22; h += 3 {
			out = append(out, s.feed(at(float64(h)), 60))
		}
		for h := 1; h <= 23; h += 4 {
			out = append(out, s.diaper(at(float64(h)), "wet"))
		}
	case ScenarioThreeMonths:
		for _, h := range []float64{3, 7, 11, 15, 19} {
			out = append(out, s.feed(at(h), 150))
		}
		out = append(out, s.sleep(at(14), 90), s.sleep(at(10), 120))
	case ScenarioSixMonths:
		for _, h := range []float64{4, 9, 14, 19} {
			out = append(out, s.feed(at(h), 180))
		}
		out = append(out,
			s.tummy(at(6), 15),
			s.sleep(at(13), 120),
			s.sleep(at(9), 90))
	case ScenarioRealistic:
		out = s.realisticDay(24)
	default:
		return nil, fmt.Errorf("unknown scenario %q", scenario)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// realisticDay spreads feeds and diapers every two to four hours over the
// last hours, with fixed sleep blocks and short tummy time sessions.
func (s *Seeder) realisticDay(hours int) []models.EventDraft {
	var out []models.EventDraft
	start := s.now.Add(-time.Duration(hours) * time.Hour)

	out = append(out, s.spaced(start, 0.4, 6, func(t time.Time) models.EventDraft {
		return s.feed(t, float64(100+s.rng.Intn(51)))
	})...)
	subtypes := []string{"wet", "dirty", "both"}
	out = append(out, s.spaced(start, 0.3, 4, func(t time.Time) models.EventDraft {
		return s.diaper(t, subtypes[s.rng.Intn(len(subtypes))])
	})...)

	for _, b := range []struct{ hoursAgo, minutes int }{{22, 60}, {16, 90}, {12, 45}, {6, 480}} {
		t := s.now.Add(-time.Duration(b.hoursAgo) * time.Hour)
		if t.Add(time.Duration(b.minutes) * time.Minute).Before(s.now) {
			d := s.sleep(t, b.minutes)
			if b.minutes > 300 {
				d.Subtype = "overnight"
			}
			out = append(out, d)
		}
	}
	for _, h := range []int{20, 14, 10, 4} {
		out = append(out, s.tummy(s.now.Add(-time.Duration(h)*time.Hour), 3+s.rng.Intn(6)))
	}
	return out
}

// spaced walks hour by hour from start, emitting with probability p and
// skipping two to four hours after each emission.
func (s *Seeder) spaced(start time.Time, p float64, limit int, build func(time.Time) models.EventDraft) []models.EventDraft {
	var out []models.EventDraft
	for t := start; t.Before(s.now) && len(out) < limit; {
		if s.rng.Float64() < p {
			out = append(out, build(t))
			t = t.Add(time.Duration(2+s.rng.Intn(3)) * time.Hour)
			continue
		}
		t = t.Add(time.Hour)
	}
	return out
}

func (s *Seeder) feed(t time.Time, ml float64) models.EventDraft {
	return models.EventDraft{
		SubjectID: s.subjectID,
		Type:      models.EventFeed,
		Subtype:   "bottle",
		StartTime: t,
		Amount:    &ml,
		Unit:      "ml",
	}
}

func (s *Seeder) diaper(t time.Time, subtype string) models.EventDraft {
	return models.EventDraft{SubjectID: s.subjectID, Type: models.EventDiaper, Subtype: subtype, StartTime: t}
}

func (s *Seeder) sleep(t time.Time, minutes int) models.EventDraft {
	end := t.Add(time.Duration(minutes) * time.Minute)
	return models.EventDraft{
		SubjectID:       s.subjectID,
		Type:            models.EventSleep,
		Subtype:         "nap",
		StartTime:       t,
		EndTime:         &end,
		DurationMinutes: &minutes,
	}
}

func (s *Seeder) tummy(t time.Time, minutes int) models.EventDraft {
	end := t.Add(time.Duration(minutes) * time.Minute)
	return models.EventDraft{
		SubjectID:       s.subjectID,
		Type:            models.EventTummyTime,
		StartTime:       t,
		EndTime:         &end,
		DurationMinutes: &minutes,
	}
}

// WriteYAML dumps events as a YAML list.
func WriteYAML(w io.Writer, events []models.Event) error {
	data, err := yaml.Marshal(events)
	if err != nil {
		return fmt.Errorf("marshaling to yaml: %w", err)
	}
	_, err = w.Write(data)
	return err
}
