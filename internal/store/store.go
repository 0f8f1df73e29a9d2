// Package store provides event store adapters: an in-memory store and a
// database/sql store over SQLite, PostgreSQL or MySQL.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"nestling/internal/metrics"
	"nestling/internal/models"
)

// ErrNotFound indicates a missing event.
var ErrNotFound = errors.New("event not found")

// EventStore is the narrow read/write contract the timeline engine needs.
type EventStore interface {
	FetchEvents(ctx context.Context, subjectID string, from, to time.Time) ([]models.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	CreateEvent(ctx context.Context, draft models.EventDraft) (models.Event, error)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateDraft checks a draft before it is written.
func ValidateDraft(d models.EventDraft) error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}
	if d.EndTime != nil && d.EndTime.Before(d.StartTime) {
		return errors.New("invalid event: end time before start time")
	}
	return nil
}

// Instrumented records latency and errors of every call to the wrapped store.
type Instrumented struct {
	next EventStore
}

func NewInstrumented(next EventStore) *Instrumented {
	return &Instrumented{next: next}
}

func (s *Instrumented) FetchEvents(ctx context.Context, subjectID string, from, to time.Time) (events []models.Event, err error) {
	defer observe(ctx, "events.fetch", &err)()
	return s.next.FetchEvents(ctx, subjectID, from, to)
}

func (s *Instrumented) DeleteEvent(ctx context.Context, id string) (err error) {
	defer observe(ctx, "events.delete", &err)()
	return s.next.DeleteEvent(ctx, id)
}

func (s *Instrumented) CreateEvent(ctx context.Context, draft models.EventDraft) (event models.Event, err error) {
	defer observe(ctx, "events.create", &err)()
	return s.next.CreateEvent(ctx, draft)
}

func observe(ctx context.Context, operation string, err *error) func() {
	start := time.Now()
	return func() {
		metrics.ObserveStore(ctx, operation, start, *err)
	}
}
