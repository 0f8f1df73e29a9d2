package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"nestling/internal/models"
)

// Memory is an in-process event store. The zero value is not usable; call
// NewMemory.
type Memory struct {
	mu     sync.RWMutex
	events map[string]models.Event
	order  []string
	now    func() time.Time
}

func NewMemory(seed ...models.Event) *Memory {
	m := &Memory{events: make(map[string]models.Event), now: time.Now}
	for _, e := range seed {
		m.put(e)
	}
	return m
}

// FetchEvents returns events of subjectID starting in [from, to), in
// insertion order.
func (m *Memory) FetchEvents(ctx context.Context, subjectID string, from, to time.Time) ([]models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Event
	for _, id := range m.order {
		e, ok := m.events[id]
		if !ok || e.SubjectID != subjectID {
			continue
		}
		if e.StartTime.Before(from) || !e.StartTime.Before(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *Memory) DeleteEvent(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return ErrNotFound
	}
	delete(m.events, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// CreateEvent stores the draft under a fresh ID.
func (m *Memory) CreateEvent(ctx context.Context, draft models.EventDraft) (models.Event, error) {
	if err := ctx.Err(); err != nil {
		return models.Event{}, err
	}
	if err := ValidateDraft(draft); err != nil {
		return models.Event{}, err
	}
	e := draft.Event(uuid.NewString(), m.now())
	m.mu.Lock()
	m.put(e)
	m.mu.Unlock()
	return e, nil
}

// All returns every stored event, oldest first.
func (m *Memory) All() []models.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Event, 0, len(m.events))
	for _, id := range m.order {
		out = append(out, m.events[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

func (m *Memory) put(e models.Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if _, ok := m.events[e.ID]; !ok {
		m.order = append(m.order, e.ID)
	}
	m.events[e.ID] = e
}
