// Package undo provides a single-slot, time-bounded undo for destructive
// edits.
package undo

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"nestling/internal/metrics"
	"nestling/internal/models"
)

const DefaultWindow = 5 * time.Second

// RestoreFunc reverses a deletion, typically by recreating the event.
type RestoreFunc func(ctx context.Context) (models.Event, error)

// Entry is the armed undo offer.
type Entry struct {
	Event     models.Event
	ExpiresAt time.Time
	restore   RestoreFunc
}

// Manager holds at most one Entry. Registering a new deletion silently
// supersedes the previous offer. Expiry is a deadline check at Undo time;
// no timers run in the background.
type Manager struct {
	window time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu    sync.Mutex
	entry *Entry
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func NewManager(window time.Duration, opts ...Option) *Manager {
	if window <= 0 {
		window = DefaultWindow
	}
	m := &Manager{window: window, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Window() time.Duration {
	return m.window
}

// RegisterDeletion arms the slot for event. Any prior entry is discarded
// without invoking its restore action.
func (m *Manager) RegisterDeletion(event models.Event, restore RestoreFunc) Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entry != nil {
		m.logger.Debug("undo offer superseded",
			zap.String("previous", m.entry.Event.ID),
			zap.String("event", event.ID))
		metrics.UndoOutcome("superseded")
	}
	m.entry = &Entry{Event: event, ExpiresAt: m.now().Add(m.window), restore: restore}
	return *m.entry
}

// Undo invokes the armed restore action. The slot is cleared whatever the
// outcome, so a failed restore cannot be retried through Undo.
func (m *Manager) Undo(ctx context.Context) (models.Event, error) {
	m.mu.Lock()
	entry := m.entry
	m.entry = nil
	now := m.now()
	m.mu.Unlock()

	if entry == nil {
		metrics.UndoOutcome("nothing")
		return models.Event{}, models.NewError(models.NothingToUndo, "undo", nil)
	}
	if now.After(entry.ExpiresAt) {
		m.logger.Debug("undo window elapsed",
			zap.String("event", entry.Event.ID),
			zap.Time("expiresAt", entry.ExpiresAt))
		metrics.UndoOutcome("expired")
		return models.Event{}, models.NewError(models.UndoExpired, "undo", nil)
	}

	restored, err := entry.restore(ctx)
	if err != nil {
		m.logger.Warn("undo restore failed", zap.String("event", entry.Event.ID), zap.Error(err))
		metrics.UndoOutcome("restore_failed")
		return models.Event{}, models.NewError(models.RestoreFailed, "undo", err)
	}
	metrics.UndoOutcome("restored")
	return restored, nil
}

// Clear drops the current entry without invoking it.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry = nil
}

// Pending returns the armed entry, if any. An expired entry is still
// reported until Undo or Clear removes it.
func (m *Manager) Pending() (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entry == nil {
		return Entry{}, false
	}
	return *m.entry, true
}

// CanUndo reports whether Undo would currently invoke a restore.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entry != nil && !m.now().After(m.entry.ExpiresAt)
}
