// Package history is the presentation-facing view of one subject's event
// timeline: paginated day buckets, range summary, search, month preload and
// undoable deletes.
package history

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"nestling/internal/cache"
	"nestling/internal/models"
	"nestling/internal/timeline"
	"nestling/internal/undo"
)

// EventStore is what the view model needs from an event store adapter.
type EventStore interface {
	timeline.Fetcher
	DeleteEvent(ctx context.Context, id string) error
	CreateEvent(ctx context.Context, draft models.EventDraft) (models.Event, error)
}

type Options struct {
	Location        *time.Location
	PageSizeDays    int
	MaxLookbackDays int
	UndoWindow      time.Duration
	PreloadEnabled  bool
	Now             func() time.Time
	Logger          *zap.Logger
}

// Snapshot is an immutable copy of everything a presentation layer renders.
type Snapshot struct {
	Days           []models.HistoryDay `json:"days"`
	RangeSummary   models.RangeSummary `json:"rangeSummary"`
	CanLoadMore    bool                `json:"canLoadMore"`
	IsLoadingMore  bool                `json:"isLoadingMore"`
	SearchText     string              `json:"searchText"`
	SelectedFilter models.TypeFilter   `json:"selectedFilter"`
	SelectedRange  models.Range        `json:"selectedRange"`
	CanUndo        bool                `json:"canUndo"`
	Suggestions    []string            `json:"suggestions"`
	PreloadEnabled bool                `json:"preloadEnabled"`
}

type ViewModel struct {
	store     EventStore
	subjectID string
	loc       *time.Location
	now       func() time.Time
	logger    *zap.Logger

	paginator *timeline.Paginator
	months    *cache.MonthCache
	preloader *cache.Preloader
	undo      *undo.Manager
	preload   atomic.Bool

	mu     sync.Mutex
	search string
	filter models.TypeFilter

	subMu   sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
	closed  bool
}

func New(store EventStore, subjectID string, opts Options) *ViewModel {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.UndoWindow <= 0 {
		opts.UndoWindow = undo.DefaultWindow
	}
	logger := opts.Logger.With(zap.String("subject", subjectID))

	vm := &ViewModel{
		store:     store,
		subjectID: subjectID,
		loc:       opts.Location,
		now:       opts.Now,
		logger:    logger,
		filter:    models.FilterAll,
		subs:      make(map[int]chan Snapshot),
	}
	vm.preload.Store(opts.PreloadEnabled)
	vm.paginator = timeline.NewPaginator(store, subjectID, timeline.PaginatorOptions{
		PageSizeDays:    opts.PageSizeDays,
		MaxLookbackDays: opts.MaxLookbackDays,
		Location:        opts.Location,
		Now:             opts.Now,
		Logger:          logger,
	})
	vm.months = cache.NewMonthCache(opts.Location)
	vm.preloader = cache.NewPreloader(vm.months, store, subjectID, cache.PreloaderOptions{
		Enabled: vm.preload.Load,
		Now:     opts.Now,
		Logger:  logger,
	})
	vm.undo = undo.NewManager(opts.UndoWindow, undo.WithClock(opts.Now), undo.WithLogger(logger))
	return vm
}

// SelectRange loads the window for rng, replacing the held days.
func (vm *ViewModel) SelectRange(ctx context.Context, rng models.Range) error {
	if err := vm.paginator.LoadInitial(ctx, rng); err != nil {
		vm.publish()
		return err
	}
	vm.preloader.Trigger(vm.now())
	vm.publish()
	return nil
}

// Refresh reloads the currently selected range.
func (vm *ViewModel) Refresh(ctx context.Context) error {
	return vm.SelectRange(ctx, vm.paginator.Range())
}

// LoadMore appends the page before the earliest loaded day. It reports
// whether a page was loaded.
func (vm *ViewModel) LoadMore(ctx context.Context) (bool, error) {
	loaded, err := vm.paginator.LoadMore(ctx)
	if err != nil {
		vm.publish()
		return false, err
	}
	if loaded {
		vm.preloader.Trigger(vm.paginator.Earliest())
		vm.publish()
	}
	return loaded, nil
}

func (vm *ViewModel) SetSearchText(text string) {
	vm.mu.Lock()
	vm.search = text
	vm.mu.Unlock()
	vm.publish()
}

func (vm *ViewModel) SetFilter(filter models.TypeFilter) {
	vm.mu.Lock()
	vm.filter = filter
	vm.mu.Unlock()
	vm.publish()
}

// SetPreloadEnabled toggles month preloading for subsequent loads.
func (vm *ViewModel) SetPreloadEnabled(enabled bool) {
	vm.preload.Store(enabled)
	vm.publish()
}

// DeleteEvent deletes e and offers undo for it. A failed delete withdraws
// any pending undo offer.
func (vm *ViewModel) DeleteEvent(ctx context.Context, e models.Event) error {
	if err := vm.store.DeleteEvent(ctx, e.ID); err != nil {
		vm.undo.Clear()
		vm.logger.Warn("delete failed", zap.String("event", e.ID), zap.Error(err))
		vm.publish()
		return models.NewError(models.DeleteFailed, "delete event", err)
	}
	draft := e.Draft()
	vm.undo.RegisterDeletion(e, func(ctx context.Context) (models.Event, error) {
		return vm.store.CreateEvent(ctx, draft)
	})
	vm.paginator.Remove(e.ID)
	vm.publish()
	return nil
}

// UndoLastDeletion recreates the most recently deleted event while the undo
// window is open.
func (vm *ViewModel) UndoLastDeletion(ctx context.Context) (models.Event, error) {
	restored, err := vm.undo.Undo(ctx)
	if err != nil {
		vm.publish()
		return models.Event{}, err
	}
	vm.paginator.Insert(restored)
	vm.publish()
	return restored, nil
}

// DuplicateEvent logs a copy of e starting now.
func (vm *ViewModel) DuplicateEvent(ctx context.Context, e models.Event) (models.Event, error) {
	created, err := vm.store.CreateEvent(ctx, e.Draft().WithStart(vm.now()))
	if err != nil {
		return models.Event{}, fmt.Errorf("duplicate event %s: %w", e.ID, err)
	}
	vm.paginator.Insert(created)
	vm.publish()
	return created, nil
}

// GetCachedMonth returns the preloaded days of the month containing
// monthStart.
func (vm *ViewModel) GetCachedMonth(monthStart time.Time) ([]models.HistoryDay, bool) {
	return vm.months.GetMonth(monthStart)
}

// MonthCounts returns per-day type counts of a preloaded month.
func (vm *ViewModel) MonthCounts(monthStart time.Time) ([]cache.DayCounts, bool) {
	return vm.months.DayCounts(cache.MonthKeyFor(monthStart, vm.loc))
}

// FindEvent looks up a loaded event by ID.
func (vm *ViewModel) FindEvent(id string) (models.Event, bool) {
	for _, e := range vm.paginator.Events() {
		if e.ID == id {
			return e, true
		}
	}
	return models.Event{}, false
}

func (vm *ViewModel) Cache() *cache.MonthCache {
	return vm.months
}

// WaitPreloads blocks until started preload tasks have returned.
func (vm *ViewModel) WaitPreloads() {
	vm.preloader.Wait()
}

func (vm *ViewModel) Location() *time.Location {
	return vm.loc
}

func (vm *ViewModel) UndoWindow() time.Duration {
	return vm.undo.Window()
}

// Snapshot computes the current view. Days are filtered by the selected type
// filter and search text; the range summary is not.
func (vm *ViewModel) Snapshot() Snapshot {
	vm.mu.Lock()
	search, filter := vm.search, vm.filter
	vm.mu.Unlock()

	events := vm.paginator.Events()
	matcher := timeline.NewMatcher(events, vm.loc)
	days := matcher.Filter(vm.paginator.Days(), filter, search)
	if days == nil {
		days = []models.HistoryDay{}
	}
	return Snapshot{
		Days:           days,
		RangeSummary:   vm.paginator.Summary(),
		CanLoadMore:    vm.paginator.CanLoadMore(),
		IsLoadingMore:  vm.paginator.IsLoadingMore(),
		SearchText:     search,
		SelectedFilter: filter,
		SelectedRange:  vm.paginator.Range(),
		CanUndo:        vm.undo.CanUndo(),
		Suggestions:    timeline.Suggestions(events),
		PreloadEnabled: vm.preload.Load(),
	}
}

// Subscribe returns a channel receiving a snapshot after every change. Slow
// receivers only see the latest snapshot.
func (vm *ViewModel) Subscribe() (<-chan Snapshot, func()) {
	vm.subMu.Lock()
	defer vm.subMu.Unlock()
	ch := make(chan Snapshot, 1)
	if vm.closed {
		close(ch)
		return ch, func() {}
	}
	id := vm.nextSub
	vm.nextSub++
	vm.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			vm.subMu.Lock()
			defer vm.subMu.Unlock()
			if c, ok := vm.subs[id]; ok {
				delete(vm.subs, id)
				close(c)
			}
		})
	}
}

func (vm *ViewModel) publish() {
	vm.subMu.Lock()
	defer vm.subMu.Unlock()
	if len(vm.subs) == 0 {
		return
	}
	snap := vm.Snapshot()
	for _, ch := range vm.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// Close stops preloading and closes all subscriptions.
func (vm *ViewModel) Close() {
	vm.preloader.Close()
	vm.subMu.Lock()
	defer vm.subMu.Unlock()
	if vm.closed {
		return
	}
	vm.closed = true
	for id, ch := range vm.subs {
		delete(vm.subs, id)
		close(ch)
	}
	vm.undo.Clear()
}
