package timeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"nestling/internal/models"
)

const (
	DefaultPageSizeDays    = 7
	DefaultMaxLookbackDays = 365
)

// Fetcher is the read side of the event store. Implementations return events
// whose start time falls in [from, to), in any order.
type Fetcher interface {
	FetchEvents(ctx context.Context, subjectID string, from, to time.Time) ([]models.Event, error)
}

type PaginatorOptions struct {
	PageSizeDays    int
	MaxLookbackDays int
	Location        *time.Location
	Now             func() time.Time
	Logger          *zap.Logger
}

// Paginator loads history backwards page by page and holds the canonical
// day list for one subject.
type Paginator struct {
	fetcher   Fetcher
	subjectID string
	pageSize  int
	lookback  int
	loc       *time.Location
	now       func() time.Time
	logger    *zap.Logger

	mu          sync.Mutex
	rng         models.Range
	events      []models.Event
	days        []models.HistoryDay
	summary     models.RangeSummary
	earliest    time.Time
	loaded      bool
	loadingMore bool
	canLoadMore bool
	generation  uint64
}

func NewPaginator(fetcher Fetcher, subjectID string, opts PaginatorOptions) *Paginator {
	p := &Paginator{
		fetcher:   fetcher,
		subjectID: subjectID,
		pageSize:  opts.PageSizeDays,
		lookback:  opts.MaxLookbackDays,
		loc:       opts.Location,
		now:       opts.Now,
		logger:    opts.Logger,
		rng:       models.Range24h,
	}
	if p.pageSize <= 0 {
		p.pageSize = DefaultPageSizeDays
	}
	if p.lookback <= 0 {
		p.lookback = DefaultMaxLookbackDays
	}
	if p.loc == nil {
		p.loc = time.Local
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	p.summary = Summarize(nil, p.rng, p.now(), p.loc)
	return p
}

// LoadInitial replaces the held window with the events of rng. On failure
// the previously loaded data is kept.
func (p *Paginator) LoadInitial(ctx context.Context, rng models.Range) error {
	now := p.now()
	from, to := Window(rng, now, p.loc)

	p.mu.Lock()
	p.generation++
	gen := p.generation
	p.mu.Unlock()

	p.logger.Debug("loading history window",
		zap.String("subject", p.subjectID),
		zap.Stringer("range", rng),
		zap.Time("from", from),
		zap.Time("to", to))

	// The store contract is half-open; nudge the bound so an event logged
	// exactly now is included.
	events, err := p.fetcher.FetchEvents(ctx, p.subjectID, from, to.Add(time.Nanosecond))
	if err != nil {
		p.logger.Warn("history fetch failed", zap.String("subject", p.subjectID), zap.Error(err))
		return models.NewError(models.FetchFailed, "load initial", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		return nil
	}
	p.rng = rng
	p.events = dedupe(events)
	p.earliest = from
	p.loaded = true
	p.canLoadMore = p.withinLookback(from, now)
	p.rebuild(now)
	return nil
}

// LoadMore fetches the page before the earliest loaded boundary and appends
// it. It reports false without fetching while another page is in flight,
// before the first LoadInitial, or once the lookback limit is reached.
func (p *Paginator) LoadMore(ctx context.Context) (bool, error) {
	p.mu.Lock()
	if p.loadingMore || !p.loaded || !p.canLoadMore {
		p.mu.Unlock()
		return false, nil
	}
	p.loadingMore = true
	gen := p.generation
	to := p.earliest
	from := to.AddDate(0, 0, -p.pageSize)
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.loadingMore = false
		p.mu.Unlock()
	}()

	p.logger.Debug("loading more history",
		zap.String("subject", p.subjectID),
		zap.Time("from", from),
		zap.Time("to", to))

	page, err := p.fetcher.FetchEvents(ctx, p.subjectID, from, to)
	if err != nil {
		p.logger.Warn("history page fetch failed", zap.String("subject", p.subjectID), zap.Error(err))
		return false, models.NewError(models.FetchFailed, "load more", err)
	}

	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		// A newer LoadInitial replaced the window while this page was in flight.
		return false, nil
	}
	p.events = dedupe(append(append([]models.Event(nil), p.events...), page...))
	if from.Before(p.earliest) {
		p.earliest = from
	}
	p.canLoadMore = p.withinLookback(p.earliest, now)
	p.rebuild(now)
	return true, nil
}

// Remove drops an event from the held window after it was deleted.
func (p *Paginator) Remove(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := make([]models.Event, 0, len(p.events))
	for _, e := range p.events {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(p.events) {
		return false
	}
	p.events = kept
	p.rebuild(p.now())
	return true
}

// Insert merges a created or restored event into the held window when it
// falls inside the loaded boundary.
func (p *Paginator) Insert(e models.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded || e.StartTime.Before(p.earliest) {
		return false
	}
	p.events = dedupe(append(append([]models.Event(nil), p.events...), e))
	p.rebuild(p.now())
	return true
}

// Refresh recomputes the range summary against the current clock.
func (p *Paginator) Refresh() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.summary = Summarize(p.days, p.rng, p.now(), p.loc)
}

func (p *Paginator) Days() []models.HistoryDay {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.days
}

func (p *Paginator) Events() []models.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Event(nil), p.events...)
}

func (p *Paginator) Summary() models.RangeSummary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.summary
}

func (p *Paginator) Range() models.Range {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng
}

func (p *Paginator) Earliest() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.earliest
}

func (p *Paginator) CanLoadMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded && p.canLoadMore
}

func (p *Paginator) IsLoadingMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadingMore
}

func (p *Paginator) Location() *time.Location {
	return p.loc
}

// rebuild re-aggregates the held events. Callers hold p.mu.
func (p *Paginator) rebuild(now time.Time) {
	p.days = Aggregate(p.events, p.loc)
	p.summary = Summarize(p.days, p.rng, now, p.loc)
}

func (p *Paginator) withinLookback(earliest, now time.Time) bool {
	limit := StartOfDay(now, p.loc).AddDate(0, 0, -p.lookback)
	return earliest.After(limit)
}

// dedupe keeps the last occurrence of each event ID.
func dedupe(events []models.Event) []models.Event {
	index := make(map[string]int, len(events))
	out := make([]models.Event, 0, len(events))
	for _, e := range events {
		if i, ok := index[e.ID]; ok && e.ID != "" {
			out[i] = e
			continue
		}
		index[e.ID] = len(out)
		out = append(out, e)
	}
	return out
}
