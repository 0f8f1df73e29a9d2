package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"nestling/internal/metrics"
	"nestling/internal/models"
	"nestling/internal/timeline"
)

// PreloaderOptions configures a Preloader
type PreloaderOptions struct {
	// Enabled is consulted once per Trigger; nil means always enabled.
	Enabled func() bool
	Now     func() time.Time
	Logger  *zap.Logger
}

// Preloader warms the months around the one being viewed. Each Trigger
// supersedes the previous one: stale tasks are cancelled and their results
// are never written.
type Preloader struct {
	cache     *MonthCache
	fetcher   timeline.Fetcher
	subjectID string
	enabled   func() bool
	now       func() time.Time
	logger    *zap.Logger

	root     context.Context
	shutdown context.CancelFunc
	flights  singleflight.Group

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPreloader creates a preloader writing into cache
func NewPreloader(cache *MonthCache, fetcher timeline.Fetcher, subjectID string, opts PreloaderOptions) *Preloader {
	root, shutdown := context.WithCancel(context.Background())
	p := &Preloader{
		cache:     cache,
		fetcher:   fetcher,
		subjectID: subjectID,
		enabled:   opts.Enabled,
		now:       opts.Now,
		logger:    opts.Logger,
		root:      root,
		shutdown:  shutdown,
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

// Trigger cancels any in-flight preload and starts independent tasks for the
// months before and after the month of around. It returns false when
// preloading is disabled.
func (p *Preloader) Trigger(around time.Time) bool {
	if p.enabled != nil && !p.enabled() {
		return false
	}
	prev, next := AdjacentMonths(around, p.cache.Location())

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	ctx, cancel := context.WithCancel(p.root)
	p.cancel = cancel
	p.wg.Add(2)
	p.mu.Unlock()

	for _, key := range []string{prev, next} {
		go func(key string) {
			defer p.wg.Done()
			if err := p.Preload(ctx, key); err != nil {
				p.logger.Warn("month preload failed", zap.String("month", key), zap.Error(err))
			}
		}(key)
	}
	return true
}

// Preload fetches and stores one month unless it is cached already.
// Cancellation is checked before the fetch and before the write; a fetch in
// progress runs to completion. Concurrent preloads of the same month share
// one fetch.
func (p *Preloader) Preload(ctx context.Context, key string) error {
	if ctx.Err() != nil {
		metrics.PreloadOutcome("discarded")
		return nil
	}
	if p.cache.Has(key) {
		metrics.PreloadOutcome("skipped")
		return nil
	}
	span, err := MonthRange(key, p.cache.Location())
	if err != nil {
		return err
	}

	v, err, shared := p.flights.Do(key, func() (interface{}, error) {
		if days, ok := p.cachedDays(key); ok {
			return days, nil
		}
		p.logger.Debug("preloading month",
			zap.String("subject", p.subjectID),
			zap.String("month", key))
		events, err := p.fetcher.FetchEvents(p.root, p.subjectID, span.Start, span.End)
		if err != nil {
			return nil, err
		}
		return timeline.Aggregate(clip(events, span), p.cache.Location()), nil
	})
	if err != nil {
		metrics.PreloadOutcome("failed")
		return fmt.Errorf("preloading %s: %w", key, err)
	}

	if ctx.Err() != nil {
		p.logger.Debug("discarding stale preload", zap.String("month", key), zap.Bool("shared", shared))
		metrics.PreloadOutcome("discarded")
		return nil
	}
	if p.cache.storeIfAbsent(key, v.([]models.HistoryDay), p.now()) {
		metrics.PreloadOutcome("stored")
	} else {
		metrics.PreloadOutcome("skipped")
	}
	return nil
}

// Wait blocks until all started tasks have returned
func (p *Preloader) Wait() {
	p.wg.Wait()
}

// Close cancels outstanding tasks, including fetches in progress, and waits
// for them to return.
func (p *Preloader) Close() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()
	p.shutdown()
	p.wg.Wait()
}

func (p *Preloader) cachedDays(key string) ([]models.HistoryDay, bool) {
	p.cache.mu.RLock()
	defer p.cache.mu.RUnlock()
	days, ok := p.cache.entries[key]
	return days, ok
}

// clip drops events an adapter returned outside the month span.
func clip(events []models.Event, span DateRange) []models.Event {
	kept := events[:0:0]
	for _, e := range events {
		if span.Contains(e.StartTime) {
			kept = append(kept, e)
		}
	}
	return kept
}
