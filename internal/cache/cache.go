// Package cache keeps day buckets of whole calendar months for navigation
// widgets. It is a non-canonical view: entries are never invalidated and
// only live as long as the owning view session.
package cache

import (
	"sort"
	"sync"
	"time"

	"nestling/internal/metrics"
	"nestling/internal/models"
)

// MonthCache maps a YYYY-MM key to the day buckets of that month
type MonthCache struct {
	mu      sync.RWMutex
	loc     *time.Location
	entries map[string][]models.HistoryDay
	created map[string]time.Time
}

// DayCounts holds per-type event counts for one day of a month
type DayCounts struct {
	Date      time.Time `json:"date"`
	Feeds     int       `json:"feeds"`
	Sleep     int       `json:"sleep"`
	Diapers   int       `json:"diapers"`
	TummyTime int       `json:"tummyTime"`
	Cries     int       `json:"cries"`
}

// NewMonthCache creates an empty cache for months in loc
func NewMonthCache(loc *time.Location) *MonthCache {
	if loc == nil {
		loc = time.Local
	}
	return &MonthCache{
		loc:     loc,
		entries: make(map[string][]models.HistoryDay),
		created: make(map[string]time.Time),
	}
}

// Location returns the zone month keys are computed in
func (c *MonthCache) Location() *time.Location {
	return c.loc
}

// Get returns a copy of the cached days of a month, newest first
func (c *MonthCache) Get(key string) ([]models.HistoryDay, bool) {
	c.mu.RLock()
	days, ok := c.entries[key]
	c.mu.RUnlock()
	metrics.MonthCacheLookup(ok)
	if !ok {
		return nil, false
	}
	return copyDays(days), true
}

// GetMonth looks up the month containing t
func (c *MonthCache) GetMonth(t time.Time) ([]models.HistoryDay, bool) {
	return c.Get(MonthKeyFor(t, c.loc))
}

// Has reports whether key is cached without counting a lookup
func (c *MonthCache) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}

// Keys returns cached month keys in ascending order
func (c *MonthCache) Keys() []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

func (c *MonthCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// DayCounts returns per-day type counts for a cached month, oldest day first
func (c *MonthCache) DayCounts(key string) ([]DayCounts, bool) {
	days, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	counts := make([]DayCounts, 0, len(days))
	for i := len(days) - 1; i >= 0; i-- {
		s := days[i].Summary
		counts = append(counts, DayCounts{
			Date:      days[i].Date,
			Feeds:     s.FeedCount,
			Sleep:     s.NapCount,
			Diapers:   s.DiaperCount,
			TummyTime: s.TummyTimeCount,
			Cries:     s.CryCount,
		})
	}
	return counts, true
}

// storeIfAbsent writes a month unless it is already present. It returns
// false when an earlier write won.
func (c *MonthCache) storeIfAbsent(key string, days []models.HistoryDay, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		return false
	}
	c.entries[key] = days
	c.created[key] = now
	return true
}

func (c *MonthCache) createdAt(key string) time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.created[key]
}

func copyDays(days []models.HistoryDay) []models.HistoryDay {
	out := make([]models.HistoryDay, len(days))
	for i, d := range days {
		d.Events = append([]models.Event(nil), d.Events...)
		out[i] = d
	}
	return out
}
