package timeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nestling/internal/models"
)

type fetchCall struct {
	from, to time.Time
}

// fakeFetcher serves events from a fixed log and records calls.
type fakeFetcher struct {
	mu     sync.Mutex
	events []models.Event
	calls  []fetchCall
	err    error
	block  chan struct{}
}

func (f *fakeFetcher) FetchEvents(ctx context.Context, subjectID string, from, to time.Time) ([]models.Event, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{from, to})
	block, err := f.block, f.err
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	var out []models.Event
	for _, e := range f.events {
		if !e.StartTime.Before(from) && e.StartTime.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var pagNow = at("2024-03-15T12:00:00Z")

func newTestPaginator(f *fakeFetcher, lookback int) *Paginator {
	return NewPaginator(f, "baby", PaginatorOptions{
		PageSizeDays:    7,
		MaxLookbackDays: lookback,
		Location:        time.UTC,
		Now:             func() time.Time { return pagNow },
	})
}

func pagEvents() []models.Event {
	return []models.Event{
		feedAt("now", pagNow, 100, "ml"),
		feedAt("today", pagNow.Add(-2*time.Hour), 100, "ml"),
		feedAt("d3", pagNow.AddDate(0, 0, -3), 100, "ml"),
		feedAt("d6", pagNow.AddDate(0, 0, -6), 100, "ml"),
		feedAt("d12", pagNow.AddDate(0, 0, -12), 100, "ml"),
	}
}

func TestLoadInitialIncludesNow(t *testing.T) {
	f := &fakeFetcher{events: pagEvents()}
	p := newTestPaginator(f, 0)

	require.NoError(t, p.LoadInitial(context.Background(), models.Range24h))
	assert.ElementsMatch(t, []string{"now", "today"}, ids(p.Events()))
	assert.Equal(t, 2, p.Summary().TotalFeeds)
	assert.Equal(t, pagNow.Add(-24*time.Hour), p.Earliest())
	assert.True(t, p.CanLoadMore())
	assert.Equal(t, models.Range24h, p.Range())
}

func TestLoadMoreAppendsOlderPage(t *testing.T) {
	f := &fakeFetcher{events: pagEvents()}
	p := newTestPaginator(f, 0)
	ctx := context.Background()
	require.NoError(t, p.LoadInitial(ctx, models.Range24h))

	loaded, err := p.LoadMore(ctx)
	require.NoError(t, err)
	assert.True(t, loaded)

	earliest := pagNow.Add(-24 * time.Hour)
	require.Equal(t, 2, f.callCount())
	assert.Equal(t, fetchCall{earliest.AddDate(0, 0, -7), earliest}, f.calls[1])
	assert.Equal(t, earliest.AddDate(0, 0, -7), p.Earliest())
	assert.ElementsMatch(t, []string{"now", "today", "d3", "d6"}, ids(p.Events()))

	days := p.Days()
	seen := map[string]bool{}
	for i, d := range days {
		key := d.Date.Format("2006-01-02")
		assert.False(t, seen[key], "duplicate bucket %s", key)
		seen[key] = true
		if i > 0 {
			assert.True(t, days[i-1].Date.After(d.Date))
		}
	}
	assert.Equal(t, 2, p.Summary().TotalFeeds, "summary stays on the selected range")
}

func TestLoadMoreMergesSharedDay(t *testing.T) {
	// The 24h window starts at 12:00 yesterday, so yesterday is split
	// across the initial load and the first older page.
	yesterdayLate := feedAt("late", pagNow.Add(-20*time.Hour), 0, "")
	yesterdayEarly := feedAt("early", pagNow.Add(-30*time.Hour), 0, "")
	f := &fakeFetcher{events: []models.Event{yesterdayLate, yesterdayEarly}}
	p := newTestPaginator(f, 0)
	ctx := context.Background()
	require.NoError(t, p.LoadInitial(ctx, models.Range24h))
	_, err := p.LoadMore(ctx)
	require.NoError(t, err)

	days := p.Days()
	require.Len(t, days, 1)
	assert.Equal(t, []string{"late", "early"}, ids(days[0].Events))
	assert.Equal(t, 2, days[0].Summary.FeedCount)
}

func TestLoadMoreBeforeInitialIsNoop(t *testing.T) {
	f := &fakeFetcher{}
	p := newTestPaginator(f, 0)
	loaded, err := p.LoadMore(context.Background())
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.Zero(t, f.callCount())
}

func TestLoadMoreFailureKeepsState(t *testing.T) {
	f := &fakeFetcher{events: pagEvents()}
	p := newTestPaginator(f, 0)
	ctx := context.Background()
	require.NoError(t, p.LoadInitial(ctx, models.Range24h))
	before := p.Days()
	earliest := p.Earliest()

	f.mu.Lock()
	f.err = errors.New("timeout")
	f.mu.Unlock()

	loaded, err := p.LoadMore(ctx)
	assert.False(t, loaded)
	assert.ErrorIs(t, err, models.ErrFetchFailed)
	assert.Equal(t, before, p.Days())
	assert.Equal(t, earliest, p.Earliest())
	assert.False(t, p.IsLoadingMore())

	err = p.LoadInitial(ctx, models.Range7d)
	assert.ErrorIs(t, err, models.ErrFetchFailed)
	assert.Equal(t, models.Range24h, p.Range())
	assert.Equal(t, before, p.Days())
}

func TestLoadMoreWhileInFlight(t *testing.T) {
	f := &fakeFetcher{events: pagEvents()}
	p := newTestPaginator(f, 0)
	ctx := context.Background()
	require.NoError(t, p.LoadInitial(ctx, models.Range24h))

	block := make(chan struct{})
	f.mu.Lock()
	f.block = block
	f.mu.Unlock()

	done := make(chan bool)
	go func() {
		loaded, _ := p.LoadMore(ctx)
		done <- loaded
	}()
	require.Eventually(t, p.IsLoadingMore, time.Second, time.Millisecond)

	loaded, err := p.LoadMore(ctx)
	require.NoError(t, err)
	assert.False(t, loaded)

	close(block)
	assert.True(t, <-done)
	assert.Equal(t, 2, f.callCount())
}

func TestStaleLoadMoreIsDiscarded(t *testing.T) {
	f := &fakeFetcher{events: pagEvents()}
	p := newTestPaginator(f, 0)
	ctx := context.Background()
	require.NoError(t, p.LoadInitial(ctx, models.Range24h))

	block := make(chan struct{})
	f.mu.Lock()
	f.block = block
	f.mu.Unlock()

	done := make(chan bool)
	go func() {
		loaded, _ := p.LoadMore(ctx)
		done <- loaded
	}()
	require.Eventually(t, p.IsLoadingMore, time.Second, time.Millisecond)

	initial := make(chan error)
	go func() { initial <- p.LoadInitial(ctx, models.Range7d) }()
	require.Eventually(t, func() bool { return f.callCount() == 3 }, time.Second, time.Millisecond)
	close(block)

	require.NoError(t, <-initial)
	assert.False(t, <-done)
	assert.Equal(t, models.Range7d, p.Range())
	assert.Equal(t, at("2024-03-09T00:00:00Z"), p.Earliest())
	assert.ElementsMatch(t, []string{"now", "today", "d3", "d6"}, ids(p.Events()))
}

func TestLookbackLimitStopsPaging(t *testing.T) {
	f := &fakeFetcher{events: pagEvents()}
	p := newTestPaginator(f, 10)
	ctx := context.Background()
	require.NoError(t, p.LoadInitial(ctx, models.Range24h))

	loaded, err := p.LoadMore(ctx)
	require.NoError(t, err)
	require.True(t, loaded)
	assert.True(t, p.CanLoadMore())

	loaded, err = p.LoadMore(ctx)
	require.NoError(t, err)
	require.True(t, loaded)
	assert.False(t, p.CanLoadMore())
	assert.Contains(t, ids(p.Events()), "d12")

	loaded, err = p.LoadMore(ctx)
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.Equal(t, 3, f.callCount())
}

func TestRemoveAndInsert(t *testing.T) {
	f := &fakeFetcher{events: pagEvents()}
	p := newTestPaginator(f, 0)
	require.False(t, p.Insert(feedAt("early", pagNow, 0, "")), "nothing loaded yet")
	require.NoError(t, p.LoadInitial(context.Background(), models.Range24h))

	assert.True(t, p.Remove("today"))
	assert.False(t, p.Remove("today"))
	assert.Equal(t, 1, p.Summary().TotalFeeds)

	assert.True(t, p.Insert(feedAt("restored", pagNow.Add(-time.Hour), 0, "")))
	assert.False(t, p.Insert(feedAt("ancient", pagNow.AddDate(0, 0, -30), 0, "")))
	assert.ElementsMatch(t, []string{"now", "restored"}, ids(p.Events()))
	assert.Equal(t, 2, p.Summary().TotalFeeds)
}
