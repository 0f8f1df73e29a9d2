// Package api is an event store adapter for a PostgREST style events
// endpoint, e.g. a Supabase project.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"nestling/internal/models"
	"nestling/internal/store"
)

const eventsPath = "/rest/v1/events"

type Options struct {
	BaseURL   string
	APIKey    string
	ChunkDays int // maximum days per request
	Timeout   time.Duration
	HTTP      *http.Client
	Logger    *zap.Logger
}

type Client struct {
	baseURL   string
	apiKey    string
	chunkDays int
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker
	logger    *zap.Logger
}

func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:   opts.BaseURL,
		apiKey:    opts.APIKey,
		chunkDays: opts.ChunkDays,
		http:      opts.HTTP,
		logger:    opts.Logger,
	}
	if c.chunkDays <= 0 {
		c.chunkDays = 30
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "events-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				zap.String("name", name), zap.Stringer("from", from), zap.Stringer("to", to))
		},
		IsSuccessful: func(err error) bool {
			// a rejected request is an answer, not an outage
			var se *StatusError
			return err == nil || (errors.As(err, &se) && se.clientError())
		},
	})
	return c
}

// StatusError is returned when the server answers with an unexpected status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.Code, e.Body)
}

func (e *StatusError) clientError() bool {
	return e.Code >= 400 && e.Code < 500 && e.Code != http.StatusTooManyRequests
}

// wireEvent is the row shape of the events table.
type wireEvent struct {
	ID          string     `json:"id,omitempty"`
	BabyID      string     `json:"baby_id"`
	Type        string     `json:"type"`
	Subtype     *string    `json:"subtype"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	DurationMin *int       `json:"duration_min"`
	Amount      *float64   `json:"amount"`
	Unit        *string    `json:"unit"`
	Side        *string    `json:"side"`
	Note        *string    `json:"note"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

func (w wireEvent) event() models.Event {
	e := models.Event{
		ID:              w.ID,
		SubjectID:       w.BabyID,
		Type:            models.EventType(w.Type),
		Subtype:         deref(w.Subtype),
		StartTime:       w.StartTime,
		EndTime:         w.EndTime,
		DurationMinutes: w.DurationMin,
		Amount:          w.Amount,
		Unit:            deref(w.Unit),
		Side:            deref(w.Side),
		Note:            deref(w.Note),
	}
	if w.CreatedAt != nil {
		e.CreatedAt = *w.CreatedAt
	}
	if w.UpdatedAt != nil {
		e.UpdatedAt = *w.UpdatedAt
	}
	return e
}

func wireDraft(d models.EventDraft) wireEvent {
	return wireEvent{
		BabyID:      d.SubjectID,
		Type:        string(d.Type),
		Subtype:     optional(d.Subtype),
		StartTime:   d.StartTime.UTC(),
		EndTime:     d.EndTime,
		DurationMin: d.DurationMinutes,
		Amount:      d.Amount,
		Unit:        optional(d.Unit),
		Side:        optional(d.Side),
		Note:        optional(d.Note),
	}
}

// FetchEvents splits [from, to) into chunks of at most chunkDays and
// concatenates the results.
func (c *Client) FetchEvents(ctx context.Context, subjectID string, from, to time.Time) ([]models.Event, error) {
	var all []models.Event
	chunk := time.Duration(c.chunkDays) * 24 * time.Hour

	for chunkStart := from; chunkStart.Before(to); {
		chunkEnd := chunkStart.Add(chunk)
		if chunkEnd.After(to) {
			chunkEnd = to
		}

		q := url.Values{}
		q.Set("select", "*")
		q.Set("baby_id", "eq."+subjectID)
		q.Add("start_time", "gte."+chunkStart.UTC().Format(time.RFC3339Nano))
		q.Add("start_time", "lt."+chunkEnd.UTC().Format(time.RFC3339Nano))
		q.Set("order", "start_time.desc")

		var rows []wireEvent
		if err := c.do(ctx, http.MethodGet, eventsPath+"?"+q.Encode(), nil, &rows, http.StatusOK); err != nil {
			return nil, fmt.Errorf("fetching events %s..%s: %w",
				chunkStart.Format(time.RFC3339), chunkEnd.Format(time.RFC3339), err)
		}
		for _, r := range rows {
			all = append(all, r.event())
		}
		chunkStart = chunkEnd
	}
	return all, nil
}

func (c *Client) DeleteEvent(ctx context.Context, id string) error {
	path := eventsPath + "?id=eq." + url.QueryEscape(id)
	var rows []wireEvent
	if err := c.do(ctx, http.MethodDelete, path, nil, &rows, http.StatusOK); err != nil {
		return fmt.Errorf("deleting event %s: %w", id, err)
	}
	if len(rows) == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (c *Client) CreateEvent(ctx context.Context, draft models.EventDraft) (models.Event, error) {
	if err := store.ValidateDraft(draft); err != nil {
		return models.Event{}, err
	}
	body, err := json.Marshal(wireDraft(draft))
	if err != nil {
		return models.Event{}, fmt.Errorf("encoding event: %w", err)
	}
	var rows []wireEvent
	if err := c.do(ctx, http.MethodPost, eventsPath, body, &rows, http.StatusCreated); err != nil {
		return models.Event{}, fmt.Errorf("creating event: %w", err)
	}
	if len(rows) != 1 {
		return models.Event{}, fmt.Errorf("creating event: expected 1 row, got %d", len(rows))
	}
	return rows[0].event(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any, want int) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, path, body, out, want)
	})
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte, out any, want int) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "nestling/1.0")
	req.Header.Set("Prefer", "return=representation")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug("api request", zap.String("method", method), zap.String("path", path))
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != want {
		return &StatusError{Code: resp.StatusCode, Body: string(data)}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
