package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nestling/internal/models"
)

// SQLStore stores events in a relational database. Timestamps are kept as Unix
// milliseconds so range predicates behave identically on every backend.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// OpenSQL opens the database for driver, applies connection settings and
// creates the schema.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Name(), err)
	}
	if err := dialect.ConfigureConnection(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure %s: %w", dialect.Name(), err)
	}
	s := NewSQLStore(db, dialect)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect, now: time.Now}
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

const eventColumns = "id, baby_id, type, subtype, start_ms, end_ms, duration_min, amount, unit, side, note, created_ms, updated_ms"

func (s *SQLStore) FetchEvents(ctx context.Context, subjectID string, from, to time.Time) ([]models.Event, error) {
	query := s.dialect.RewriteQuery("SELECT " + eventColumns +
		" FROM events WHERE baby_id = ? AND start_ms >= ? AND start_ms < ? ORDER BY start_ms DESC")
	rows, err := s.db.QueryContext(ctx, query, subjectID, ceilMillis(from), ceilMillis(to))
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return events, nil
}

func (s *SQLStore) DeleteEvent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.dialect.RewriteQuery("DELETE FROM events WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) CreateEvent(ctx context.Context, draft models.EventDraft) (models.Event, error) {
	if err := ValidateDraft(draft); err != nil {
		return models.Event{}, err
	}
	e := draft.Event(uuid.NewString(), s.now())
	e = truncateEvent(e)

	query := s.dialect.RewriteQuery("INSERT INTO events (" + eventColumns +
		") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.SubjectID, string(e.Type), e.Subtype,
		e.StartTime.UnixMilli(), nullMillis(e.EndTime), nullInt(e.DurationMinutes), nullFloat(e.Amount),
		e.Unit, e.Side, e.Note,
		e.CreatedAt.UnixMilli(), e.UpdatedAt.UnixMilli())
	if err != nil {
		return models.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return e, nil
}

// Get loads a single event by ID.
func (s *SQLStore) Get(ctx context.Context, id string) (models.Event, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.RewriteQuery("SELECT "+eventColumns+" FROM events WHERE id = ?"), id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Event{}, ErrNotFound
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (models.Event, error) {
	var (
		e                  models.Event
		typ                string
		startMs            int64
		endMs              sql.NullInt64
		duration           sql.NullInt64
		amount             sql.NullFloat64
		createdMs, updated int64
	)
	err := row.Scan(&e.ID, &e.SubjectID, &typ, &e.Subtype, &startMs, &endMs, &duration, &amount,
		&e.Unit, &e.Side, &e.Note, &createdMs, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Event{}, err
		}
		return models.Event{}, fmt.Errorf("scan event: %w", err)
	}
	e.Type = models.EventType(typ)
	e.StartTime = time.UnixMilli(startMs).UTC()
	if endMs.Valid {
		t := time.UnixMilli(endMs.Int64).UTC()
		e.EndTime = &t
	}
	if duration.Valid {
		d := int(duration.Int64)
		e.DurationMinutes = &d
	}
	if amount.Valid {
		a := amount.Float64
		e.Amount = &a
	}
	e.CreatedAt = time.UnixMilli(createdMs).UTC()
	e.UpdatedAt = time.UnixMilli(updated).UTC()
	return e, nil
}

// ceilMillis rounds a bound up to the next whole millisecond. Stored start
// times are truncated, so this keeps [from, to) exact against them.
func ceilMillis(t time.Time) int64 {
	ms := t.UnixMilli()
	if t.After(time.UnixMilli(ms)) {
		ms++
	}
	return ms
}

func truncateEvent(e models.Event) models.Event {
	e.StartTime = time.UnixMilli(e.StartTime.UnixMilli()).UTC()
	if e.EndTime != nil {
		t := time.UnixMilli(e.EndTime.UnixMilli()).UTC()
		e.EndTime = &t
	}
	e.CreatedAt = time.UnixMilli(e.CreatedAt.UnixMilli()).UTC()
	e.UpdatedAt = time.UnixMilli(e.UpdatedAt.UnixMilli()).UTC()
	return e
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
