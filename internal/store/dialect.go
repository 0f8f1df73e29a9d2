package store

import (
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect hides the differences between the supported SQL backends.
type Dialect interface {
	// Name is the config value selecting the dialect.
	Name() string
	// DriverName returns the driver name for sql.Open.
	DriverName() string
	// RewriteQuery converts ? placeholders where the driver needs it.
	RewriteQuery(query string) string
	ConfigureConnection(db *sql.DB) error
	// Schema returns the statements creating the events table.
	Schema() []string
}

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	switch name {
	case "sqlite", "sqlite3":
		return sqliteDialect{}, nil
	case "postgres", "postgresql", "pgx":
		return postgresDialect{}, nil
	case "mysql":
		return mysqlDialect{}, nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", name)
}

var placeholderRegexp = regexp.MustCompile(`\?`)

func rewritePlaceholdersToNumbered(query string) string {
	counter := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(string) string {
		counter++
		return "$" + strconv.Itoa(counter)
	})
}

func configurePool(db *sql.DB, open, idle int) {
	db.SetMaxOpenConns(open)
	db.SetMaxIdleConns(idle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string                     { return "sqlite" }
func (sqliteDialect) DriverName() string               { return "sqlite3" }
func (sqliteDialect) RewriteQuery(query string) string { return query }

func (sqliteDialect) ConfigureConnection(db *sql.DB) error {
	// a single connection keeps ":memory:" databases shared
	configurePool(db, 1, 1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return err
	}
	return nil
}

func (sqliteDialect) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			baby_id TEXT NOT NULL,
			type TEXT NOT NULL,
			subtype TEXT NOT NULL DEFAULT '',
			start_ms INTEGER NOT NULL,
			end_ms INTEGER,
			duration_min INTEGER,
			amount REAL,
			unit TEXT NOT NULL DEFAULT '',
			side TEXT NOT NULL DEFAULT '',
			note TEXT NOT NULL DEFAULT '',
			created_ms INTEGER NOT NULL,
			updated_ms INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS events_baby_start ON events (baby_id, start_ms)`,
	}
}

type postgresDialect struct{}

func (postgresDialect) Name() string       { return "postgres" }
func (postgresDialect) DriverName() string { return "pgx" }

func (postgresDialect) RewriteQuery(query string) string {
	return rewritePlaceholdersToNumbered(query)
}

func (postgresDialect) ConfigureConnection(db *sql.DB) error {
	configurePool(db, 25, 5)
	return nil
}

func (postgresDialect) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			baby_id TEXT NOT NULL,
			type TEXT NOT NULL,
			subtype TEXT NOT NULL DEFAULT '',
			start_ms BIGINT NOT NULL,
			end_ms BIGINT,
			duration_min INTEGER,
			amount DOUBLE PRECISION,
			unit TEXT NOT NULL DEFAULT '',
			side TEXT NOT NULL DEFAULT '',
			note TEXT NOT NULL DEFAULT '',
			created_ms BIGINT NOT NULL,
			updated_ms BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS events_baby_start ON events (baby_id, start_ms)`,
	}
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string                     { return "mysql" }
func (mysqlDialect) DriverName() string               { return "mysql" }
func (mysqlDialect) RewriteQuery(query string) string { return query }

func (mysqlDialect) ConfigureConnection(db *sql.DB) error {
	configurePool(db, 25, 5)
	return nil
}

func (mysqlDialect) Schema() []string {
	return []string{
		"CREATE TABLE IF NOT EXISTS events (" +
			"id VARCHAR(36) PRIMARY KEY," +
			"baby_id VARCHAR(64) NOT NULL," +
			"type VARCHAR(16) NOT NULL," +
			"subtype VARCHAR(64) NOT NULL DEFAULT ''," +
			"start_ms BIGINT NOT NULL," +
			"end_ms BIGINT NULL," +
			"duration_min INT NULL," +
			"amount DOUBLE NULL," +
			"unit VARCHAR(16) NOT NULL DEFAULT ''," +
			"side VARCHAR(16) NOT NULL DEFAULT ''," +
			"note TEXT NOT NULL," +
			"created_ms BIGINT NOT NULL," +
			"updated_ms BIGINT NOT NULL," +
			"INDEX events_baby_start (baby_id, start_ms)" +
			")",
	}
}
