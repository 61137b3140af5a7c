// Package storage persists goals, profiles, versioned plans, per-day tasks and
// LLM call records in a relational database. PostgreSQL (pgx) and SQLite
// (modernc) share one set of queries written with ? placeholders.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	// Register the "pgx" and "sqlite" database/sql drivers.
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/treespora/planner/config"
)

// Dialect selects SQL syntax differences between the supported databases.
type Dialect string

const (
	Postgres Dialect = config.DriverPostgres
	SQLite   Dialect = config.DriverSQLite
)

// Store is the relational store. It is safe for concurrent use.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the clock used for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg config.DatabaseConfig, opts ...Option) (*Store, error) {
	var driverName string
	switch Dialect(cfg.Driver) {
	case Postgres:
		driverName = "pgx"
	case SQLite:
		driverName = "sqlite"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}

	db, err := sql.Open(driverName, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	return New(db, Dialect(cfg.Driver), opts...), nil
}

// New wraps an open database handle.
func New(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	s := &Store{
		db:      db,
		dialect: dialect,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect returns the SQL dialect in use.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// q rewrites ? placeholders to $n for PostgreSQL. Queries never contain a
// literal question mark.
func (s *Store) q(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}

// jsonParam is the placeholder for a JSON document parameter.
func (s *Store) jsonParam() string {
	if s.dialect == Postgres {
		return "CAST(? AS jsonb)"
	}
	return "?"
}

// timeArg encodes a timestamp parameter.
func (s *Store) timeArg(t time.Time) any {
	if s.dialect == Postgres {
		return t.UTC()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// dateArg encodes a calendar date parameter; the zero date is NULL.
func (s *Store) dateArg(d civil.Date) any {
	if d.IsZero() {
		return nil
	}
	if s.dialect == Postgres {
		return d.In(time.UTC)
	}
	return d.String()
}

// nowArg returns the current time as a parameter.
func (s *Store) nowArg() any {
	return s.timeArg(s.now())
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func rollback(tx *sql.Tx) {
	_ = tx.Rollback()
}
