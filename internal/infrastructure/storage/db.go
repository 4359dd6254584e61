package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects SQL flavour differences between supported databases.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

var (
	// ErrUnsupportedDriver is returned for unknown database drivers.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
	// ErrNotFound marks updates and lookups that matched no row.
	ErrNotFound = errors.New("not found")
)

// DB bundles a connection pool with the statement builder for its dialect.
type DB struct {
	SQL     *sql.DB
	Dialect Dialect
	Builder sq.StatementBuilderType
}

// ParseDialect maps a configured driver name to a Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}
}

// Open connects to the database and waits for it to answer pings.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	dialect, err := ParseDialect(driver)
	if err != nil {
		return nil, err
	}

	var conn *sql.DB
	switch dialect {
	case Postgres:
		conn, err = sql.Open("pgx", dsn)
	case SQLite:
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
		conn, err = sql.Open("sqlite", dsn)
		if err == nil {
			// sqlite allows a single writer; one connection serializes access.
			conn.SetMaxOpenConns(1)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	if err := backoff.Retry(func() error { return conn.PingContext(ctx) }, policy); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	return newDB(conn, dialect), nil
}

func newDB(conn *sql.DB, dialect Dialect) *DB {
	format := sq.PlaceholderFormat(sq.Question)
	if dialect == Postgres {
		format = sq.Dollar
	}
	return &DB{
		SQL:     conn,
		Dialect: dialect,
		Builder: sq.StatementBuilder.PlaceholderFormat(format),
	}
}

// Ping checks connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.SQL.PingContext(ctx)
}

// Close releases the pool.
func (d *DB) Close() error {
	return d.SQL.Close()
}

func ensureDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create database dir: %w", err)
	}
	return nil
}

// Millis stores instants as epoch milliseconds so comparisons behave the same in every dialect.
func Millis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// FromMillis is the inverse of Millis.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
