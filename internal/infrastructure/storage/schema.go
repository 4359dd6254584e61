package storage

import (
	"context"
	"fmt"
)

// Timestamps are epoch milliseconds (BIGINT) and lists are JSON text so the same
// statements run on postgres and sqlite.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id           TEXT PRIMARY KEY,
		category_key TEXT NOT NULL UNIQUE,
		label        TEXT NOT NULL,
		icon         TEXT NOT NULL DEFAULT '',
		color        TEXT NOT NULL DEFAULT '',
		sort_order   INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS sources (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL UNIQUE,
		url          TEXT NOT NULL DEFAULT '',
		feed_urls    TEXT NOT NULL DEFAULT '[]',
		lang         TEXT NOT NULL DEFAULT 'en',
		category_ids TEXT NOT NULL DEFAULT '[]',
		active       BOOLEAN NOT NULL DEFAULT TRUE,
		strategy     TEXT NOT NULL DEFAULT '',
		last_scraped BIGINT,
		created_at   BIGINT NOT NULL,
		updated_at   BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sources_active ON sources (active)`,
	`CREATE TABLE IF NOT EXISTS articles (
		id           TEXT PRIMARY KEY,
		title        TEXT NOT NULL,
		slug         TEXT NOT NULL,
		summary      TEXT NOT NULL DEFAULT '',
		content      TEXT NOT NULL DEFAULT '',
		images       TEXT NOT NULL DEFAULT '[]',
		category_id  TEXT NOT NULL,
		tags         TEXT NOT NULL DEFAULT '[]',
		author       TEXT NOT NULL DEFAULT '',
		lang         TEXT NOT NULL DEFAULT 'en',
		source_id    TEXT NOT NULL,
		source_url   TEXT NOT NULL,
		published_at BIGINT NOT NULL,
		status       TEXT NOT NULL DEFAULT 'draft',
		views        BIGINT NOT NULL DEFAULT 0,
		hash         TEXT NOT NULL UNIQUE,
		social       TEXT NOT NULL DEFAULT '{}',
		created_at   BIGINT NOT NULL,
		updated_at   BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_published ON articles (published_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_source ON articles (source_id)`,
	`CREATE TABLE IF NOT EXISTS ingest_jobs (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		payload      TEXT NOT NULL DEFAULT '{}',
		state        TEXT NOT NULL,
		attempts     INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 0,
		run_at       BIGINT NOT NULL,
		lease_until  BIGINT,
		last_error   TEXT NOT NULL DEFAULT '',
		created_at   BIGINT NOT NULL,
		updated_at   BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ingest_jobs_runnable ON ingest_jobs (state, run_at)`,
}

// EnsureSchema creates the tables the ingestion pipeline reads and writes.
func (d *DB) EnsureSchema(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := d.SQL.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
