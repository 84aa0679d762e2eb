package db

import (
	"context"
	"fmt"
	"log/slog"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS scrape_jobs (
		id            TEXT PRIMARY KEY,
		task_handle   TEXT NOT NULL UNIQUE,
		source        TEXT NOT NULL,
		url           TEXT NOT NULL,
		max_items     INTEGER NOT NULL,
		status        TEXT NOT NULL DEFAULT 'pending',
		reviews_count INTEGER NOT NULL DEFAULT 0,
		attempts      INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		user_id       BIGINT,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		started_at    TIMESTAMPTZ,
		completed_at  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_scrape_jobs_user ON scrape_jobs (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS reviews (
		id            BIGSERIAL PRIMARY KEY,
		text          TEXT NOT NULL,
		sentiment     TEXT NOT NULL,
		emotion       TEXT NOT NULL,
		confidence    DOUBLE PRECISION NOT NULL CHECK (confidence >= 0 AND confidence <= 1),
		source        TEXT,
		content_hash  CHAR(64) NOT NULL UNIQUE,
		user_id       BIGINT,
		scrape_job_id TEXT REFERENCES scrape_jobs (id) ON DELETE SET NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reviews_created_at ON reviews (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_reviews_source ON reviews (source)`,
	`CREATE TABLE IF NOT EXISTS analytics_snapshots (
		id             BIGSERIAL PRIMARY KEY,
		date           DATE NOT NULL UNIQUE,
		total_reviews  INTEGER NOT NULL,
		positive_count INTEGER NOT NULL,
		negative_count INTEGER NOT NULL,
		neutral_count  INTEGER NOT NULL,
		avg_confidence DOUBLE PRECISION NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate creates the tables if they do not exist yet.
func Migrate(ctx context.Context, pool PgxPool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("[DB] migration failed: %w", err)
		}
	}
	slog.Info("[DB] Schema is up to date", slog.Int("statements", len(schema)))
	return nil
}
