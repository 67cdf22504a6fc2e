package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema holds the DDL statements for the pipeline tables, applied in
// order. Statements are idempotent so migration can run on every start.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id              UUID PRIMARY KEY,
		user_id         UUID NOT NULL,
		domain          TEXT NOT NULL,
		keywords        TEXT[] NOT NULL DEFAULT '{}',
		status          TEXT NOT NULL DEFAULT 'queued',
		status_message  TEXT NOT NULL DEFAULT '',
		analysis_result JSONB,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS pages (
		id              BIGSERIAL PRIMARY KEY,
		project_id      UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		url             TEXT NOT NULL,
		status          TEXT NOT NULL DEFAULT 'queued',
		content_layers  JSONB,
		word_count      INT NOT NULL DEFAULT 0,
		last_crawled_at TIMESTAMPTZ,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (project_id, url)
	)`,

	`CREATE TABLE IF NOT EXISTS crawl_sessions (
		run_id         TEXT PRIMARY KEY,
		project_id     UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		domain         TEXT NOT NULL,
		status         TEXT NOT NULL,
		status_message TEXT NOT NULL DEFAULT '',
		finished_at    TIMESTAMPTZ,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS user_credentials (
		user_id       UUID PRIMARY KEY,
		crawler_token TEXT NOT NULL DEFAULT '',
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS crawl_webhook_events (
		run_id       TEXT NOT NULL,
		event_type   TEXT NOT NULL,
		processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (run_id, event_type)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_pages_project_status ON pages (project_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_projects_status_updated ON projects (status, updated_at)`,
}

// Migrate applies the schema to the database.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", i+1, err)
		}
	}

	return nil
}
