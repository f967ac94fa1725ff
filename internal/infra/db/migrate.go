package db

import (
	"database/sql"
)

// MigrateUp creates the schema if it does not exist. Statements are
// idempotent so the worker can run them on every startup.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS user_profiles (
    user_id                  TEXT PRIMARY KEY,
    email                    TEXT NOT NULL UNIQUE,
    name                     TEXT NOT NULL DEFAULT '',
    timezone                 TEXT NOT NULL DEFAULT 'UTC',
    github_username          TEXT NOT NULL DEFAULT '',
    interests                JSONB NOT NULL DEFAULT '[]',
    interest_weights         JSONB NOT NULL DEFAULT '{}',
    schedule_time            TEXT NOT NULL DEFAULT '07:00',
    schedule_days            JSONB NOT NULL DEFAULT '[1,2,3,4,5]',
    max_articles             INTEGER NOT NULL DEFAULT 10,
    include_github_activity  BOOLEAN NOT NULL DEFAULT TRUE,
    include_trending_repos   BOOLEAN NOT NULL DEFAULT TRUE,
    content_type_preferences JSONB NOT NULL DEFAULT '[]',
    last_newsletter_sent     TIMESTAMPTZ,
    total_newsletters_sent   INTEGER NOT NULL DEFAULT 0,
    created_at               TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at               TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return err
	}

	// Append-only: failed runs are diagnosed from their stored errors.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS newsletter_runs (
    id                 SERIAL PRIMARY KEY,
    generation_id      TEXT NOT NULL UNIQUE,
    user_email         TEXT NOT NULL,
    status             VARCHAR(20) NOT NULL,
    final_stage        VARCHAR(30) NOT NULL,
    articles_collected INTEGER NOT NULL DEFAULT 0,
    articles_included  INTEGER NOT NULL DEFAULT 0,
    delivery_id        TEXT NOT NULL DEFAULT '',
    dry_run            BOOLEAN NOT NULL DEFAULT FALSE,
    errors             JSONB,
    stage_timings      JSONB,
    started_at         TIMESTAMPTZ NOT NULL,
    completed_at       TIMESTAMPTZ NOT NULL
)`); err != nil {
		return err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS user_interactions (
    id         SERIAL PRIMARY KEY,
    user_id    TEXT NOT NULL,
    content_id TEXT NOT NULL,
    type       VARCHAR(20) NOT NULL,
    value      DOUBLE PRECISION NOT NULL DEFAULT 0,
    title      TEXT NOT NULL DEFAULT '',
    url        TEXT NOT NULL DEFAULT '',
    source     TEXT NOT NULL DEFAULT '',
    occurred_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return err
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_newsletter_runs_started_at ON newsletter_runs(started_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_newsletter_runs_status ON newsletter_runs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_newsletter_runs_user_email ON newsletter_runs(user_email)`,
		`CREATE INDEX IF NOT EXISTS idx_user_interactions_user_time ON user_interactions(user_id, occurred_at DESC)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return err
		}
	}

	// Novelty scoring: pgvector extension plus per-recipient embeddings.
	// Extension creation is ignored when the role lacks privileges.
	_, _ = db.Exec(`CREATE EXTENSION IF NOT EXISTS vector`)

	// vector(1536) matches OpenAI text-embedding-3-small; the dimension
	// column stores metadata for validation.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS content_embeddings (
    id           SERIAL PRIMARY KEY,
    user_id      TEXT NOT NULL,
    content_hash VARCHAR(16) NOT NULL,
    title        TEXT NOT NULL DEFAULT '',
    model        VARCHAR(100) NOT NULL,
    dimension    INT NOT NULL,
    embedding    vector(1536) NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE(user_id, content_hash, model)
)`); err != nil {
		return err
	}

	if _, err := db.Exec(
		`CREATE INDEX IF NOT EXISTS idx_content_embeddings_user_id ON content_embeddings(user_id)`,
	); err != nil {
		return err
	}

	return nil
}
