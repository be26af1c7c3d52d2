package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS pipeline_runs (
		id          BIGINT PRIMARY KEY,
		kind        TEXT NOT NULL,
		status      TEXT NOT NULL,
		result      JSONB,
		error       TEXT,
		started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		finished_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS pipeline_runs_kind_started_idx ON pipeline_runs (kind, started_at DESC)`,
	`CREATE TABLE IF NOT EXISTS vector_collections (
		name       TEXT PRIMARY KEY,
		dimensions INT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS vector_points (
		collection   TEXT NOT NULL REFERENCES vector_collections (name) ON DELETE CASCADE,
		id           UUID NOT NULL,
		content      TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		metadata     JSONB NOT NULL DEFAULT '{}'::jsonb,
		embedding    vector NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (collection, id)
	)`,
}

// Migrate creates the tables used by the run history and the vector store.
// Every statement is idempotent, so it runs on each start.
func (db *DB) Migrate(ctx context.Context) error {
	return db.WithTx(ctx, func(tx pgx.Tx) error {
		for i, stmt := range migrations {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migration %d: %w", i, err)
			}
		}
		slog.InfoContext(ctx, "database schema up to date", "statements", len(migrations))
		return nil
	})
}
