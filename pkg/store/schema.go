package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    batch_id TEXT NOT NULL,
    instance INTEGER NOT NULL,
    fingerprint TEXT NOT NULL,

    -- Denormalized config for filtering; the full config is kept as JSON.
    agent_count INTEGER NOT NULL,
    sample_size INTEGER NOT NULL,
    upper_bound_k INTEGER NOT NULL,
    model TEXT NOT NULL,
    initial_distribution TEXT NOT NULL,
    config TEXT NOT NULL,

    seed INTEGER NOT NULL,
    aborted INTEGER NOT NULL DEFAULT 0,
    entropy_phases INTEGER NOT NULL DEFAULT 0,
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON runs(fingerprint);
CREATE INDEX IF NOT EXISTS idx_runs_finished ON runs(finished_at);

CREATE TABLE IF NOT EXISTS plot_points (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    k INTEGER NOT NULL,
    interactions INTEGER NOT NULL,
    PRIMARY KEY (run_id, k)
);

CREATE TABLE IF NOT EXISTS entropy_points (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    interactions INTEGER NOT NULL,
    entropy REAL NOT NULL,
    hits INTEGER NOT NULL,
    PRIMARY KEY (run_id, interactions)
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
`

// InitSchema creates the tables if needed and records the schema version.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	version, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if version > SchemaVersion {
		return fmt.Errorf("archive schema version %d is newer than supported version %d", version, SchemaVersion)
	}
	if version < SchemaVersion {
		if _, err := db.ExecContext(ctx, `INSERT OR REPLACE INTO schema_version (version) VALUES (?)`, SchemaVersion); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
	}
	return nil
}

// schemaVersion returns the recorded version, or 0 for a fresh database.
func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(version.Int64), nil
}
