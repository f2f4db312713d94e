package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "updates: one row per graph update",
		SQL: `
CREATE TABLE updates (
    id           TEXT PRIMARY KEY,
    prefix       TEXT NOT NULL,
    graph_ts     INTEGER NOT NULL,
    mode         TEXT NOT NULL CHECK (mode IN ('base', 'delta', '')),
    status       TEXT NOT NULL CHECK (status IN ('ok', 'unchanged', 'failed')),
    previous     TEXT,
    written      TEXT NOT NULL DEFAULT '[]',
    dropped      TEXT NOT NULL DEFAULT '[]',
    triples      INTEGER NOT NULL DEFAULT 0,
    added        INTEGER NOT NULL DEFAULT 0,
    removed      INTEGER NOT NULL DEFAULT 0,
    error        TEXT,
    duration_ms  INTEGER NOT NULL DEFAULT 0,
    created_at   INTEGER NOT NULL
);

CREATE INDEX idx_updates_prefix  ON updates(prefix, created_at DESC);
CREATE INDEX idx_updates_created ON updates(created_at DESC);
`,
	},
	{
		Version:     2,
		Description: "sweeps: retention sweep runs and the graphs they touched",
		SQL: `
CREATE TABLE sweeps (
    id          TEXT PRIMARY KEY,
    origin      TEXT NOT NULL CHECK (origin IN ('schedule', 'manual', 'cli')),
    cutoff      INTEGER NOT NULL,
    listed      INTEGER NOT NULL DEFAULT 0,
    skipped     INTEGER NOT NULL DEFAULT 0,
    batched     INTEGER NOT NULL DEFAULT 0,
    compacted   INTEGER NOT NULL DEFAULT 0,
    list_error  TEXT,
    error       TEXT,
    started_at  INTEGER NOT NULL,
    ended_at    INTEGER NOT NULL
);

CREATE INDEX idx_sweeps_started ON sweeps(started_at DESC);

CREATE TABLE swept_graphs (
    sweep_id  TEXT NOT NULL,
    graph     TEXT NOT NULL,
    status    TEXT NOT NULL CHECK (status IN ('dropped', 'failed')),
    PRIMARY KEY (sweep_id, graph),
    FOREIGN KEY (sweep_id) REFERENCES sweeps(id) ON DELETE CASCADE
);
`,
	},
}

func (db *DB) migrate() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
