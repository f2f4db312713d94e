package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Sweep triggers.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerCLI      = "cli"
)

// SweepEntry is one journaled retention sweep.
type SweepEntry struct {
	ID        string   `json:"id"`
	Trigger   string   `json:"trigger"`
	Cutoff    int64    `json:"cutoff"`
	Listed    int      `json:"listed"`
	Skipped   int      `json:"skipped"`
	Batched   bool     `json:"batched"`
	Compacted bool     `json:"compacted"`
	Dropped   []string `json:"dropped"`
	Failed    []string `json:"failed"`
	ListError string   `json:"list_error,omitempty"`
	Error     string   `json:"error,omitempty"`
	StartedAt int64    `json:"started_at"`
	EndedAt   int64    `json:"ended_at"`
}

// RecordSweep inserts e and its per-graph outcomes in one transaction.
func (db *DB) RecordSweep(e *SweepEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.StartedAt == 0 {
		e.StartedAt = time.Now().UnixMilli()
	}
	if e.EndedAt == 0 {
		e.EndedAt = e.StartedAt
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin sweep %s: %w", e.ID, err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO sweeps (id, origin, cutoff, listed, skipped, batched, compacted,
			list_error, error, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Trigger, e.Cutoff, e.Listed, e.Skipped, e.Batched, e.Compacted,
		nullString(e.ListError), nullString(e.Error), e.StartedAt, e.EndedAt)
	if err != nil {
		return fmt.Errorf("insert sweep %s: %w", e.ID, err)
	}

	for status, graphs := range map[string][]string{"dropped": e.Dropped, "failed": e.Failed} {
		for _, g := range graphs {
			if _, err := tx.Exec(
				"INSERT INTO swept_graphs (sweep_id, graph, status) VALUES (?, ?, ?)",
				e.ID, g, status,
			); err != nil {
				return fmt.Errorf("insert swept graph %s: %w", g, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sweep %s: %w", e.ID, err)
	}
	return nil
}

// ListSweeps returns the most recent sweeps, newest first, with their graphs.
func (db *DB) ListSweeps(limit int) ([]SweepEntry, error) {
	rows, err := db.Query(`
		SELECT id, origin, cutoff, listed, skipped, batched, compacted, list_error, error, started_at, ended_at
		FROM sweeps ORDER BY started_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sweeps: %w", err)
	}

	var out []SweepEntry
	for rows.Next() {
		var (
			e               SweepEntry
			listErr, errMsg sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Trigger, &e.Cutoff, &e.Listed, &e.Skipped, &e.Batched,
			&e.Compacted, &listErr, &errMsg, &e.StartedAt, &e.EndedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan sweep: %w", err)
		}
		e.ListError = listErr.String
		e.Error = errMsg.String
		out = append(out, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sweeps: %w", err)
	}

	// graphs are loaded after the sweep rows are closed: the in-memory
	// journal has a single connection
	for i := range out {
		if err := db.loadSweptGraphs(&out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (db *DB) loadSweptGraphs(e *SweepEntry) error {
	rows, err := db.Query(
		"SELECT graph, status FROM swept_graphs WHERE sweep_id = ? ORDER BY graph", e.ID,
	)
	if err != nil {
		return fmt.Errorf("list swept graphs of %s: %w", e.ID, err)
	}
	defer rows.Close()

	e.Dropped, e.Failed = []string{}, []string{}
	for rows.Next() {
		var graph, status string
		if err := rows.Scan(&graph, &status); err != nil {
			return fmt.Errorf("scan swept graph: %w", err)
		}
		if status == "dropped" {
			e.Dropped = append(e.Dropped, graph)
		} else {
			e.Failed = append(e.Failed, graph)
		}
	}
	return rows.Err()
}
