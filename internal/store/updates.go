package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Update statuses.
const (
	StatusOK        = "ok"
	StatusUnchanged = "unchanged"
	StatusFailed    = "failed"
)

// UpdateEntry is one journaled graph update.
type UpdateEntry struct {
	ID         string   `json:"id"`
	Prefix     string   `json:"prefix"`
	Timestamp  int64    `json:"timestamp"`
	Mode       string   `json:"mode"`
	Status     string   `json:"status"`
	Previous   string   `json:"previous,omitempty"`
	Written    []string `json:"written"`
	Dropped    []string `json:"dropped"`
	Triples    int      `json:"triples"`
	Added      int      `json:"added"`
	Removed    int      `json:"removed"`
	Error      string   `json:"error,omitempty"`
	DurationMs int64    `json:"duration_ms"`
	CreatedAt  int64    `json:"created_at"`
}

// RecordUpdate inserts e, filling in ID and CreatedAt when unset.
func (db *DB) RecordUpdate(e *UpdateEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().UnixMilli()
	}
	written, err := marshalNames(e.Written)
	if err != nil {
		return err
	}
	dropped, err := marshalNames(e.Dropped)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT INTO updates (id, prefix, graph_ts, mode, status, previous, written, dropped,
			triples, added, removed, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Prefix, e.Timestamp, e.Mode, e.Status, nullString(e.Previous), written, dropped,
		e.Triples, e.Added, e.Removed, nullString(e.Error), e.DurationMs, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert update %s: %w", e.ID, err)
	}
	return nil
}

// ListUpdates returns the most recent updates, newest first. An empty prefix
// lists every prefix.
func (db *DB) ListUpdates(prefix string, limit int) ([]UpdateEntry, error) {
	q := `SELECT id, prefix, graph_ts, mode, status, previous, written, dropped,
		triples, added, removed, error, duration_ms, created_at FROM updates`
	args := []any{}
	if prefix != "" {
		q += " WHERE prefix = ?"
		args = append(args, prefix)
	}
	q += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list updates: %w", err)
	}
	defer rows.Close()

	var out []UpdateEntry
	for rows.Next() {
		var (
			e                UpdateEntry
			previous, errMsg sql.NullString
			written, dropped string
		)
		if err := rows.Scan(&e.ID, &e.Prefix, &e.Timestamp, &e.Mode, &e.Status, &previous,
			&written, &dropped, &e.Triples, &e.Added, &e.Removed, &errMsg, &e.DurationMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan update: %w", err)
		}
		e.Previous = previous.String
		e.Error = errMsg.String
		if err := json.Unmarshal([]byte(written), &e.Written); err != nil {
			return nil, fmt.Errorf("decode written graphs of %s: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(dropped), &e.Dropped); err != nil {
			return nil, fmt.Errorf("decode dropped graphs of %s: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountUpdates returns the number of journaled updates with the given status,
// or all updates when status is empty.
func (db *DB) CountUpdates(status string) (int, error) {
	var n int
	var err error
	if status == "" {
		err = db.QueryRow("SELECT COUNT(*) FROM updates").Scan(&n)
	} else {
		err = db.QueryRow("SELECT COUNT(*) FROM updates WHERE status = ?", status).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count updates: %w", err)
	}
	return n, nil
}

func marshalNames(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	b, err := json.Marshal(names)
	if err != nil {
		return "", fmt.Errorf("encode graph names: %w", err)
	}
	return string(b), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
