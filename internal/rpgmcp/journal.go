package rpgmcp

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Event is one campaign journal entry.
type Event struct {
	ID      int64  `json:"id"`
	TS      int64  `json:"ts"` // unix milliseconds
	Kind    string `json:"kind"`
	Details string `json:"details"`
}

// Journal is a SQLite-backed append-only event log. It survives agent and
// game-server restarts, which is the point: the LLM uses it to recall what
// happened in earlier sessions.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens (or creates) the journal database at path.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("rpgmcp: open journal %q: %w", path, err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS events (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			ts      INTEGER NOT NULL,
			kind    TEXT NOT NULL,
			details TEXT NOT NULL
		)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("rpgmcp: create journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Log appends one event and returns its id.
func (j *Journal) Log(ctx context.Context, kind, details string) (int64, error) {
	res, err := j.db.ExecContext(ctx,
		`INSERT INTO events (ts, kind, details) VALUES (?, ?, ?)`,
		time.Now().UnixMilli(), kind, details)
	if err != nil {
		return 0, fmt.Errorf("rpgmcp: log event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("rpgmcp: log event id: %w", err)
	}
	return id, nil
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, ts, kind, details FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("rpgmcp: query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Kind, &e.Details); err != nil {
			return nil, fmt.Errorf("rpgmcp: scan event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rpgmcp: iterate events: %w", err)
	}
	return out, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error { return j.db.Close() }
