// SPDX-License-Identifier: MIT

// Package history provides SQLite persistence for check-cycle outcomes, so
// the debug panel can show recent probe results and countdowns.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go, no CGO)
)

// Entry is one recorded check outcome.
type Entry struct {
	ID         int64     `json:"id"`
	Identifier string    `json:"identifier"`
	Changed    bool      `json:"changed"`
	Marker     string    `json:"marker,omitempty"`
	Source     string    `json:"source"` // "timer" or "manual"
	CheckedAt  time.Time `json:"checked_at"`
}

// Store provides SQLite persistence for check history.
type Store struct {
	db *sql.DB
}

// NewStore initializes the store at dbPath and runs migrations.
// WAL mode and busy_timeout suit the append-then-read access pattern.
func NewStore(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS check_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		identifier TEXT NOT NULL,
		changed INTEGER NOT NULL,
		marker TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL CHECK(source IN ('timer', 'manual')),
		checked_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_check_history_identifier ON check_history(identifier);
	CREATE INDEX IF NOT EXISTS idx_check_history_checked_at ON check_history(checked_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Record appends one check outcome.
func (s *Store) Record(ctx context.Context, e Entry) error {
	query := `
	INSERT INTO check_history (identifier, changed, marker, source, checked_at)
	VALUES (?, ?, ?, ?, ?)`

	checkedAt := e.CheckedAt
	if checkedAt.IsZero() {
		checkedAt = time.Now()
	}

	// Stored as unix nanoseconds so pruning compares numerically.
	_, err := s.db.ExecContext(ctx, query,
		e.Identifier, boolToInt(e.Changed), e.Marker, e.Source,
		checkedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert check history: %w", err)
	}
	return nil
}

// Recent returns the newest entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
	SELECT id, identifier, changed, marker, source, checked_at
	FROM check_history
	ORDER BY id DESC
	LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query check history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var e Entry
		var changed int
		var checkedAt int64
		if err := rows.Scan(&e.ID, &e.Identifier, &changed, &e.Marker, &e.Source, &checkedAt); err != nil {
			return nil, fmt.Errorf("scan check history row: %w", err)
		}
		e.Changed = changed != 0
		e.CheckedAt = time.Unix(0, checkedAt).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune removes entries older than cutoff, returning how many went away.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM check_history WHERE checked_at < ?`,
		cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune check history: %w", err)
	}
	return res.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
