package mirror

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SyncLogEntry is the immutable record of one sync invocation.
type SyncLogEntry struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	DryRun    bool      `json:"dryRun"`
	Tables    []string  `json:"tables"`
	Added     int64     `json:"added"`
	Updated   int64     `json:"updated"`
	Deleted   int64     `json:"deleted"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// LogStore keeps the append-only sync history in SQLite.
type LogStore struct {
	db *sql.DB
}

// OpenLogStore opens (and creates) the history database at path. ":memory:"
// is accepted for tests.
func OpenLogStore(path string) (*LogStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	s := &LogStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize state database: %w", err)
	}
	return s, nil
}

func (s *LogStore) Close() error {
	return s.db.Close()
}

func (s *LogStore) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sync_log (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL,
			dry_run INTEGER NOT NULL DEFAULT 0,
			tables TEXT NOT NULL DEFAULT '[]',
			added INTEGER NOT NULL DEFAULT 0,
			updated INTEGER NOT NULL DEFAULT 0,
			deleted INTEGER NOT NULL DEFAULT 0,
			error_message TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sync_log_kind ON sync_log(kind);
	`)
	return err
}

// Append stores e, filling in ID and CreatedAt when empty.
func (s *LogStore) Append(ctx context.Context, e *SyncLogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	tables, err := json.Marshal(nonNil(e.Tables))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sync_log (id, kind, dry_run, tables, added, updated, deleted, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Kind, e.DryRun, string(tables), e.Added, e.Updated, e.Deleted, e.Error, e.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append sync log: %w", err)
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (s *LogStore) Recent(ctx context.Context, n int) ([]SyncLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, dry_run, tables, added, updated, deleted, error_message, created_at
		FROM sync_log
		ORDER BY seq DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("read sync log: %w", err)
	}
	defer rows.Close()

	entries := []SyncLogEntry{}
	for rows.Next() {
		var (
			e       SyncLogEntry
			tables  string
			created string
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.DryRun, &tables, &e.Added, &e.Updated, &e.Deleted, &e.Error, &created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tables), &e.Tables); err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
