// Package store persists assistant state (exported workflow variables,
// memories, intent history) in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/petal-labs/petalpilot/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS variables (
	name TEXT PRIMARY KEY,
	payload BLOB NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	content TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS intents (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	payload BLOB NOT NULL,
	created_at TEXT NOT NULL
);`

const (
	defaultDir = ".petalpilot"
	defaultDB  = "petalpilot.db"
)

// Store is the SQLite-backed persistence layer.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the default database path under the user home.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: resolve user home: %w", err)
	}
	return filepath.Join(home, defaultDir, defaultDB), nil
}

// Open opens (or creates) the database at dsn and applies the schema.
func Open(dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("store: dsn is required")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenDefault opens the database at ~/.petalpilot/petalpilot.db, creating
// the directory when missing.
func OpenDefault() (*Store, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}
	return Open(path)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveVariables upserts a flat name-to-value snapshot of workflow state.
func (s *Store) SaveVariables(ctx context.Context, vars map[string]any) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin save variables: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for name, value := range vars {
		payload, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("store: encode variable %q: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO variables (name, payload, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	payload = excluded.payload,
	updated_at = excluded.updated_at`,
			name, payload, now,
		); err != nil {
			return fmt.Errorf("store: upsert variable %q: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit save variables: %w", err)
	}
	return nil
}

// LoadVariables returns all persisted variables as a flat name-to-value map.
func (s *Store) LoadVariables(ctx context.Context) (map[string]any, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name, payload FROM variables ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list variables: %w", err)
	}
	defer rows.Close()

	vars := make(map[string]any)
	for rows.Next() {
		var (
			name    string
			payload []byte
		)
		if err := rows.Scan(&name, &payload); err != nil {
			return nil, fmt.Errorf("store: scan variable: %w", err)
		}
		var value any
		if err := json.Unmarshal(payload, &value); err != nil {
			return nil, fmt.Errorf("store: decode variable %q: %w", name, err)
		}
		vars[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: variable rows: %w", err)
	}
	return vars, nil
}

// DeleteVariable removes a variable. Deleting a missing name is a no-op.
func (s *Store) DeleteVariable(ctx context.Context, name string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM variables WHERE name = ?`, name); err != nil {
		return fmt.Errorf("store: delete variable %q: %w", name, err)
	}
	return nil
}

// SaveMemory upserts one memory item.
func (s *Store) SaveMemory(ctx context.Context, item core.MemoryItem) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(item.ID) == "" {
		return errors.New("store: memory id is required")
	}
	at := item.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO memories (id, content, category, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	content = excluded.content,
	category = excluded.category`,
		item.ID, item.Content, item.Category, at.Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("store: upsert memory %q: %w", item.ID, err)
	}
	return nil
}

// ListMemories returns all memory items, oldest first.
func (s *Store) ListMemories(ctx context.Context) ([]core.MemoryItem, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, content, category, created_at
FROM memories
ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("store: list memories: %w", err)
	}
	defer rows.Close()

	var items []core.MemoryItem
	for rows.Next() {
		var (
			item  core.MemoryItem
			atRaw string
		)
		if err := rows.Scan(&item.ID, &item.Content, &item.Category, &atRaw); err != nil {
			return nil, fmt.Errorf("store: scan memory: %w", err)
		}
		if at, err := time.Parse(time.RFC3339Nano, atRaw); err == nil {
			item.At = at.UTC()
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: memory rows: %w", err)
	}
	return items, nil
}

// DeleteMemory removes a memory item. Deleting a missing id is a no-op.
func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: delete memory %q: %w", id, err)
	}
	return nil
}

// AppendIntent records one analyzed intent for later inspection.
func (s *Store) AppendIntent(ctx context.Context, intent core.Intent) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	payload, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("store: encode intent: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO intents (payload, created_at) VALUES (?, ?)`,
		payload, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("store: append intent: %w", err)
	}
	return nil
}

// RecentIntents returns the latest n recorded intents, newest last.
func (s *Store) RecentIntents(ctx context.Context, n int) ([]core.Intent, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT payload FROM (
	SELECT seq, payload FROM intents ORDER BY seq DESC LIMIT ?
) ORDER BY seq ASC`, n)
	if err != nil {
		return nil, fmt.Errorf("store: list intents: %w", err)
	}
	defer rows.Close()

	var intents []core.Intent
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("store: scan intent: %w", err)
		}
		var intent core.Intent
		if err := json.Unmarshal(payload, &intent); err != nil {
			return nil, fmt.Errorf("store: decode intent: %w", err)
		}
		intents = append(intents, intent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: intent rows: %w", err)
	}
	return intents, nil
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return errors.New("store: store is nil")
	}
	return nil
}
