package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteHandle is a Handle backed by a single-file SQLite database. Useful
// for a code step that wants its stored values to survive process
// restarts without standing up a server.
type SQLiteHandle struct {
	db *sql.DB
}

// NewSQLiteHandle opens (creating if absent) the database at path and
// ensures its schema exists.
func NewSQLiteHandle(path string) (*SQLiteHandle, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite handle: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS code_step_storage (
	namespace TEXT NOT NULL,
	key TEXT NOT NULL,
	value BLOB NOT NULL,
	PRIMARY KEY (namespace, key)
)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteHandle{db: db}, nil
}

func (h *SQLiteHandle) Get(ctx context.Context, ns, key string) ([]byte, bool, error) {
	var value []byte
	err := h.db.QueryRowContext(ctx,
		`SELECT value FROM code_step_storage WHERE namespace = ? AND key = ?`, ns, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", ns, key, err)
	}
	return value, true, nil
}

func (h *SQLiteHandle) Set(ctx context.Context, ns, key string, value []byte) error {
	_, err := h.db.ExecContext(ctx, `
INSERT INTO code_step_storage (namespace, key, value) VALUES (?, ?, ?)
ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value`, ns, key, value)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", ns, key, err)
	}
	return nil
}

func (h *SQLiteHandle) Delete(ctx context.Context, ns, key string) error {
	_, err := h.db.ExecContext(ctx, `DELETE FROM code_step_storage WHERE namespace = ? AND key = ?`, ns, key)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", ns, key, err)
	}
	return nil
}

func (h *SQLiteHandle) Close() error { return h.db.Close() }
