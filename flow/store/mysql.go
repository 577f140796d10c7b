package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLHandle is a Handle backed by a shared MySQL database, for
// deployments where several orchestrator processes share one custom-code
// storage tier.
type MySQLHandle struct {
	db *sql.DB
}

// NewMySQLHandle opens a connection pool against dsn and ensures the
// schema exists.
func NewMySQLHandle(dsn string) (*MySQLHandle, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql handle: %w", err)
	}

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS code_step_storage (
	namespace VARCHAR(255) NOT NULL,
	storage_key VARCHAR(255) NOT NULL,
	value LONGBLOB NOT NULL,
	PRIMARY KEY (namespace, storage_key)
) ENGINE=InnoDB`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &MySQLHandle{db: db}, nil
}

func (h *MySQLHandle) Get(ctx context.Context, ns, key string) ([]byte, bool, error) {
	var value []byte
	err := h.db.QueryRowContext(ctx,
		`SELECT value FROM code_step_storage WHERE namespace = ? AND storage_key = ?`, ns, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", ns, key, err)
	}
	return value, true, nil
}

func (h *MySQLHandle) Set(ctx context.Context, ns, key string, value []byte) error {
	_, err := h.db.ExecContext(ctx, `
INSERT INTO code_step_storage (namespace, storage_key, value) VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE value = VALUES(value)`, ns, key, value)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", ns, key, err)
	}
	return nil
}

func (h *MySQLHandle) Delete(ctx context.Context, ns, key string) error {
	_, err := h.db.ExecContext(ctx, `DELETE FROM code_step_storage WHERE namespace = ? AND storage_key = ?`, ns, key)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", ns, key, err)
	}
	return nil
}

func (h *MySQLHandle) Close() error { return h.db.Close() }
