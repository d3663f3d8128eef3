package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// SQLite is a Store backed by an embedded SQLite database.
//
// The database is opened in WAL mode so the daemon can keep reading the
// queue while the CLI writes to it. This is the default host store when
// the offline layer runs out-of-process; on-device builds pass the
// platform's own Store implementation instead.
type SQLite struct {
	conn *sql.DB
	path string
}

// OpenSQLite creates a SQLite store at the specified path.
//
// The parent directory is created if needed. The caller MUST call Close()
// when done.
//
// Example:
//
//	st, err := store.OpenSQLite(filepath.Join(home, ".nfcapp", "offline.db"))
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
func OpenSQLite(path string) (*SQLite, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping store: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &SQLite{conn: conn, path: path}

	// WAL mode for concurrent reads
	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// initSchema creates the kv table if it doesn't exist. Idempotent.
func (s *SQLite) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize store schema: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (s *SQLite) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}

	s.conn = nil
	return nil
}

// Get implements Store.Get.
func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.conn.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: failed to read %q: %v", ErrStorage, key, err)
	}
	return value, true, nil
}

// Set implements Store.Set.
func (s *SQLite) Set(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO kv (key, value, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at
	`
	_, err := s.conn.ExecContext(ctx, query, key, value, time.Now().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%w: failed to write %q: %v", ErrStorage, key, err)
	}
	return nil
}

// Remove implements Store.Remove. Idempotent.
func (s *SQLite) Remove(ctx context.Context, key string) error {
	if _, err := s.conn.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("%w: failed to remove %q: %v", ErrStorage, key, err)
	}
	return nil
}

// ListKeys implements Store.ListKeys.
func (s *SQLite) ListKeys(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT key FROM kv ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list keys: %v", ErrStorage, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("%w: failed to scan key: %v", ErrStorage, err)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating keys: %v", ErrStorage, err)
	}

	return keys, nil
}

// RemoveMany implements Store.RemoveMany.
func (s *SQLite) RemoveMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", ErrStorage, err)
	}
	defer tx.Rollback()

	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
			return fmt.Errorf("%w: failed to remove %q: %v", ErrStorage, key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit removal: %v", ErrStorage, err)
	}

	return nil
}
