package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mohitkumar/intake/logger"
	"github.com/mohitkumar/intake/persistence"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var _ persistence.Store = new(Store)

const schema = `
CREATE TABLE IF NOT EXISTS kv_list (
	seq   INTEGER PRIMARY KEY AUTOINCREMENT,
	key   TEXT NOT NULL,
	value BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS kv_list_key_seq ON kv_list (key, seq DESC);
CREATE TABLE IF NOT EXISTS kv_set (
	key    TEXT NOT NULL,
	member TEXT NOT NULL,
	PRIMARY KEY (key, member)
);`

// Store implements persistence.Store in a single SQLite file.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func storageError(op string, key string, err error) error {
	logger.Error("sqlite store error", zap.String("op", op), zap.String("key", key), zap.Error(err))
	return persistence.StorageLayerError{Message: err.Error()}
}

func (s *Store) Append(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, `INSERT INTO kv_list (key, value) VALUES (?, ?)`, key, value); err != nil {
		return storageError("append", key, err)
	}
	return nil
}

func (s *Store) Latest(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_list WHERE key = ? ORDER BY seq DESC LIMIT 1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, storageError("latest", key, err)
	}
	return value, nil
}

func (s *Store) count(ctx context.Context, key string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv_list WHERE key = ?`, key).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) Range(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	n, err := s.count(ctx, key)
	if err != nil {
		return nil, storageError("range", key, err)
	}
	from, to, ok := persistence.Bounds(n, start, stop)
	if !ok {
		return [][]byte{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT value FROM kv_list WHERE key = ? ORDER BY seq DESC LIMIT ? OFFSET ?`, key, to-from, from)
	if err != nil {
		return nil, storageError("range", key, err)
	}
	defer rows.Close()
	res := make([][]byte, 0, to-from)
	for rows.Next() {
		var value []byte
		if err := rows.Scan(&value); err != nil {
			return nil, storageError("range", key, err)
		}
		res = append(res, value)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("range", key, err)
	}
	return res, nil
}

func (s *Store) Trim(ctx context.Context, key string, keep int64) error {
	_, err := s.db.ExecContext(ctx, `
DELETE FROM kv_list WHERE key = ? AND seq NOT IN (
	SELECT seq FROM kv_list WHERE key = ? ORDER BY seq DESC LIMIT ?
)`, key, key, keep)
	if err != nil {
		return storageError("trim", key, err)
	}
	return nil
}

func (s *Store) AddMember(ctx context.Context, key string, member string) error {
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO kv_set (key, member) VALUES (?, ?)`, key, member); err != nil {
		return storageError("add member", key, err)
	}
	return nil
}

func (s *Store) RemoveMember(ctx context.Context, key string, member string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_set WHERE key = ? AND member = ?`, key, member); err != nil {
		return storageError("remove member", key, err)
	}
	return nil
}

func (s *Store) Members(ctx context.Context, key string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT member FROM kv_set WHERE key = ? ORDER BY member`, key)
	if err != nil {
		return nil, storageError("members", key, err)
	}
	defer rows.Close()
	res := make([]string, 0)
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, storageError("members", key, err)
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
