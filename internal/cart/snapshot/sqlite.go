package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStorage keeps snapshots in a local SQLite file.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (and migrates) the database at dsn.
func NewSQLiteStorage(dsn string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &SQLiteStorage{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStorage) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS cart_snapshots (
  session_key TEXT PRIMARY KEY,
  items TEXT NOT NULL,
  updated_at TIMESTAMP NOT NULL
);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("snapshot: migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Get(ctx context.Context, key string) ([]byte, error) {
	var items string
	err := s.db.QueryRowContext(ctx, `SELECT items FROM cart_snapshots WHERE session_key=?`, key).Scan(&items)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: sqlite get: %w", err)
	}
	return []byte(items), nil
}

func (s *SQLiteStorage) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cart_snapshots(session_key,items,updated_at) VALUES(?,?,?)
		 ON CONFLICT(session_key) DO UPDATE SET items=excluded.items, updated_at=excluded.updated_at`,
		key, string(value), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("snapshot: sqlite put: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cart_snapshots WHERE session_key=?`, key); err != nil {
		return fmt.Errorf("snapshot: sqlite delete: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error { return s.db.Close() }
