// Package kvstore persists timestamped payloads by key in SQLite. It backs
// the forecast cache so that restarts do not exceed upstream rate limits.
package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is a cached payload with the time it was last stamped.
type Entry struct {
	Key     string
	Stamp   time.Time
	Payload []byte
}

// SQLiteStore persists entries in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS kv_cache (
        key TEXT PRIMARY KEY,
        stamp INTEGER NOT NULL,
        payload BLOB
    );`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Get returns the entry for key. The boolean is false when the key is unknown.
func (s *SQLiteStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	var (
		stamp   int64
		payload []byte
	)
	err := s.db.QueryRowContext(ctx, `SELECT stamp, payload FROM kv_cache WHERE key = ?`, key).Scan(&stamp, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("kvstore get %q: %w", key, err)
	}
	return Entry{Key: key, Stamp: time.Unix(0, stamp).UTC(), Payload: payload}, true, nil
}

// Put inserts or replaces the payload of key.
func (s *SQLiteStore) Put(ctx context.Context, key string, payload []byte, stamp time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO kv_cache (key, stamp, payload)
        VALUES (?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET
            stamp = excluded.stamp,
            payload = excluded.payload`,
		key, stamp.UnixNano(), payload)
	if err != nil {
		return fmt.Errorf("kvstore put %q: %w", key, err)
	}
	return nil
}

// Touch updates the stamp of key and keeps its payload. An unknown key is
// created with an empty payload.
func (s *SQLiteStore) Touch(ctx context.Context, key string, stamp time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO kv_cache (key, stamp, payload)
        VALUES (?, ?, NULL)
        ON CONFLICT(key) DO UPDATE SET stamp = excluded.stamp`,
		key, stamp.UnixNano())
	if err != nil {
		return fmt.Errorf("kvstore touch %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
