// Package subscribers persists the set of chats that receive blog updates.
//
// The store is a presence-only set: one row per encoded chat identifier,
// no payload. It is safe for concurrent use; sqlite supplies per-statement
// atomicity, which is all the membership operations need.
package subscribers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"blogbot/internal/chat"
	"blogbot/pkg/logx"
)

const schema = `
CREATE TABLE IF NOT EXISTS subscribers (
	key BLOB PRIMARY KEY
) WITHOUT ROWID;
`

// Config configures the store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

// Store is the durable subscriber set.
type Store struct {
	db  *sql.DB
	log logx.Logger
}

// Open creates or opens the database at cfg.Path and ensures the schema.
func Open(cfg Config, log logx.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("subscribers: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("subscribers: migrate: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Add inserts id into the set. Adding an existing subscriber succeeds and
// leaves the set unchanged.
func (s *Store) Add(ctx context.Context, id chat.ID) error {
	if id.IsZero() {
		return errors.New("subscribers: invalid chat identifier")
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO subscribers(key) VALUES(?)`, id.Encode())
	if err != nil {
		return fmt.Errorf("subscribers: add %s: %w", id, err)
	}
	return nil
}

// Remove deletes id from the set. Removing an absent subscriber is a no-op.
func (s *Store) Remove(ctx context.Context, id chat.ID) error {
	if id.IsZero() {
		return errors.New("subscribers: invalid chat identifier")
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM subscribers WHERE key = ?`, id.Encode())
	if err != nil {
		return fmt.Errorf("subscribers: remove %s: %w", id, err)
	}
	return nil
}

// Contains reports membership. A storage error deliberately reads as
// "not subscribed": a rare false negative is preferred over failing the
// status command outright.
func (s *Store) Contains(ctx context.Context, id chat.ID) bool {
	if id.IsZero() {
		return false
	}
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM subscribers WHERE key = ?`, id.Encode()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		s.log.Warn("membership check failed, treating as absent", logx.String("chat", id.String()), logx.Err(err))
		return false
	}
	return true
}

// List returns a snapshot of all current subscribers in unspecified order.
// Rows whose key no longer decodes are skipped and logged, never fatal.
func (s *Store) List(ctx context.Context) ([]chat.ID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM subscribers`)
	if err != nil {
		return nil, fmt.Errorf("subscribers: list: %w", err)
	}
	defer rows.Close()

	var ids []chat.ID
	for rows.Next() {
		var key []byte
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("subscribers: list: %w", err)
		}
		id, err := chat.Decode(key)
		if err != nil {
			s.log.Warn("skipping undecodable subscriber key", logx.Err(err))
			continue
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("subscribers: list: %w", err)
	}
	return ids, nil
}
