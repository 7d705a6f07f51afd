// Package sqlite implements the shared store as a single SQLite database
// that several clients open concurrently. Push notifications are not
// available, so Watch polls a global revision counter and emits events for
// rows written by other clients since the last poll.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"assetline/internal/store/core"
)

const defaultPollInterval = 500 * time.Millisecond

// Store implements core.Store over a shared SQLite file.
type Store struct {
	db       *sql.DB
	clientID string

	// PollInterval controls how often Watch looks for foreign writes.
	PollInterval time.Duration

	mu     sync.Mutex
	closed bool
}

// Open opens (creating if needed) the shared database at path with WAL
// journaling so concurrent clients do not block each other.
func Open(path, clientID string) (*Store, error) {
	if path == "" {
		path = filepath.Join(".assetline", "shared.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, clientID: clientID, PollInterval: defaultPollInterval}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv(
  key TEXT PRIMARY KEY,
  value BLOB NOT NULL,
  rev INTEGER NOT NULL,
  client_id TEXT NOT NULL,
  updated_at TEXT NOT NULL
)`)
	return err
}

func (s *Store) ClientID() string { return s.clientID }

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	return value, err
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
INSERT INTO kv(key,value,rev,client_id,updated_at)
VALUES (?,?,(SELECT COALESCE(MAX(rev),0)+1 FROM kv),?,?)
ON CONFLICT(key) DO UPDATE SET
  value=excluded.value, rev=excluded.rev, client_id=excluded.client_id, updated_at=excluded.updated_at`,
		key, value, s.clientID, now)
	return err
}

// Watch polls for rows revised by other clients. Events carry the value
// read at poll time, which may already supersede the triggering write;
// last-write-wins makes that harmless.
func (s *Store) Watch(ctx context.Context) (<-chan core.Event, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, fmt.Errorf("store closed")
	}
	s.mu.Unlock()

	var since int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(rev),0) FROM kv`).Scan(&since); err != nil {
		return nil, err
	}
	interval := s.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	ch := make(chan core.Event, 64)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				events, next, err := s.poll(ctx, since)
				if err != nil {
					continue
				}
				since = next
				for _, ev := range events {
					select {
					case ch <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return ch, nil
}

func (s *Store) poll(ctx context.Context, since int64) ([]core.Event, int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key,value,rev,client_id FROM kv WHERE rev>? ORDER BY rev`, since)
	if err != nil {
		return nil, since, err
	}
	defer rows.Close()
	var events []core.Event
	max := since
	for rows.Next() {
		var (
			ev  core.Event
			rev int64
		)
		if err := rows.Scan(&ev.Key, &ev.Value, &rev, &ev.ClientID); err != nil {
			return nil, since, err
		}
		if rev > max {
			max = rev
		}
		if ev.ClientID == s.clientID {
			continue
		}
		events = append(events, ev)
	}
	return events, max, rows.Err()
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
