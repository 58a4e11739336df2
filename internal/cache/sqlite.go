package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS content_cache (
	cache_key  TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS snapshot_cache (
	subject    TEXT NOT NULL,
	kind       TEXT NOT NULL,
	fetched_at REAL NOT NULL,
	records    BLOB NOT NULL,
	PRIMARY KEY (subject, kind)
);`

// SQLiteBackend keeps the cache in a local SQLite file for single-node
// deployments.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and ensures
// the cache tables exist.
func OpenSQLite(ctx context.Context, path string) (*SQLiteBackend, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite cache: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache schema: %w", err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

func (b *SQLiteBackend) GetContent(ctx context.Context, key string) (Entry, bool, error) {
	var (
		e  Entry
		ms int64
	)
	err := b.db.QueryRowContext(ctx,
		`SELECT payload, expires_at FROM content_cache WHERE cache_key = ?`, key,
	).Scan(&e.Payload, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("selecting content_cache: %w", err)
	}
	e.ExpiresAt = time.UnixMilli(ms)
	return e, true, nil
}

func (b *SQLiteBackend) PutContent(ctx context.Context, key string, e Entry) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO content_cache (cache_key, payload, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (cache_key) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at`,
		key, e.Payload, e.ExpiresAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upserting content_cache: %w", err)
	}
	return nil
}

func (b *SQLiteBackend) GetSnapshot(ctx context.Context, subject, kind string) (Snapshot, bool, error) {
	var (
		s   Snapshot
		sec float64
	)
	err := b.db.QueryRowContext(ctx,
		`SELECT records, fetched_at FROM snapshot_cache WHERE subject = ? AND kind = ?`, subject, kind,
	).Scan(&s.Records, &sec)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("selecting snapshot_cache: %w", err)
	}
	s.FetchedAt = fromUnixSeconds(sec)
	return s, true, nil
}

func (b *SQLiteBackend) PutSnapshot(ctx context.Context, subject, kind string, s Snapshot) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO snapshot_cache (subject, kind, fetched_at, records) VALUES (?, ?, ?, ?)
		 ON CONFLICT (subject, kind) DO UPDATE SET fetched_at = excluded.fetched_at, records = excluded.records`,
		subject, kind, toUnixSeconds(s.FetchedAt), s.Records,
	)
	if err != nil {
		return fmt.Errorf("upserting snapshot_cache: %w", err)
	}
	return nil
}
