package cache

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBackend keeps both cache tables in PostgreSQL. The schema is
// created by the content_cache / snapshot_cache migrations.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

func NewPostgresBackend(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

func (b *PostgresBackend) GetContent(ctx context.Context, key string) (Entry, bool, error) {
	var e Entry
	err := b.pool.QueryRow(ctx,
		`SELECT payload, expires_at FROM content_cache WHERE cache_key = $1`, key,
	).Scan(&e.Payload, &e.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("selecting content_cache: %w", err)
	}
	return e, true, nil
}

func (b *PostgresBackend) PutContent(ctx context.Context, key string, e Entry) error {
	_, err := b.pool.Exec(ctx,
		`INSERT INTO content_cache (cache_key, payload, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (cache_key) DO UPDATE SET payload = EXCLUDED.payload, expires_at = EXCLUDED.expires_at`,
		key, e.Payload, e.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("upserting content_cache: %w", err)
	}
	return nil
}

func (b *PostgresBackend) GetSnapshot(ctx context.Context, subject, kind string) (Snapshot, bool, error) {
	var (
		s       Snapshot
		fetched float64
	)
	err := b.pool.QueryRow(ctx,
		`SELECT records, fetched_at FROM snapshot_cache WHERE subject = $1 AND kind = $2`, subject, kind,
	).Scan(&s.Records, &fetched)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("selecting snapshot_cache: %w", err)
	}
	s.FetchedAt = fromUnixSeconds(fetched)
	return s, true, nil
}

func (b *PostgresBackend) PutSnapshot(ctx context.Context, subject, kind string, s Snapshot) error {
	_, err := b.pool.Exec(ctx,
		`INSERT INTO snapshot_cache (subject, kind, fetched_at, records)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (subject, kind) DO UPDATE SET fetched_at = EXCLUDED.fetched_at, records = EXCLUDED.records`,
		subject, kind, toUnixSeconds(s.FetchedAt), s.Records,
	)
	if err != nil {
		return fmt.Errorf("upserting snapshot_cache: %w", err)
	}
	return nil
}

func toUnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromUnixSeconds(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*float64(time.Second)))
}
