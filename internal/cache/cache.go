// Package cache memoizes expensive upstream calls in durable storage. Each
// entry carries its own expiry; expired entries read as misses and are
// overwritten by the next write rather than evicted.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"github.com/studypath/studypath/internal/metrics"
)

const (
	tableContent  = "content"
	tableSnapshot = "snapshot"
)

// Entry is a content row: an opaque payload valid until ExpiresAt.
type Entry struct {
	Payload   []byte
	ExpiresAt time.Time
}

// Snapshot is an upstream record set captured at FetchedAt.
type Snapshot struct {
	Records   []byte
	FetchedAt time.Time
}

// Backend is durable keyed storage for both cache tables. Lookups of a
// missing key return found=false and a nil error. Puts are upserts.
type Backend interface {
	GetContent(ctx context.Context, key string) (Entry, bool, error)
	PutContent(ctx context.Context, key string, e Entry) error
	GetSnapshot(ctx context.Context, subject, kind string) (Snapshot, bool, error)
	PutSnapshot(ctx context.Context, subject, kind string, s Snapshot) error
}

// Store applies expiry policy on top of a Backend. Backend failures are
// logged and surface as misses or dropped writes.
type Store struct {
	backend Backend
	now     func() time.Time
}

type Option func(*Store)

// WithClock replaces time.Now for expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(backend Backend, opts ...Option) *Store {
	s := &Store{backend: backend, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Get returns the payload stored under key if it has not expired.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	e, found, err := s.backend.GetContent(ctx, key)
	if err != nil {
		s.backendFailed("get_content", err, "key", key)
		metrics.CacheLookupsTotal.WithLabelValues(tableContent, "error").Inc()
		return nil, false
	}
	if !found {
		metrics.CacheLookupsTotal.WithLabelValues(tableContent, "miss").Inc()
		return nil, false
	}
	if !s.now().Before(e.ExpiresAt) {
		metrics.CacheLookupsTotal.WithLabelValues(tableContent, "expired").Inc()
		return nil, false
	}
	metrics.CacheLookupsTotal.WithLabelValues(tableContent, "hit").Inc()
	return e.Payload, true
}

// Set stores value under key for ttl, replacing any previous entry.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	e := Entry{Payload: value, ExpiresAt: s.now().Add(ttl)}
	if err := s.backend.PutContent(ctx, key, e); err != nil {
		s.backendFailed("put_content", err, "key", key)
	}
}

// GetJSON decodes a cached payload into dst. A payload that no longer
// decodes is reported as a miss.
func (s *Store) GetJSON(ctx context.Context, key string, dst any) bool {
	data, ok := s.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		slog.Warn("cache: discarding undecodable entry", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Store) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("cache: encoding entry", "key", key, "error", err)
		return
	}
	s.Set(ctx, key, data, ttl)
}

// GetSnapshot returns the records captured for (subject, kind) if they are
// younger than maxAge.
func (s *Store) GetSnapshot(ctx context.Context, subject, kind string, maxAge time.Duration) ([]byte, bool) {
	snap, found, err := s.backend.GetSnapshot(ctx, subject, kind)
	if err != nil {
		s.backendFailed("get_snapshot", err, "subject", subject, "kind", kind)
		metrics.CacheLookupsTotal.WithLabelValues(tableSnapshot, "error").Inc()
		return nil, false
	}
	if !found {
		metrics.CacheLookupsTotal.WithLabelValues(tableSnapshot, "miss").Inc()
		return nil, false
	}
	if s.now().Sub(snap.FetchedAt) >= maxAge {
		metrics.CacheLookupsTotal.WithLabelValues(tableSnapshot, "expired").Inc()
		return nil, false
	}
	metrics.CacheLookupsTotal.WithLabelValues(tableSnapshot, "hit").Inc()
	return snap.Records, true
}

// SetSnapshot records value as the latest capture for (subject, kind).
func (s *Store) SetSnapshot(ctx context.Context, subject, kind string, value []byte) {
	snap := Snapshot{Records: value, FetchedAt: s.now()}
	if err := s.backend.PutSnapshot(ctx, subject, kind, snap); err != nil {
		s.backendFailed("put_snapshot", err, "subject", subject, "kind", kind)
	}
}

func (s *Store) backendFailed(op string, err error, attrs ...any) {
	metrics.CacheBackendErrorsTotal.WithLabelValues(op).Inc()
	slog.Warn("cache: backend "+op+" failed, continuing without cache", append([]any{"error", err}, attrs...)...)
}
