package cache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studypath/studypath/internal/metrics"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func backends(t *testing.T) map[string]Backend {
	t.Helper()

	sqliteBackend, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "cache", "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteBackend.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return map[string]Backend{
		"sqlite": sqliteBackend,
		"redis":  NewRedisBackend(client),
	}
}

func TestStore_SetGet(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			s := New(b, WithClock(clock.Now))
			ctx := context.Background()

			_, ok := s.Get(ctx, "ai:roadmap:databases:45")
			assert.False(t, ok)

			s.Set(ctx, "ai:roadmap:databases:45", []byte(`{"roadmap":["a"]}`), time.Hour)

			got, ok := s.Get(ctx, "ai:roadmap:databases:45")
			require.True(t, ok)
			assert.JSONEq(t, `{"roadmap":["a"]}`, string(got))
		})
	}
}

func TestStore_EntryExpires(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			s := New(b, WithClock(clock.Now))
			ctx := context.Background()

			s.Set(ctx, "k", []byte("v"), time.Second)
			clock.Advance(2 * time.Second)

			_, ok := s.Get(ctx, "k")
			assert.False(t, ok)
		})
	}
}

func TestStore_LastWriterWins(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			s := New(b, WithClock(clock.Now))
			ctx := context.Background()

			s.Set(ctx, "k", []byte("first"), time.Second)
			clock.Advance(2 * time.Second)
			s.Set(ctx, "k", []byte("second"), time.Hour)

			got, ok := s.Get(ctx, "k")
			require.True(t, ok)
			assert.Equal(t, "second", string(got))
		})
	}
}

func TestStore_Snapshot(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			s := New(b, WithClock(clock.Now))
			ctx := context.Background()

			s.SetSnapshot(ctx, "2251061234", "marks", []byte(`[{"mark":8}]`))

			got, ok := s.GetSnapshot(ctx, "2251061234", "marks", time.Hour)
			require.True(t, ok)
			assert.Equal(t, `[{"mark":8}]`, string(got))

			_, ok = s.GetSnapshot(ctx, "2251061234", "schedule", time.Hour)
			assert.False(t, ok, "kinds are keyed separately")

			clock.Advance(time.Hour)
			_, ok = s.GetSnapshot(ctx, "2251061234", "marks", time.Hour)
			assert.False(t, ok, "snapshot at max age is stale")
		})
	}
}

func TestStore_SnapshotKeysDoNotCollide(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := New(b)
			ctx := context.Background()

			s.SetSnapshot(ctx, "a:b", "c", []byte(`"first"`))
			s.SetSnapshot(ctx, "a", "b:c", []byte(`"second"`))

			got, ok := s.GetSnapshot(ctx, "a:b", "c", time.Hour)
			require.True(t, ok)
			assert.Equal(t, `"first"`, string(got))

			got, ok = s.GetSnapshot(ctx, "a", "b:c", time.Hour)
			require.True(t, ok)
			assert.Equal(t, `"second"`, string(got))
		})
	}
}

func TestStore_JSON(t *testing.T) {
	b := backends(t)["sqlite"]
	s := New(b)
	ctx := context.Background()

	type payload struct {
		Roadmap []string `json:"roadmap"`
	}
	s.SetJSON(ctx, "k", payload{Roadmap: []string{"one", "two"}}, time.Hour)

	var got payload
	require.True(t, s.GetJSON(ctx, "k", &got))
	assert.Equal(t, []string{"one", "two"}, got.Roadmap)

	s.Set(ctx, "broken", []byte("{not json"), time.Hour)
	assert.False(t, s.GetJSON(ctx, "broken", &got))
}

func TestStore_RealClockTTL(t *testing.T) {
	b := backends(t)["sqlite"]
	s := New(b)
	ctx := context.Background()

	s.Set(ctx, "short", []byte("v"), time.Second)
	_, ok := s.Get(ctx, "short")
	require.True(t, ok)

	time.Sleep(2 * time.Second)

	_, ok = s.Get(ctx, "short")
	assert.False(t, ok)
}

func TestStore_ConcurrentWriters(t *testing.T) {
	b := backends(t)["redis"]
	s := New(b)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Set(ctx, "shared", []byte{byte('a' + i)}, time.Hour)
			s.Get(ctx, "shared")
		}(i)
	}
	wg.Wait()

	got, ok := s.Get(ctx, "shared")
	require.True(t, ok)
	assert.Len(t, got, 1)
}

type failingBackend struct{}

var errBackendDown = errors.New("backend down")

func (failingBackend) GetContent(context.Context, string) (Entry, bool, error) {
	return Entry{}, false, errBackendDown
}

func (failingBackend) PutContent(context.Context, string, Entry) error { return errBackendDown }

func (failingBackend) GetSnapshot(context.Context, string, string) (Snapshot, bool, error) {
	return Snapshot{}, false, errBackendDown
}

func (failingBackend) PutSnapshot(context.Context, string, string, Snapshot) error {
	return errBackendDown
}

func TestStore_BackendFailureIsMiss(t *testing.T) {
	s := New(failingBackend{})
	ctx := context.Background()
	before := testutil.ToFloat64(metrics.CacheBackendErrorsTotal.WithLabelValues("get_content"))

	assert.NotPanics(t, func() {
		s.Set(ctx, "k", []byte("v"), time.Hour)
		s.SetSnapshot(ctx, "s", "marks", []byte("[]"))
	})

	_, ok := s.Get(ctx, "k")
	assert.False(t, ok)
	_, ok = s.GetSnapshot(ctx, "s", "marks", time.Hour)
	assert.False(t, ok)

	after := testutil.ToFloat64(metrics.CacheBackendErrorsTotal.WithLabelValues("get_content"))
	assert.Equal(t, before+1, after)
}

func TestRedisBackend_NoKeyTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	s := New(NewRedisBackend(client))
	s.Set(context.Background(), "k", []byte("v"), time.Minute)

	assert.Zero(t, mr.TTL(redisContentPrefix+"k"))
}
