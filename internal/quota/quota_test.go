package quota

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, s
}

func TestWindow_UnderLimit(t *testing.T) {
	rdb, mr := setupMiniredis(t)
	w := NewWindow(rdb, "test:", time.Minute)
	ctx := context.Background()

	allowed, err := w.Allow(ctx, "2251061234", 10)
	require.NoError(t, err)
	assert.True(t, allowed)

	members, err := mr.ZMembers("test:2251061234")
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestWindow_AtLimit(t *testing.T) {
	rdb, mr := setupMiniredis(t)
	w := NewWindow(rdb, "test:", time.Minute)
	ctx := context.Background()

	// Fill up to the limit
	for i := 0; i < 5; i++ {
		allowed, err := w.Allow(ctx, "s1", 5)
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	// Next should be denied and not counted
	allowed, err := w.Allow(ctx, "s1", 5)
	require.NoError(t, err)
	assert.False(t, allowed)

	members, err := mr.ZMembers("test:s1")
	require.NoError(t, err)
	assert.Len(t, members, 5)
}

func TestWindow_ConcurrentCallersShareLimit(t *testing.T) {
	rdb, mr := setupMiniredis(t)
	w := NewWindow(rdb, "test:", time.Minute)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := w.Allow(ctx, "s1", 3)
			assert.NoError(t, err)
			if ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), allowed.Load())
	members, err := mr.ZMembers("test:s1")
	require.NoError(t, err)
	assert.Len(t, members, 3)
}

func TestWindow_DifferentSubjects(t *testing.T) {
	rdb, _ := setupMiniredis(t)
	w := NewWindow(rdb, "test:", time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := w.Allow(ctx, "s1", 3)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := w.Allow(ctx, "s1", 3)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = w.Allow(ctx, "s2", 3)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestWindow_KeyExpires(t *testing.T) {
	rdb, mr := setupMiniredis(t)
	w := NewWindow(rdb, "test:", time.Minute)

	_, err := w.Allow(context.Background(), "s1", 3)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:s1"))

	mr.FastForward(91 * time.Second)
	assert.False(t, mr.Exists("test:s1"))
}

func TestGuard_AllowAI(t *testing.T) {
	rdb, mr := setupMiniredis(t)
	g := NewGuard(rdb, 2)
	ctx := context.Background()

	assert.True(t, g.AllowAI(ctx, "s1"))
	assert.True(t, g.AllowAI(ctx, "s1"))
	assert.False(t, g.AllowAI(ctx, "s1"))

	members, err := mr.ZMembers(aiKeyPrefix + "s1")
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestGuard_FailsOpen(t *testing.T) {
	rdb, mr := setupMiniredis(t)
	g := NewGuard(rdb, 1)
	mr.Close()

	assert.True(t, g.AllowAI(context.Background(), "s1"))
	assert.True(t, g.AllowAI(context.Background(), "s1"))
}

func TestGuard_Nil(t *testing.T) {
	var g *Guard
	assert.True(t, g.AllowAI(context.Background(), "s1"))
}
