package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisContentPrefix  = "cache:content:"
	redisSnapshotPrefix = "cache:snapshot:"
)

// RedisBackend stores each entry as a hash holding the payload and its
// timestamp. Keys carry no Redis TTL; expiry is decided by the Store.
type RedisBackend struct {
	rdb redis.Cmdable
}

func NewRedisBackend(rdb redis.Cmdable) *RedisBackend {
	return &RedisBackend{rdb: rdb}
}

// snapshotKey length-prefixes subject so subjects containing ":" cannot
// collide with another (subject, kind) pair.
func snapshotKey(subject, kind string) string {
	return redisSnapshotPrefix + strconv.Itoa(len(subject)) + ":" + subject + ":" + kind
}

func (b *RedisBackend) GetContent(ctx context.Context, key string) (Entry, bool, error) {
	vals, err := b.rdb.HGetAll(ctx, redisContentPrefix+key).Result()
	if err != nil {
		return Entry{}, false, fmt.Errorf("hgetall %s: %w", key, err)
	}
	payload, ok := vals["payload"]
	if !ok {
		return Entry{}, false, nil
	}
	ms, err := strconv.ParseInt(vals["expires_at"], 10, 64)
	if err != nil {
		return Entry{}, false, fmt.Errorf("parsing expires_at for %s: %w", key, err)
	}
	return Entry{Payload: []byte(payload), ExpiresAt: time.UnixMilli(ms)}, true, nil
}

func (b *RedisBackend) PutContent(ctx context.Context, key string, e Entry) error {
	err := b.rdb.HSet(ctx, redisContentPrefix+key,
		"payload", e.Payload,
		"expires_at", strconv.FormatInt(e.ExpiresAt.UnixMilli(), 10),
	).Err()
	if err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

func (b *RedisBackend) GetSnapshot(ctx context.Context, subject, kind string) (Snapshot, bool, error) {
	key := snapshotKey(subject, kind)
	vals, err := b.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("hgetall %s: %w", key, err)
	}
	records, ok := vals["records"]
	if !ok {
		return Snapshot{}, false, nil
	}
	sec, err := strconv.ParseFloat(vals["fetched_at"], 64)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("parsing fetched_at for %s: %w", key, err)
	}
	return Snapshot{Records: []byte(records), FetchedAt: fromUnixSeconds(sec)}, true, nil
}

func (b *RedisBackend) PutSnapshot(ctx context.Context, subject, kind string, s Snapshot) error {
	key := snapshotKey(subject, kind)
	err := b.rdb.HSet(ctx, key,
		"records", s.Records,
		"fetched_at", strconv.FormatFloat(toUnixSeconds(s.FetchedAt), 'f', -1, 64),
	).Err()
	if err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}
