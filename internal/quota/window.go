package quota

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// allowScript trims the window, counts it and records the event only when
// it fits, all in one step so concurrent callers cannot overshoot max.
var allowScript = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
if redis.call('ZCARD', KEYS[1]) >= tonumber(ARGV[3]) then
	return 0
end
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

// Window counts events per subject in a Redis sorted set and allows at
// most max events within any trailing span of Size.
type Window struct {
	rdb    redis.Cmdable
	prefix string
	Size   time.Duration
}

// NewWindow creates a sliding window whose keys are prefix+subject.
func NewWindow(rdb redis.Cmdable, prefix string, size time.Duration) *Window {
	return &Window{rdb: rdb, prefix: prefix, Size: size}
}

// Allow records an event for subject and returns true if it fits under
// max. Denied events are not recorded.
func (w *Window) Allow(ctx context.Context, subject string, max int) (bool, error) {
	key := w.prefix + subject
	now := time.Now()

	allowed, err := allowScript.Run(ctx, w.rdb, []string{key},
		strconv.FormatInt(now.Add(-w.Size).UnixMilli(), 10),
		strconv.FormatInt(now.UnixMilli(), 10),
		max,
		strconv.FormatInt(now.UnixNano(), 10)+":"+uuid.NewString(),
		(w.Size + w.Size/2).Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("sliding window %s: %w", key, err)
	}
	return allowed == 1, nil
}
