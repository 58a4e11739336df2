// Package quota limits how often a student may trigger AI content
// generation. Over-limit requests are served fallback content instead.
package quota

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const aiKeyPrefix = "quota:ai:"

// Guard applies a per-minute AI generation limit per student.
type Guard struct {
	window       *Window
	maxPerMinute int
}

func NewGuard(rdb redis.Cmdable, maxPerMinute int) *Guard {
	return &Guard{
		window:       NewWindow(rdb, aiKeyPrefix, time.Minute),
		maxPerMinute: maxPerMinute,
	}
}

// AllowAI reports whether studentID may start another AI generation now.
// Redis failures allow the request. A nil Guard allows everything.
func (g *Guard) AllowAI(ctx context.Context, studentID string) bool {
	if g == nil || g.maxPerMinute <= 0 {
		return true
	}
	allowed, err := g.window.Allow(ctx, studentID, g.maxPerMinute)
	if err != nil {
		// Fail open on Redis errors to not block the student
		slog.Warn("quota: rate limiter check failed, allowing request", "error", err, "student_id", studentID)
		return true
	}
	if !allowed {
		slog.Info("quota: AI generation limit reached", "student_id", studentID, "max_per_minute", g.maxPerMinute)
	}
	return allowed
}
