package remediation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/studypath/studypath/internal/clients/media"
	"github.com/studypath/studypath/internal/metrics"
	"github.com/studypath/studypath/internal/progress"
)

const (
	DefaultMaxVideos     = 3
	DefaultContentTTL    = 12 * time.Hour
	DefaultWeakThreshold = 70

	weakCourseWorkers = 4

	MessageAllOnTrack = "All courses are on track. Keep going!"
	MessageNeedsWork  = "Some courses need more work to reach a better result."
)

// ContentGenerator produces free text from a prompt.
type ContentGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// VideoSearcher finds lecture videos for a query.
type VideoSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]media.Video, error)
}

// Cache is the content table of the TTL cache.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) bool
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration)
}

// Quota decides whether a student may trigger another AI generation.
type Quota interface {
	AllowAI(ctx context.Context, studentID string) bool
}

type Generator struct {
	ai        ContentGenerator
	videos    VideoSearcher
	cache     Cache
	quota     Quota
	ttl       time.Duration
	maxVideos int
}

type Option func(*Generator)

func WithQuota(q Quota) Option { return func(g *Generator) { g.quota = q } }

func WithContentTTL(ttl time.Duration) Option {
	return func(g *Generator) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

func WithMaxVideos(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxVideos = n
		}
	}
}

// NewGenerator wires the generator. Any dependency may be nil: a nil
// generator or quota-less setup still produces content, a nil searcher
// yields no videos and a nil cache disables caching.
func NewGenerator(ai ContentGenerator, videos VideoSearcher, c Cache, opts ...Option) *Generator {
	g := &Generator{
		ai:        ai,
		videos:    videos,
		cache:     c,
		ttl:       DefaultContentTTL,
		maxVideos: DefaultMaxVideos,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate builds a roadmap for a course at the given progress without
// charging any student's AI quota.
func (g *Generator) Generate(ctx context.Context, course string, progressPct int) RoadmapContent {
	return g.GenerateFor(ctx, "", course, progressPct)
}

// GenerateFor builds a roadmap on behalf of studentID. It never fails:
// any problem with the AI service yields the fixed fallback roadmap.
func (g *Generator) GenerateFor(ctx context.Context, studentID, course string, progressPct int) RoadmapContent {
	p, origin, cached := g.plan(ctx, studentID, course, progressPct)

	content := RoadmapContent{
		Roadmap: p.Roadmap,
		Resources: Resources{
			Videos:    g.searchVideos(ctx, p.SearchQueries),
			Documents: documentLinks(course),
			Exercises: exerciseLinks(course),
		},
		Origin: origin,
	}
	metrics.RemediationContentTotal.WithLabelValues(string(origin), strconv.FormatBool(cached)).Inc()
	return content
}

func (g *Generator) plan(ctx context.Context, studentID, course string, progressPct int) (plan, Origin, bool) {
	key := fmt.Sprintf("ai:roadmap:%s:%d", progress.CourseKey(course), progressPct)

	var p plan
	if g.cache != nil && g.cache.GetJSON(ctx, key, &p) && len(p.Roadmap) > 0 {
		if len(p.SearchQueries) == 0 {
			p.SearchQueries = []string{fallbackQuery(course)}
		}
		return p, OriginAI, true
	}

	fallback := plan{
		Roadmap:       fallbackRoadmap(course, progressPct),
		SearchQueries: []string{fallbackQuery(course)},
	}
	if g.ai == nil {
		return fallback, OriginFallback, false
	}
	if g.quota != nil && studentID != "" && !g.quota.AllowAI(ctx, studentID) {
		slog.Info("remediation: ai quota exhausted, using fallback", "student_id", studentID, "course", course)
		return fallback, OriginFallback, false
	}

	text, err := g.ai.Generate(ctx, buildPrompt(course, progressPct))
	if err != nil {
		slog.Warn("remediation: content generation failed, using fallback", "error", err, "course", course)
		return fallback, OriginFallback, false
	}
	p, err = decodePlan(text)
	if err != nil {
		slog.Warn("remediation: unusable generated plan, using fallback", "error", err, "course", course)
		return fallback, OriginFallback, false
	}
	if len(p.SearchQueries) == 0 {
		p.SearchQueries = []string{fallbackQuery(course)}
	}

	if g.cache != nil {
		g.cache.SetJSON(ctx, key, p, g.ttl)
	}
	return p, OriginAI, false
}

func (g *Generator) searchVideos(ctx context.Context, queries []string) []Link {
	out := []Link{}
	if g.videos == nil {
		return out
	}

	seen := make(map[string]bool)
	for _, q := range queries {
		for _, v := range g.videosFor(ctx, q) {
			if seen[v.URL] || isOffTopic(v.Title) {
				continue
			}
			seen[v.URL] = true
			out = append(out, Link{Title: v.Title, URL: v.URL})
		}
	}
	return out
}

func (g *Generator) videosFor(ctx context.Context, query string) []media.Video {
	key := fmt.Sprintf("media:%s:%d", query, g.maxVideos)

	var videos []media.Video
	if g.cache != nil && g.cache.GetJSON(ctx, key, &videos) {
		return videos
	}

	videos, err := g.videos.Search(ctx, query, g.maxVideos)
	if err != nil {
		slog.Warn("remediation: video search failed", "error", err, "query", query)
		return nil
	}
	if g.cache != nil {
		g.cache.SetJSON(ctx, key, videos, g.ttl)
	}
	return videos
}

// ForWeakCourses returns remediation content for every course whose
// progress is below threshold, in input order. A threshold <= 0 uses
// DefaultWeakThreshold.
func (g *Generator) ForWeakCourses(ctx context.Context, studentID string, records []progress.Record, threshold int) WeakCourseReport {
	if threshold <= 0 {
		threshold = DefaultWeakThreshold
	}

	var weak []progress.Record
	for _, r := range records {
		if r.Progress < threshold {
			weak = append(weak, r)
		}
	}

	report := WeakCourseReport{Message: MessageAllOnTrack, Recommendations: []CourseRemediation{}}
	if len(weak) == 0 {
		return report
	}

	report.Message = MessageNeedsWork
	report.Recommendations = make([]CourseRemediation, len(weak))

	var eg errgroup.Group
	eg.SetLimit(weakCourseWorkers)
	for i, r := range weak {
		eg.Go(func() error {
			report.Recommendations[i] = CourseRemediation{
				Course:   r.Course,
				Progress: r.Progress,
				Content:  g.GenerateFor(ctx, studentID, r.Course, r.Progress),
			}
			return nil
		})
	}
	_ = eg.Wait()
	return report
}
