package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/studypath/studypath/internal/activity"
	"github.com/studypath/studypath/internal/api"
	"github.com/studypath/studypath/internal/auth"
	"github.com/studypath/studypath/internal/breaker"
	"github.com/studypath/studypath/internal/cache"
	"github.com/studypath/studypath/internal/clients/contentgen"
	"github.com/studypath/studypath/internal/clients/media"
	"github.com/studypath/studypath/internal/clients/source"
	"github.com/studypath/studypath/internal/config"
	"github.com/studypath/studypath/internal/dashboard"
	"github.com/studypath/studypath/internal/database"
	"github.com/studypath/studypath/internal/forecast"
	"github.com/studypath/studypath/internal/metrics"
	mw "github.com/studypath/studypath/internal/middleware"
	inats "github.com/studypath/studypath/internal/nats"
	"github.com/studypath/studypath/internal/quota"
	"github.com/studypath/studypath/internal/recommend"
	iredis "github.com/studypath/studypath/internal/redis"
	"github.com/studypath/studypath/internal/remediation"
	"github.com/studypath/studypath/internal/server"
	"github.com/studypath/studypath/internal/students"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
		slog.Error("migrating database", "error", err)
		os.Exit(1)
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS is optional; without it activity is written directly.
	var (
		natsClient *inats.Client
		publisher  activity.EventPublisher
	)
	if cfg.NATS.URL != "" {
		natsClient, err = inats.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Warn("NATS unavailable, recording activity directly", "error", err)
			natsClient = nil
		} else {
			defer natsClient.Close()
			publisher = inats.NewPublisher(natsClient.JetStream())
		}
	}

	// Cache
	backend, closeBackend, err := openCacheBackend(ctx, cfg.Cache, pool, redisClient)
	if err != nil {
		slog.Error("opening cache backend", "error", err)
		os.Exit(1)
	}
	defer closeBackend()
	store := cache.New(backend)

	// Upstream clients
	sourceSettings := breaker.DefaultSettings()
	sourceSettings.Expected = source.IsExpected
	portal := source.New(cfg.Source, breaker.New("source", sourceSettings))

	var ai remediation.ContentGenerator
	if cfg.AI.APIKey != "" {
		ai = contentgen.New(cfg.AI, breaker.New("contentgen", breaker.DefaultSettings()))
	}
	var videos remediation.VideoSearcher
	if cfg.Media.APIKey != "" {
		videos = media.New(cfg.Media, breaker.New("media", breaker.DefaultSettings()))
	}

	// Students and history
	studentSvc := students.NewService(students.NewRepository(pool))
	model := loadModel(ctx, cfg.Recommend, studentSvc)

	// Activity
	activityRepo := activity.NewRepository(pool)
	recorder := activity.NewRecorder(publisher, activityRepo)
	activityHandler := activity.NewHandler(activityRepo)
	if natsClient != nil {
		consumer := activity.NewConsumer(activityRepo, inats.NewConsumerManager(natsClient.JetStream()))
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("activity consumer stopped", "error", err)
			}
		}()
	}

	// Engines
	generator := remediation.NewGenerator(ai, videos, store,
		remediation.WithQuota(quota.NewGuard(redisClient, cfg.Quota.AIPerMinute)),
		remediation.WithContentTTL(cfg.Cache.ContentTTL),
		remediation.WithMaxVideos(cfg.Media.MaxResults),
	)
	predictor := forecast.NewPredictor(rand.New(rand.NewSource(time.Now().UnixNano())))
	dashSvc := dashboard.NewService(portal, store, studentSvc, predictor, model, generator, recorder, dashboard.Config{
		SnapshotTTL: cfg.Cache.SnapshotTTL,
		Neighbors:   cfg.Recommend.Neighbors,
		TopN:        cfg.Recommend.TopN,
	})
	dashHandler := dashboard.NewHandler(dashSvc)

	// Auth
	encryptor, err := auth.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		slog.Error("creating encryptor", "error", err)
		os.Exit(1)
	}
	sessions := auth.NewSessionStore(redisClient, encryptor, cfg.Session.TTL)
	jwtManager := auth.NewJWTManager(cfg.JWT.AccessSecret, cfg.JWT.AccessExpiry)
	authSvc := auth.NewService(jwtManager, sessions, portal, studentSvc)
	authHandler := auth.NewHandler(authSvc)

	loginLimiter := mw.NewRateLimiter(redisClient, cfg.RateLimit.LoginMax, cfg.RateLimit.LoginWindow)

	// Router
	router := api.NewRouter(api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		AuthRateLimiter:    loginLimiter.Middleware,
		HealthChecks:       healthChecks(pool, redisClient, natsClient, model),
	}, api.HandlerSet{
		Login:  authHandler.Login,
		Logout: authHandler.Logout,

		Progress:          dashHandler.Progress,
		CurrentCourses:    dashHandler.CurrentCourses,
		Predictions:       dashHandler.Predictions,
		Insights:          dashHandler.Insights,
		CourseSuggestions: dashHandler.CourseSuggestions,
		Remediation:       dashHandler.Remediation,
		Roadmap:           dashHandler.Roadmap,

		ListActivity: activityHandler.List,

		AuthMiddleware: auth.Middleware(authSvc),
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func openCacheBackend(ctx context.Context, cfg config.CacheConfig, pool *pgxpool.Pool, rdb *redis.Client) (cache.Backend, func(), error) {
	noop := func() {}
	switch cfg.Backend {
	case "redis":
		return cache.NewRedisBackend(rdb), noop, nil
	case "sqlite":
		b, err := cache.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return b, func() {
			if err := b.Close(); err != nil {
				slog.Warn("closing sqlite cache", "error", err)
			}
		}, nil
	default:
		return cache.NewPostgresBackend(pool), noop, nil
	}
}

// loadModel builds the recommender from the configured CSV, or from stored
// grade history when no CSV is set. Failure leaves recommendations
// unavailable rather than stopping the server.
func loadModel(ctx context.Context, cfg config.RecommendConfig, history *students.Service) *recommend.Model {
	var (
		scores []recommend.Score
		err    error
		origin = "grades_history"
	)
	if cfg.DatasetPath != "" {
		origin = cfg.DatasetPath
		scores, err = recommend.LoadCSVFile(cfg.DatasetPath)
	} else {
		scores, err = history.History(ctx)
	}
	if err != nil {
		slog.Warn("recommendation dataset unavailable", "source", origin, "error", err)
		metrics.RecommendModelStudents.Set(0)
		return nil
	}

	model, err := recommend.BuildModel(scores)
	if err != nil {
		slog.Warn("recommendation model not built", "source", origin, "error", err)
		metrics.RecommendModelStudents.Set(0)
		return nil
	}

	metrics.RecommendModelStudents.Set(float64(model.Students()))
	slog.Info("recommendation model loaded", "source", origin, "students", model.Students(), "courses", len(model.Utility().Courses))
	return model
}

func healthChecks(pool *pgxpool.Pool, rdb *redis.Client, natsClient *inats.Client, model *recommend.Model) []api.HealthCheck {
	checks := []api.HealthCheck{
		{Name: "database", Check: func(ctx context.Context) error { return database.HealthCheck(ctx, pool) }},
		{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		{Name: "recommendation_model", Optional: true, Check: func(context.Context) error {
			if model == nil {
				return fmt.Errorf("not loaded")
			}
			return nil
		}},
	}
	if natsClient != nil {
		checks = append(checks, api.HealthCheck{Name: "nats", Check: func(context.Context) error {
			if !natsClient.Healthy() {
				return fmt.Errorf("disconnected")
			}
			return nil
		}})
	}
	return checks
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
