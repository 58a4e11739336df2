package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server     ServerConfig
	DB         DBConfig
	Redis      RedisConfig
	NATS       NATSConfig
	JWT        JWTConfig
	Session    SessionConfig
	Encryption EncryptionConfig
	Source     SourceConfig
	AI         AIConfig
	Media      MediaConfig
	Cache      CacheConfig
	Recommend  RecommendConfig
	Quota      QuotaConfig
	RateLimit  RateLimitConfig
	CORS       CORSConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	MaxConns       int32
	MigrationsPath string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NATSConfig is optional; an empty URL disables event publishing.
type NATSConfig struct {
	URL string
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
}

type SessionConfig struct {
	TTL time.Duration
}

type EncryptionConfig struct {
	Key string
}

// SourceConfig points at the university student portal.
type SourceConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	SkipVerify   bool
}

// AIConfig configures an OpenAI-compatible chat completions endpoint.
type AIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type MediaConfig struct {
	BaseURL    string
	APIKey     string
	MaxResults int
	RatePerSec float64
	Timeout    time.Duration
}

type CacheConfig struct {
	Backend     string // postgres | redis | sqlite
	SQLitePath  string
	SnapshotTTL time.Duration
	ContentTTL  time.Duration
}

type RecommendConfig struct {
	DatasetPath string
	Neighbors   int
	TopN        int
}

type QuotaConfig struct {
	AIPerMinute int
}

type RateLimitConfig struct {
	LoginMax    int
	LoginWindow int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	return fromKoanf(k)
}

func fromKoanf(k *koanf.Koanf) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:           k.String("db.host"),
			Port:           k.Int("db.port"),
			User:           k.String("db.user"),
			Password:       k.String("db.password"),
			Name:           k.String("db.name"),
			SSLMode:        k.String("db.sslmode"),
			MaxConns:       int32(k.Int("db.max.conns")),
			MigrationsPath: k.String("db.migrations.path"),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		JWT: JWTConfig{
			AccessSecret: k.String("jwt.access.secret"),
		},
		Encryption: EncryptionConfig{
			Key: k.String("encryption.key"),
		},
		Source: SourceConfig{
			BaseURL:      k.String("source.base.url"),
			ClientID:     k.String("source.client.id"),
			ClientSecret: k.String("source.client.secret"),
			SkipVerify:   k.Bool("source.skip.verify"),
		},
		AI: AIConfig{
			BaseURL: k.String("ai.base.url"),
			APIKey:  k.String("ai.api.key"),
			Model:   k.String("ai.model"),
		},
		Media: MediaConfig{
			BaseURL:    k.String("media.base.url"),
			APIKey:     k.String("media.api.key"),
			MaxResults: k.Int("media.max.results"),
			RatePerSec: k.Float64("media.rate.per.sec"),
		},
		Cache: CacheConfig{
			Backend:    k.String("cache.backend"),
			SQLitePath: k.String("cache.sqlite.path"),
		},
		Recommend: RecommendConfig{
			DatasetPath: k.String("recommend.dataset.path"),
			Neighbors:   k.Int("recommend.neighbors"),
			TopN:        k.Int("recommend.top.n"),
		},
		Quota: QuotaConfig{
			AIPerMinute: k.Int("quota.ai.per.minute"),
		},
		RateLimit: RateLimitConfig{
			LoginMax:    k.Int("ratelimit.login.max"),
			LoginWindow: k.Int("ratelimit.login.window"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	if origins := k.String("cors.allowed.origins"); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORS.AllowedOrigins = append(cfg.CORS.AllowedOrigins, o)
			}
		}
	}

	applyDefaults(cfg)

	// Parse durations
	durations := []struct {
		key      string
		fallback string
		dst      *time.Duration
	}{
		{"jwt.access.expiry", "12h", &cfg.JWT.AccessExpiry},
		{"session.ttl", "12h", &cfg.Session.TTL},
		{"source.timeout", "20s", &cfg.Source.Timeout},
		{"ai.timeout", "60s", &cfg.AI.Timeout},
		{"media.timeout", "10s", &cfg.Media.Timeout},
		{"cache.snapshot.ttl", "1h", &cfg.Cache.SnapshotTTL},
		{"cache.content.ttl", "12h", &cfg.Cache.ContentTTL},
	}
	for _, d := range durations {
		raw := k.String(d.key)
		if raw == "" {
			raw = d.fallback
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "studypath"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "studypath"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.DB.MigrationsPath == "" {
		cfg.DB.MigrationsPath = "migrations"
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Source.BaseURL == "" {
		cfg.Source.BaseURL = "https://sinhvien1.tlu.edu.vn/education"
	}
	if cfg.Source.ClientID == "" {
		cfg.Source.ClientID = "education_client"
	}
	if cfg.Source.ClientSecret == "" {
		cfg.Source.ClientSecret = "password"
	}
	if cfg.AI.BaseURL == "" {
		cfg.AI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gpt-4o-mini"
	}
	if cfg.Media.BaseURL == "" {
		cfg.Media.BaseURL = "https://www.googleapis.com/youtube/v3"
	}
	if cfg.Media.MaxResults == 0 {
		cfg.Media.MaxResults = 3
	}
	if cfg.Media.RatePerSec == 0 {
		cfg.Media.RatePerSec = 5
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "postgres"
	}
	if cfg.Cache.SQLitePath == "" {
		cfg.Cache.SQLitePath = "data/cache.db"
	}
	if cfg.Recommend.Neighbors == 0 {
		cfg.Recommend.Neighbors = 5
	}
	if cfg.Recommend.TopN == 0 {
		cfg.Recommend.TopN = 5
	}
	if cfg.Quota.AIPerMinute == 0 {
		cfg.Quota.AIPerMinute = 10
	}
	if cfg.RateLimit.LoginMax == 0 {
		cfg.RateLimit.LoginMax = 10
	}
	if cfg.RateLimit.LoginWindow == 0 {
		cfg.RateLimit.LoginWindow = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "debug"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
