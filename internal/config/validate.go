package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var validCacheBackends = map[string]bool{
	"postgres": true,
	"redis":    true,
	"sqlite":   true,
}

// Validate checks Config for production-critical problems.
// It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	// JWT secret
	if len(c.JWT.AccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 characters")
	}
	if c.JWT.AccessExpiry <= 0 {
		errs = append(errs, "JWT_ACCESS_EXPIRY must be positive")
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, "SESSION_TTL must be positive")
	}

	// Encryption key: must be exactly 64 hex chars (32 bytes)
	if c.Encryption.Key == "" {
		errs = append(errs, "ENCRYPTION_KEY is required")
	} else if len(c.Encryption.Key) != 64 {
		errs = append(errs, "ENCRYPTION_KEY must be exactly 64 hex characters (32 bytes)")
	} else if _, err := hex.DecodeString(c.Encryption.Key); err != nil {
		errs = append(errs, "ENCRYPTION_KEY must be valid hex")
	}

	// DB password
	if c.DB.Password == "" {
		errs = append(errs, "DB_PASSWORD is required")
	}

	// Port ranges
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1-65535, got %d", c.Server.Port))
	}
	if c.DB.Port < 1 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Sprintf("DB_PORT must be 1-65535, got %d", c.DB.Port))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1-65535, got %d", c.Redis.Port))
	}

	// Cache
	if !validCacheBackends[c.Cache.Backend] {
		errs = append(errs, fmt.Sprintf("CACHE_BACKEND must be one of postgres, redis, sqlite, got %q", c.Cache.Backend))
	}
	if c.Cache.SnapshotTTL <= 0 || c.Cache.ContentTTL <= 0 {
		errs = append(errs, "CACHE_SNAPSHOT_TTL and CACHE_CONTENT_TTL must be positive")
	}

	// Recommender
	if c.Recommend.Neighbors < 1 {
		errs = append(errs, fmt.Sprintf("RECOMMEND_NEIGHBORS must be at least 1, got %d", c.Recommend.Neighbors))
	}
	if c.Recommend.TopN < 1 {
		errs = append(errs, fmt.Sprintf("RECOMMEND_TOP_N must be at least 1, got %d", c.Recommend.TopN))
	}

	// Upstreams: missing credentials only degrade features
	if c.AI.APIKey == "" {
		slog.Warn("AI_API_KEY is empty, remediation content will use the fallback roadmap")
	}
	if c.Media.APIKey == "" {
		slog.Warn("MEDIA_API_KEY is empty, remediation content will have no videos")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
