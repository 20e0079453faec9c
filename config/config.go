// Package config loads a refcache.Store's construction settings from a
// YAML file or environment variables, following the env-var-with-default
// idiom used by the registry command (cache name, size mode, preview
// defaults, TTL, cleanup schedule, and storage backend selection).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"goa.design/refcache/preview"
)

// SizeMode selects how entry size is measured.
type SizeMode string

const (
	Token SizeMode = "TOKEN"
	Byte  SizeMode = "BYTE"
)

// Backend names which storage.Backend a Config selects.
type Backend string

const (
	Memory  Backend = "memory"
	SQLite  Backend = "sqlite"
	Redis   Backend = "redis"
	MongoDB Backend = "mongodb"
)

// Config holds everything needed to construct a refcache.Store, loaded
// from YAML or environment variables.
type Config struct {
	// CacheName is the prefix minted into every reference identifier.
	CacheName string `yaml:"cache_name"`
	// SizeMode selects token- or byte-based size measurement.
	SizeMode SizeMode `yaml:"size_mode"`
	// DefaultMaxSize is the cache-wide preview/value size budget, the
	// lowest-precedence level of the three-level max_size override chain.
	DefaultMaxSize int `yaml:"default_max_size"`
	// DefaultTTL is read from YAML and the environment. Build does not pass
	// it to the Store, so a Set call without its own TTL stores an entry
	// that never expires, whatever this value is.
	DefaultTTL time.Duration `yaml:"default_ttl"`
	// PreviewStrategy is the store's default preview.Strategy.
	PreviewStrategy preview.Strategy `yaml:"preview_strategy"`

	// CleanupInterval and CleanupRetention configure the task registry's
	// periodic sweep. Neither has a single canonical default; both are
	// left to the deployment.
	CleanupInterval  time.Duration `yaml:"cleanup_interval"`
	CleanupRetention time.Duration `yaml:"cleanup_retention"`

	// StorageBackend selects which storage.Backend New should construct.
	StorageBackend Backend `yaml:"storage_backend"`
	// SQLitePath is the embedded-DB backend's file path, resolved when
	// left empty: explicit value here → MCP_REFCACHE_DB_PATH →
	// $XDG_CACHE_HOME/mcp-refcache/cache.db → $HOME/.cache/....
	SQLitePath string `yaml:"sqlite_path"`
	// RedisURL is the network backend's connection URL, resolved when
	// left empty: explicit value here → REDIS_URL →
	// REDIS_HOST/REDIS_PORT/REDIS_DB/REDIS_PASSWORD/REDIS_SSL.
	RedisURL string `yaml:"redis_url"`
	// MongoURI is the mongodb backend's connection string, resolved when
	// left empty: explicit value here → MONGO_URI →
	// mongodb://localhost:27017.
	MongoURI string `yaml:"mongo_uri"`
	// MongoDatabase names the mongodb backend's database. Defaults to
	// "refcache" when left empty.
	MongoDatabase string `yaml:"mongo_database"`
}

// Default returns the configuration New(cacheName) would use with no
// options: an in-memory token-measured store (the built-in approximate
// tokenizer) with an 8 KiB default max_size, Sample previews, and no
// automatic cleanup loop.
func Default(cacheName string) Config {
	return Config{
		CacheName:       cacheName,
		SizeMode:        Token,
		DefaultMaxSize:  8192,
		PreviewStrategy: preview.Sample,
		StorageBackend:  Memory,
	}
}

// Load reads path as YAML into a Config seeded with Default(cacheName),
// so a partial file only overrides the fields it sets.
func Load(path, cacheName string) (Config, error) {
	cfg := Default(cacheName)
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables, seeded with
// Default(envOr("MCP_REFCACHE_NAME", cacheName)).
func FromEnv(cacheName string) Config {
	cfg := Default(envOr("MCP_REFCACHE_NAME", cacheName))
	cfg.SizeMode = SizeMode(envOr("MCP_REFCACHE_SIZE_MODE", string(cfg.SizeMode)))
	cfg.DefaultMaxSize = envIntOr("MCP_REFCACHE_MAX_SIZE", cfg.DefaultMaxSize)
	cfg.DefaultTTL = envDurationOr("MCP_REFCACHE_DEFAULT_TTL", cfg.DefaultTTL)
	cfg.CleanupInterval = envDurationOr("MCP_REFCACHE_CLEANUP_INTERVAL", cfg.CleanupInterval)
	cfg.CleanupRetention = envDurationOr("MCP_REFCACHE_CLEANUP_RETENTION", cfg.CleanupRetention)
	cfg.StorageBackend = Backend(envOr("MCP_REFCACHE_BACKEND", string(cfg.StorageBackend)))
	cfg.SQLitePath = SQLitePath()
	cfg.RedisURL = RedisURL()
	cfg.MongoURI = envOr("MONGO_URI", "")
	cfg.MongoDatabase = envOr("MONGO_DATABASE", "")
	return cfg
}

// SQLitePath resolves the embedded-DB file path in order:
// MCP_REFCACHE_DB_PATH, then $XDG_CACHE_HOME/mcp-refcache/cache.db, then
// $HOME/.cache/mcp-refcache/cache.db.
func SQLitePath() string {
	if v := os.Getenv("MCP_REFCACHE_DB_PATH"); v != "" {
		return v
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return xdg + "/mcp-refcache/cache.db"
	}
	return os.Getenv("HOME") + "/.cache/mcp-refcache/cache.db"
}

// RedisURL resolves the network backend's connection URL in order:
// REDIS_URL, then a URL assembled from
// REDIS_HOST/REDIS_PORT/REDIS_DB/REDIS_PASSWORD/REDIS_SSL. Returns "" if
// none of those are set, signaling the caller should fall back to its
// own default address.
func RedisURL() string {
	if v := os.Getenv("REDIS_URL"); v != "" {
		return v
	}
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		return ""
	}
	port := envOr("REDIS_PORT", "6379")
	db := envOr("REDIS_DB", "0")
	scheme := "redis"
	if envOr("REDIS_SSL", "false") == "true" {
		scheme = "rediss"
	}
	auth := ""
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		auth = ":" + pw + "@"
	}
	return fmt.Sprintf("%s://%s%s:%s/%s", scheme, auth, host, port, db)
}

// envOr returns the environment variable value or a default.
func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// envIntOr returns the environment variable as int or a default.
func envIntOr(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

// envDurationOr returns the environment variable as duration or a default.
func envDurationOr(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
