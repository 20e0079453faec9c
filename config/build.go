package config

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"goa.design/refcache"
	"goa.design/refcache/size"
	"goa.design/refcache/storage"
	"goa.design/refcache/storage/memorydb"
	"goa.design/refcache/storage/mongodb"
	"goa.design/refcache/storage/redisdb"
	"goa.design/refcache/storage/sqlitedb"
)

// Build turns a loaded Config into the refcache.Options that reproduce
// it, constructing whichever storage.Backend cfg.StorageBackend names.
// The returned options are meant to be passed straight to refcache.New:
//
//	cfg := config.FromEnv("tools")
//	opts, err := config.Build(cfg)
//	store := refcache.New(cfg.CacheName, opts...)
func Build(cfg Config) ([]refcache.Option, error) {
	backend, err := buildBackend(cfg)
	if err != nil {
		return nil, err
	}

	opts := []refcache.Option{
		refcache.WithBackend(backend),
		refcache.WithMeasurer(buildMeasurer(cfg)),
	}
	if cfg.PreviewStrategy != "" {
		opts = append(opts, refcache.WithPreviewStrategy(cfg.PreviewStrategy))
	}
	if cfg.DefaultMaxSize > 0 {
		opts = append(opts, refcache.WithMaxSize(cfg.DefaultMaxSize))
	}
	if cfg.CleanupInterval > 0 {
		opts = append(opts, refcache.WithCleanup(cfg.CleanupInterval, cfg.CleanupRetention))
	}
	return opts, nil
}

func buildBackend(cfg Config) (storage.Backend, error) {
	switch cfg.StorageBackend {
	case "", Memory:
		return memorydb.New(), nil
	case SQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = SQLitePath()
		}
		return sqlitedb.Open(path)
	case Redis:
		rc := parseRedisURL(cfg.RedisURL)
		rc.Prefix = cfg.CacheName
		return redisdb.New(rc), nil
	case MongoDB:
		return mongodb.New(context.Background(), mongodb.Config{URI: mongoURI(cfg), Database: cfg.MongoDatabase})
	default:
		return nil, fmt.Errorf("config: unknown storage backend %q", cfg.StorageBackend)
	}
}

func buildMeasurer(cfg Config) size.Measurer {
	if cfg.SizeMode == Byte {
		return size.NewByteMeasurer()
	}
	return size.NewTokenMeasurer(nil)
}

// parseRedisURL turns a redis://[:password@]host:port/db URL (as
// produced by RedisURL) into a redisdb.Config. An empty or unparseable
// raw falls back to RedisURL's own environment resolution, then to
// redisdb.New's built-in localhost:6379 default.
func parseRedisURL(raw string) redisdb.Config {
	if raw == "" {
		raw = RedisURL()
	}
	if raw == "" {
		return redisdb.Config{}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return redisdb.Config{}
	}
	cfg := redisdb.Config{Addr: u.Host}
	if pw, ok := u.User.Password(); ok {
		cfg.Password = pw
	}
	if db := strings.TrimPrefix(u.Path, "/"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			cfg.DB = n
		}
	}
	return cfg
}

func mongoURI(cfg Config) string {
	if cfg.MongoURI != "" {
		return cfg.MongoURI
	}
	return MongoURI()
}

// MongoURI resolves the mongodb backend's connection string: MONGO_URI,
// falling back to "" so mongodb.New applies its own localhost default.
func MongoURI() string {
	return envOr("MONGO_URI", "")
}
