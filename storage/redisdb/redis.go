// Package redisdb is a network storage.Backend backed by Redis, suitable
// for multi-node deployments that need a shared cache. TTL is enforced
// natively by Redis (SET ... EX) rather than checked on read.
package redisdb

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"goa.design/refcache/storage"
)

const minTTL = time.Second

// Store is a Redis-backed storage.Backend. Keys are namespaced under
// prefix to allow several caches to share one Redis instance.
type Store struct {
	client *redis.Client
	prefix string
}

var _ storage.Backend = (*Store)(nil)

// Config configures a redisdb.Store.
type Config struct {
	// Addr is the Redis server address (host:port). Default: localhost:6379.
	Addr string
	// Password is the Redis AUTH password. Default: "" (no auth).
	Password string
	// DB is the Redis logical database number. Default: 0.
	DB int
	// Prefix namespaces every key this store writes. Default: "refcache".
	Prefix string
}

// New constructs a Store from cfg.
func New(cfg Config) *Store {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "refcache"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &Store{client: client, prefix: prefix}
}

// NewFromClient wraps an already-configured *redis.Client, e.g. one
// pointed at a cluster or sentinel topology.
func NewFromClient(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "refcache"
	}
	return &Store{client: client, prefix: prefix}
}

type record struct {
	Value     any               `json:"value"`
	Namespace string            `json:"namespace"`
	Policy    json.RawMessage   `json:"policy"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (s *Store) entryKey(key string) string {
	return fmt.Sprintf("%s:entry:%s", s.prefix, key)
}

func (s *Store) nsIndexKey(namespace string) string {
	return fmt.Sprintf("%s:ns:%s", s.prefix, namespace)
}

func (s *Store) Get(ctx context.Context, key string) (storage.Entry, bool, error) {
	raw, err := s.client.Get(ctx, s.entryKey(key)).Result()
	if err == redis.Nil {
		return storage.Entry{}, false, nil
	}
	if err != nil {
		return storage.Entry{}, false, fmt.Errorf("redisdb: get: %w", err)
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return storage.Entry{}, false, fmt.Errorf("redisdb: decode: %w", err)
	}
	entry := storage.Entry{
		Key:       key,
		Value:     rec.Value,
		Namespace: rec.Namespace,
		CreatedAt: rec.CreatedAt,
		Metadata:  rec.Metadata,
	}
	if err := json.Unmarshal(rec.Policy, &entry.Policy); err != nil {
		return storage.Entry{}, false, fmt.Errorf("redisdb: decode policy: %w", err)
	}
	return entry, true, nil
}

func (s *Store) Set(ctx context.Context, key string, entry storage.Entry) error {
	policyJSON, err := json.Marshal(entry.Policy)
	if err != nil {
		return fmt.Errorf("redisdb: encode policy: %w", err)
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	rec := record{
		Value:     entry.Value,
		Namespace: entry.Namespace,
		Policy:    policyJSON,
		CreatedAt: createdAt,
		Metadata:  entry.Metadata,
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redisdb: encode: %w", err)
	}

	var expiration time.Duration
	if entry.ExpiresAt != nil {
		expiration = time.Until(*entry.ExpiresAt)
		if expiration < minTTL {
			expiration = minTTL
		}
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.entryKey(key), raw, expiration)
	if entry.Namespace != "" {
		pipe.SAdd(ctx, s.nsIndexKey(entry.Namespace), key)
	}
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redisdb: set: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	entry, ok, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.entryKey(key))
	if ok && entry.Namespace != "" {
		pipe.SRem(ctx, s.nsIndexKey(entry.Namespace), key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redisdb: delete: %w", err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.entryKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redisdb: exists: %w", err)
	}
	return n > 0, nil
}

func (s *Store) Clear(ctx context.Context, namespace string) error {
	if namespace == "" {
		keys, err := s.scanAllKeys(ctx)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			return nil
		}
		return s.client.Del(ctx, keys...).Err()
	}
	keys, err := s.Keys(ctx, namespace)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.entryKey(k)
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, full...)
	pipe.Del(ctx, s.nsIndexKey(namespace))
	_, err = pipe.Exec(ctx)
	return err
}

// Keys lists non-expired keys in namespace. With an empty namespace it
// scans every entry key under prefix (O(N)); with a namespace it reads
// the per-namespace set index maintained by Set/Delete, pruning members
// whose underlying entry has since expired.
func (s *Store) Keys(ctx context.Context, namespace string) ([]string, error) {
	if namespace == "" {
		entryKeys, err := s.scanAllKeys(ctx)
		if err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(entryKeys))
		prefix := s.prefix + ":entry:"
		for _, ek := range entryKeys {
			keys = append(keys, strings.TrimPrefix(ek, prefix))
		}
		return keys, nil
	}

	members, err := s.client.SMembers(ctx, s.nsIndexKey(namespace)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisdb: keys: %w", err)
	}
	keys := make([]string, 0, len(members))
	for _, k := range members {
		ok, err := s.Exists(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			keys = append(keys, k)
		} else {
			s.client.SRem(ctx, s.nsIndexKey(namespace), k)
		}
	}
	return keys, nil
}

func (s *Store) scanAllKeys(ctx context.Context) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)
	pattern := s.prefix + ":entry:*"
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return nil, fmt.Errorf("redisdb: scan: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

func (s *Store) Close() error { return s.client.Close() }
