// Package storage defines the pluggable backend interface entries are
// persisted through, and the Entry record every backend stores and
// retrieves verbatim. Concrete backends live in the memorydb, sqlitedb,
// redisdb, and mongodb subpackages.
package storage

import (
	"context"
	"time"

	"goa.design/refcache/access"
)

// Entry is the unit of storage: a cached value plus the namespace and
// access policy it was created under, and its lifecycle timestamps.
// Backends never interpret Value, Namespace, or Policy — they persist
// and return them opaquely.
type Entry struct {
	Key       string            `json:"key"`
	Value     any               `json:"value"`
	Namespace string            `json:"namespace"`
	Policy    access.Policy     `json:"policy"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Expired reports whether e has a set expiry that is in the past relative
// to now.
func (e Entry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// Backend is the storage contract every cache backend implements. All
// methods are safe for concurrent use. Implementations must treat a
// missing or expired key identically: Get/Exists report not-found,
// never distinguish expiry from absence to the caller.
type Backend interface {
	// Get returns the entry stored under key, or ok=false if absent or
	// expired.
	Get(ctx context.Context, key string) (entry Entry, ok bool, err error)
	// Set stores entry under key, replacing any existing value.
	Set(ctx context.Context, key string, entry Entry) error
	// Delete removes key. It is not an error if key does not exist.
	Delete(ctx context.Context, key string) error
	// Exists reports whether key is present and unexpired, without
	// deserializing the stored value.
	Exists(ctx context.Context, key string) (bool, error)
	// Clear removes every entry in namespace. An empty namespace clears
	// every entry in the backend.
	Clear(ctx context.Context, namespace string) error
	// Keys lists every non-expired key in namespace. An empty namespace
	// lists every key in the backend.
	Keys(ctx context.Context, namespace string) ([]string, error)
	// Close releases any resources (connections, file handles) held by
	// the backend.
	Close() error
}
