// Package memorydb is an in-memory storage.Backend suitable for
// development, testing, and single-node deployments where persistence
// across restarts is not required.
package memorydb

import (
	"context"
	"strings"
	"sync"
	"time"

	"goa.design/refcache/storage"
)

// Store is an in-memory implementation of storage.Backend. It is safe
// for concurrent use. Expiry is checked lazily on read; expired entries
// are swept out opportunistically rather than by a background timer.
type Store struct {
	mu      sync.RWMutex
	entries map[string]storage.Entry
}

var _ storage.Backend = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{entries: make(map[string]storage.Entry)}
}

func (s *Store) Get(ctx context.Context, key string) (storage.Entry, bool, error) {
	select {
	case <-ctx.Done():
		return storage.Entry{}, false, ctx.Err()
	default:
	}
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return storage.Entry{}, false, nil
	}
	if entry.Expired(time.Now()) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return storage.Entry{}, false, nil
	}
	return entry, true, nil
}

func (s *Store) Set(ctx context.Context, key string, entry storage.Entry) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

func (s *Store) Clear(ctx context.Context, namespace string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if namespace == "" {
		s.entries = make(map[string]storage.Entry)
		return nil
	}
	for k, e := range s.entries {
		if e.Namespace == namespace {
			delete(s.entries, k)
		}
	}
	return nil
}

func (s *Store) Keys(ctx context.Context, namespace string) ([]string, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := time.Now()
	keys := make([]string, 0, len(s.entries))
	for k, e := range s.entries {
		if e.Expired(now) {
			continue
		}
		if namespace == "" || e.Namespace == namespace || strings.HasPrefix(e.Namespace, namespace+":") {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *Store) Close() error { return nil }
