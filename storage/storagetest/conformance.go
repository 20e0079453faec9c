// Package storagetest holds a backend-agnostic conformance suite that
// every storage.Backend implementation is expected to pass.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/refcache/access"
	"goa.design/refcache/storage"
)

// Run exercises the common contract every storage.Backend must satisfy.
// new must return a fresh, empty backend each call.
func Run(t *testing.T, newBackend func(t *testing.T) storage.Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("set and get round trip", func(t *testing.T) {
		b := newBackend(t)
		entry := storage.Entry{
			Value:     map[string]any{"hello": "world"},
			Namespace: "public",
			Policy:    access.DefaultPolicy(),
			CreatedAt: time.Now().Truncate(time.Second),
		}
		require.NoError(t, b.Set(ctx, "k1", entry))

		got, ok, err := b.Get(ctx, "k1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "public", got.Namespace)
	})

	t.Run("get missing key", func(t *testing.T) {
		b := newBackend(t)
		_, ok, err := b.Get(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set overwrites existing value", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Set(ctx, "k1", storage.Entry{Value: "v1", Namespace: "public", Policy: access.DefaultPolicy()}))
		require.NoError(t, b.Set(ctx, "k1", storage.Entry{Value: "v2", Namespace: "public", Policy: access.DefaultPolicy()}))

		got, ok, err := b.Get(ctx, "k1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "v2", got.Value)
	})

	t.Run("delete removes entry", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Set(ctx, "k1", storage.Entry{Value: "v1", Namespace: "public", Policy: access.DefaultPolicy()}))
		require.NoError(t, b.Delete(ctx, "k1"))

		_, ok, err := b.Get(ctx, "k1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete of missing key is not an error", func(t *testing.T) {
		b := newBackend(t)
		assert.NoError(t, b.Delete(ctx, "nope"))
	})

	t.Run("exists reflects presence and absence", func(t *testing.T) {
		b := newBackend(t)
		ok, err := b.Exists(ctx, "k1")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, b.Set(ctx, "k1", storage.Entry{Value: "v1", Namespace: "public", Policy: access.DefaultPolicy()}))
		ok, err = b.Exists(ctx, "k1")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("expired entry reads as absent", func(t *testing.T) {
		b := newBackend(t)
		past := time.Now().Add(-time.Hour)
		require.NoError(t, b.Set(ctx, "k1", storage.Entry{
			Value: "v1", Namespace: "public", Policy: access.DefaultPolicy(), ExpiresAt: &past,
		}))

		_, ok, err := b.Get(ctx, "k1")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = b.Exists(ctx, "k1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("keys filters by namespace", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Set(ctx, "a", storage.Entry{Value: "1", Namespace: "ns1", Policy: access.DefaultPolicy()}))
		require.NoError(t, b.Set(ctx, "b", storage.Entry{Value: "2", Namespace: "ns2", Policy: access.DefaultPolicy()}))

		keys, err := b.Keys(ctx, "ns1")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a"}, keys)

		all, err := b.Keys(ctx, "")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b"}, all)
	})

	t.Run("clear removes only the target namespace", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Set(ctx, "a", storage.Entry{Value: "1", Namespace: "ns1", Policy: access.DefaultPolicy()}))
		require.NoError(t, b.Set(ctx, "b", storage.Entry{Value: "2", Namespace: "ns2", Policy: access.DefaultPolicy()}))

		require.NoError(t, b.Clear(ctx, "ns1"))

		_, ok, err := b.Get(ctx, "a")
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = b.Get(ctx, "b")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("clear with empty namespace clears everything", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Set(ctx, "a", storage.Entry{Value: "1", Namespace: "ns1", Policy: access.DefaultPolicy()}))
		require.NoError(t, b.Set(ctx, "b", storage.Entry{Value: "2", Namespace: "ns2", Policy: access.DefaultPolicy()}))

		require.NoError(t, b.Clear(ctx, ""))

		keys, err := b.Keys(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, keys)
	})
}
