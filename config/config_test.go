package config_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/refcache"
	"goa.design/refcache/actor"
	"goa.design/refcache/config"
)

func TestDefaultUsesTokenSizeMode(t *testing.T) {
	cfg := config.Default("tools")
	assert.Equal(t, config.Token, cfg.SizeMode)
	assert.Equal(t, config.Memory, cfg.StorageBackend)
}

func TestBuildMemoryBackendProducesWorkingStore(t *testing.T) {
	cfg := config.Default("tools")
	cfg.DefaultMaxSize = 64

	opts, err := config.Build(cfg)
	require.NoError(t, err)

	store := refcache.New(cfg.CacheName, opts...)
	refID, err := store.Set(context.Background(), "k", "v", refcache.SetOptions{Namespace: "ns"})
	require.NoError(t, err)
	assert.NotEmpty(t, refID)

	resp, err := store.Get(context.Background(), refID, refcache.GetOptions{Actor: actor.NewAgent()})
	require.NoError(t, err)
	assert.True(t, resp.IsComplete)
}

func TestBuildUnknownBackendErrors(t *testing.T) {
	cfg := config.Default("tools")
	cfg.StorageBackend = "nope"

	_, err := config.Build(cfg)
	assert.Error(t, err)
}

func TestBuildSQLiteBackend(t *testing.T) {
	cfg := config.Default("tools")
	cfg.StorageBackend = config.SQLite
	cfg.SQLitePath = t.TempDir() + "/cache.db"

	opts, err := config.Build(cfg)
	require.NoError(t, err)
	store := refcache.New(cfg.CacheName, opts...)
	require.NotNil(t, store)
}
