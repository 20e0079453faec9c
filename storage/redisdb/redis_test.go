package redisdb

import (
	"context"
	"fmt"
	"testing"

	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"goa.design/refcache/storage"
	"goa.design/refcache/storage/storagetest"
)

func TestStoreConformance(t *testing.T) {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Skipf("docker not available, skipping redisdb tests: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	addr, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("failed to get container endpoint: %v", err)
	}

	storagetest.Run(t, func(t *testing.T) storage.Backend {
		s := New(Config{Addr: addr, Prefix: fmt.Sprintf("test-%s", t.Name())})
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
