package cachedcallable_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/refcache"
	"goa.design/refcache/actor"
	"goa.design/refcache/cachedcallable"
	"goa.design/refcache/resolver"
	"goa.design/refcache/task"
)

func newHarness(t *testing.T) (*refcache.Store, *resolver.Resolver) {
	t.Helper()
	store := refcache.New("calc")
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	return store, resolver.New(store)
}

func TestCallCachesRepeatedInvocation(t *testing.T) {
	store, res := newHarness(t)
	calls := 0
	tool := cachedcallable.Tool(func(ctx context.Context, args map[string]any) (any, error) {
		calls++
		return args["x"], nil
	})
	c := cachedcallable.Wrap(store, res, tool, cachedcallable.Options{
		Name:      "echo",
		Namespace: "public",
	})

	resp1, err := c.Call(context.Background(), cachedcallable.CallContext{}, map[string]any{"x": 7})
	require.NoError(t, err)
	assert.True(t, resp1.IsComplete)
	assert.Equal(t, 7, resp1.Value)

	resp2, err := c.Call(context.Background(), cachedcallable.CallContext{}, map[string]any{"x": 7})
	require.NoError(t, err)
	assert.Equal(t, resp1.RefID, resp2.RefID)
	assert.Equal(t, 1, calls)
}

func TestCallResolvesReferencedArguments(t *testing.T) {
	store, res := newHarness(t)
	ctx := context.Background()
	innerRef, err := store.Set(ctx, "inputA", []any{1, 3, 2, 4}, refcache.SetOptions{
		Namespace: "public", Actor: actor.NewAgent(),
	})
	require.NoError(t, err)

	var received any
	tool := cachedcallable.Tool(func(ctx context.Context, args map[string]any) (any, error) {
		received = args["matrix"]
		return "ok", nil
	})
	c := cachedcallable.Wrap(store, res, tool, cachedcallable.Options{Name: "matrix_op", Namespace: "public"})

	_, err = c.Call(ctx, cachedcallable.CallContext{}, map[string]any{"matrix": innerRef})
	require.NoError(t, err)
	assert.Equal(t, []any{1, 3, 2, 4}, received)
}

func TestCallAsyncTimeoutThenCompletes(t *testing.T) {
	store, res := newHarness(t)
	ctx := context.Background()

	tool := cachedcallable.Tool(func(ctx context.Context, args map[string]any) (any, error) {
		time.Sleep(40 * time.Millisecond)
		return "slow-result", nil
	})
	c := cachedcallable.Wrap(store, res, tool, cachedcallable.Options{
		Name:         "slow_tool",
		Namespace:    "public",
		AsyncTimeout: 5 * time.Millisecond,
	})

	resp, err := c.Call(ctx, cachedcallable.CallContext{}, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "processing", resp.Status)
	refID := resp.RefID

	require.Eventually(t, func() bool {
		got, err := store.Get(ctx, refID, refcache.GetOptions{Actor: actor.NewAgent()})
		return err == nil && got.IsComplete
	}, time.Second, 5*time.Millisecond)
}

func TestCallWithProgressReporting(t *testing.T) {
	store, res := newHarness(t)
	ctx := context.Background()

	reportedProgress := false
	tool := cachedcallable.ToolWithProgress(func(ctx context.Context, args map[string]any, report task.ProgressFunc) (any, error) {
		if report != nil {
			report(task.Progress{Current: 1, Total: 2, Percentage: 50})
			reportedProgress = true
		}
		time.Sleep(100 * time.Millisecond)
		return "done", nil
	})
	c := cachedcallable.WrapWithProgress(store, res, tool, cachedcallable.Options{
		Name:            "progress_tool",
		Namespace:       "public",
		AsyncTimeout:    50 * time.Millisecond,
		ProgressEnabled: true,
	})

	resp, err := c.Call(ctx, cachedcallable.CallContext{}, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "processing", resp.Status)

	require.Eventually(t, func() bool {
		got, err := store.Get(ctx, resp.RefID, refcache.GetOptions{Actor: actor.NewAgent()})
		return err == nil && got.IsComplete
	}, time.Second, 5*time.Millisecond)
	assert.True(t, reportedProgress)
}

func TestDescribeMentionsNamespaceAndPolling(t *testing.T) {
	store, res := newHarness(t)
	c := cachedcallable.Wrap(store, res, cachedcallable.Tool(func(ctx context.Context, args map[string]any) (any, error) {
		return nil, nil
	}), cachedcallable.Options{Name: "t", Namespace: "public", MaxSize: 512})

	desc := c.Describe()
	assert.Contains(t, desc, "public")
	assert.Contains(t, desc, "512")
	assert.Contains(t, desc, "get_cached_result")
}
