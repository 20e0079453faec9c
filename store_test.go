package refcache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/refcache"
	"goa.design/refcache/access"
	"goa.design/refcache/actor"
	"goa.design/refcache/permission"
	"goa.design/refcache/rcerr"
	"goa.design/refcache/task"
)

func TestSetGetRoundTrip(t *testing.T) {
	s := refcache.New("calc")
	ctx := context.Background()

	refID, err := s.Set(ctx, "inputA", []any{1, 2, 3}, refcache.SetOptions{
		Namespace: "public",
		Actor:     actor.NewAgent(),
	})
	require.NoError(t, err)

	resp, err := s.Get(ctx, refID, refcache.GetOptions{Actor: actor.NewAgent()})
	require.NoError(t, err)
	assert.True(t, resp.IsComplete)
	assert.Equal(t, []any{1, 2, 3}, resp.Value)
}

func TestSetIsIdempotentForEqualInputs(t *testing.T) {
	s := refcache.New("calc")
	ctx := context.Background()
	opts := refcache.SetOptions{Namespace: "public", Actor: actor.NewAgent()}

	ref1, err := s.Set(ctx, map[string]any{"a": 1, "b": 2}, "v1", opts)
	require.NoError(t, err)
	ref2, err := s.Set(ctx, map[string]any{"b": 2, "a": 1}, "v2", opts)
	require.NoError(t, err)
	assert.Equal(t, ref1, ref2)

	resp, err := s.Get(ctx, ref1, refcache.GetOptions{Actor: actor.NewAgent()})
	require.NoError(t, err)
	assert.Equal(t, "v2", resp.Value)
}

func TestGetUnknownRefIsOpaque(t *testing.T) {
	s := refcache.New("calc")
	_, err := s.Get(context.Background(), "calc:deadbeefdeadbeef", refcache.GetOptions{Actor: actor.NewAgent()})
	require.Error(t, err)
	var opaque *rcerr.OpaqueReferenceError
	assert.True(t, errors.As(err, &opaque))
	assert.Equal(t, rcerr.OpaqueMessage, err.Error())
}

func TestGetDeniedIsOpaqueNotPermissionDenied(t *testing.T) {
	s := refcache.New("secrets")
	ctx := context.Background()

	policy := access.Policy{
		UserPermissions:  permission.Full,
		AgentPermissions: permission.Execute,
	}
	refID, err := s.Set(ctx, "k", 42, refcache.SetOptions{
		Namespace: "public",
		Policy:    &policy,
		Actor:     actor.NewSystem(),
	})
	require.NoError(t, err)

	_, err = s.Get(ctx, refID, refcache.GetOptions{Actor: actor.NewAgent()})
	require.Error(t, err)
	assert.Equal(t, rcerr.OpaqueMessage, err.Error())

	value, err := s.Resolve(ctx, refID, actor.NewSystem())
	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestResolveGrantsExecuteOnlyHolders(t *testing.T) {
	s := refcache.New("secrets")
	ctx := context.Background()
	policy := access.Policy{AgentPermissions: permission.Execute}
	refID, err := s.Set(ctx, "k2", "hidden", refcache.SetOptions{Namespace: "public", Policy: &policy, Actor: actor.NewSystem()})
	require.NoError(t, err)

	v, err := s.Resolve(ctx, refID, actor.NewAgent())
	require.NoError(t, err)
	assert.Equal(t, "hidden", v)
}

func TestNamespaceOwnershipIsolation(t *testing.T) {
	s := refcache.New("portfolios")
	ctx := context.Background()
	alice := actor.NewUser(actor.WithID("alice"))
	bob := actor.NewUser(actor.WithID("bob"))

	refID, err := s.Set(ctx, "positions", []any{"AAPL"}, refcache.SetOptions{
		Namespace: "user:alice:portfolios",
		Actor:     alice,
	})
	require.NoError(t, err)

	_, err = s.Get(ctx, refID, refcache.GetOptions{Actor: bob})
	require.Error(t, err)
	assert.Equal(t, rcerr.OpaqueMessage, err.Error())

	resp, err := s.Get(ctx, refID, refcache.GetOptions{Actor: alice})
	require.NoError(t, err)
	assert.True(t, resp.IsComplete)

	resp, err = s.Get(ctx, refID, refcache.GetOptions{Actor: actor.NewSystem()})
	require.NoError(t, err)
	assert.True(t, resp.IsComplete)
}

func TestPreviewWhenOverMaxSize(t *testing.T) {
	s := refcache.New("calc", refcache.WithMaxSize(10))
	ctx := context.Background()

	big := make([]any, 200)
	for i := range big {
		big[i] = i
	}
	refID, err := s.Set(ctx, "big", big, refcache.SetOptions{Namespace: "public", Actor: actor.NewAgent()})
	require.NoError(t, err)

	resp, err := s.Get(ctx, refID, refcache.GetOptions{Actor: actor.NewAgent()})
	require.NoError(t, err)
	assert.False(t, resp.IsComplete)
	assert.Equal(t, 200, resp.TotalItems)
	assert.LessOrEqual(t, resp.PreviewSize, 10)
}

func TestGetPaginatesWithExplicitPageSize(t *testing.T) {
	s := refcache.New("calc", refcache.WithMaxSize(100_000))
	ctx := context.Background()

	items := make([]any, 100)
	for i := range items {
		items[i] = i + 1
	}
	refID, err := s.Set(ctx, "fib", items, refcache.SetOptions{Namespace: "public", Actor: actor.NewAgent()})
	require.NoError(t, err)

	resp, err := s.Get(ctx, refID, refcache.GetOptions{Actor: actor.NewAgent(), Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.False(t, resp.IsComplete)
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 10, resp.TotalPages)
	assert.Equal(t, items[10:20], resp.Preview)
}

func TestDeleteThenExistsFalse(t *testing.T) {
	s := refcache.New("calc")
	ctx := context.Background()
	refID, err := s.Set(ctx, "k", "v", refcache.SetOptions{Namespace: "public", Actor: actor.NewAgent()})
	require.NoError(t, err)

	ok := s.Exists(ctx, refID, actor.NewAgent())
	assert.True(t, ok)

	deleted, err := s.Delete(ctx, refID, actor.NewUser())
	require.NoError(t, err)
	assert.True(t, deleted)

	assert.False(t, s.Exists(ctx, refID, actor.NewAgent()))
}

func TestTaskLifecycleSubmitWaitComplete(t *testing.T) {
	s := refcache.New("calc")
	ctx := context.Background()

	refID, err := s.PredictRef("public", "slow-call")
	require.NoError(t, err)

	started := make(chan struct{})
	_, err = s.SubmitTask(ctx, refID, func(ctx context.Context, report task.ProgressFunc) (any, error) {
		close(started)
		time.Sleep(20 * time.Millisecond)
		return "done", nil
	}, task.RetryPolicy{})
	require.NoError(t, err)
	<-started

	rec, ok := s.WaitTask(ctx, refID, 5*time.Millisecond)
	require.True(t, ok)
	assert.False(t, rec.Status.Terminal())

	rec, ok = s.WaitTask(ctx, refID, time.Second)
	require.True(t, ok)
	assert.Equal(t, task.Complete, rec.Status)

	_, err = s.Set(ctx, "slow-call", "done", refcache.SetOptions{Namespace: "public", Actor: actor.NewAgent()})
	require.NoError(t, err)

	resp, err := s.Get(ctx, refID, refcache.GetOptions{Actor: actor.NewAgent()})
	require.NoError(t, err)
	assert.True(t, resp.IsComplete)
	assert.Equal(t, "done", resp.Value)
}

func TestCancelTaskIdempotent(t *testing.T) {
	s := refcache.New("calc")
	ctx := context.Background()
	refID, err := s.PredictRef("public", "cancel-me")
	require.NoError(t, err)

	started := make(chan struct{})
	_, err = s.SubmitTask(ctx, refID, func(ctx context.Context, report task.ProgressFunc) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}, task.RetryPolicy{})
	require.NoError(t, err)
	<-started

	ok, err := s.CancelTask(ctx, refID, actor.NewSystem())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.CancelTask(ctx, refID, actor.NewSystem())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCancelTaskRequiresAdminRole(t *testing.T) {
	s := refcache.New("calc")
	ctx := context.Background()
	refID, err := s.PredictRef("public", "admin-gate")
	require.NoError(t, err)
	_, err = s.SubmitTask(ctx, refID, func(ctx context.Context, report task.ProgressFunc) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, task.RetryPolicy{})
	require.NoError(t, err)

	_, err = s.CancelTask(ctx, refID, actor.NewAgent())
	assert.Error(t, err)
}
