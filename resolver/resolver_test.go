package resolver_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/refcache/actor"
	"goa.design/refcache/rcerr"
	"goa.design/refcache/resolver"
)

type fakeLookup map[string]any

func (f fakeLookup) Resolve(_ context.Context, refID string, _ actor.Actor) (any, error) {
	v, ok := f[refID]
	if !ok {
		return nil, &rcerr.NotFound{Key: refID}
	}
	return v, nil
}

func TestResolveScalarPassthrough(t *testing.T) {
	r := resolver.New(fakeLookup{})
	out, err := r.Resolve(context.Background(), 42, actor.NewAgent())
	require.NoError(t, err)
	assert.Equal(t, 42, out)
}

func TestResolveSimpleRef(t *testing.T) {
	lookup := fakeLookup{"cache:aaaaaaaa": []any{1, 2, 3}}
	r := resolver.New(lookup)
	out, err := r.Resolve(context.Background(), "cache:aaaaaaaa", actor.NewAgent())
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2, 3}, out)
}

func TestResolveNestedRef(t *testing.T) {
	lookup := fakeLookup{
		"cache:aaaaaaaa": []any{1, 2, "cache:bbbbbbbb"},
		"cache:bbbbbbbb": "leaf",
	}
	r := resolver.New(lookup)
	out, err := r.Resolve(context.Background(), map[string]any{"k": "cache:aaaaaaaa"}, actor.NewAgent())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": []any{1, 2, "leaf"}}, out)
}

func TestResolveSiblingsSharingRefIsNotACycle(t *testing.T) {
	lookup := fakeLookup{"cache:aaaaaaaa": "shared"}
	r := resolver.New(lookup)
	out, err := r.Resolve(context.Background(), []any{"cache:aaaaaaaa", "cache:aaaaaaaa"}, actor.NewAgent())
	require.NoError(t, err)
	assert.Equal(t, []any{"shared", "shared"}, out)
}

func TestResolveCycleDetected(t *testing.T) {
	lookup := fakeLookup{
		"cache:aaaaaaaa": []any{"cache:bbbbbbbb"},
		"cache:bbbbbbbb": []any{"cache:aaaaaaaa"},
	}
	r := resolver.New(lookup)
	_, err := r.Resolve(context.Background(), "cache:aaaaaaaa", actor.NewAgent())
	require.Error(t, err)
	var cycle *rcerr.CircularReferenceError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"cache:aaaaaaaa", "cache:bbbbbbbb", "cache:aaaaaaaa"}, cycle.Chain)
}

func TestResolveNotFoundIsOpaque(t *testing.T) {
	r := resolver.New(fakeLookup{})
	_, err := r.Resolve(context.Background(), "cache:0badf00d", actor.NewAgent())
	require.Error(t, err)
	var opaque *rcerr.OpaqueReferenceError
	require.ErrorAs(t, err, &opaque)
	assert.Equal(t, rcerr.OpaqueMessage, opaque.Error())
	assert.Equal(t, "cache:0badf00d", opaque.RefID)
}
