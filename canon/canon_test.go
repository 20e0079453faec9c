package canon_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/refcache/canon"
)

func TestKeyStableAcrossMapOrder(t *testing.T) {
	a, err := canon.Key(map[string]any{"b": 1, "a": 2})
	require.NoError(t, err)
	b, err := canon.Key(map[string]any{"a": 2, "b": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestKeyDiffersOnValue(t *testing.T) {
	a, err := canon.Key(map[string]any{"a": 1})
	require.NoError(t, err)
	b, err := canon.Key(map[string]any{"a": 2})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOfComposesParts(t *testing.T) {
	a, err := canon.Of("tool", []any{1, 2}, map[string]any{"x": 1})
	require.NoError(t, err)
	b, err := canon.Key([]any{"tool", []any{1, 2}, map[string]any{"x": 1}})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestKeyNestedStructures(t *testing.T) {
	v := map[string]any{
		"list": []any{1, "two", map[string]any{"z": true, "a": nil}},
	}
	a, err := canon.Key(v)
	require.NoError(t, err)
	assert.Contains(t, a, `"list"`)
}
