package size_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/refcache/size"
)

func TestByteMeasurer(t *testing.T) {
	m := size.NewByteMeasurer()
	n, err := m.Measure(map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Greater(t, n, 0)
	assert.Equal(t, "bytes", m.Unit())
}

func TestTokenMeasurerFallback(t *testing.T) {
	m := size.NewTokenMeasurer(nil)
	n, err := m.Measure("a short string")
	require.NoError(t, err)
	assert.Greater(t, n, 0)
	assert.Equal(t, "tokens", m.Unit())
}

func TestTokenMeasurerEmptyString(t *testing.T) {
	m := size.NewTokenMeasurer(nil)
	n, err := m.Measure("")
	require.NoError(t, err)
	// Quoting an empty string still yields two JSON bytes (""), so this
	// is never literally zero-length input to the tokenizer.
	assert.GreaterOrEqual(t, n, 1)
}

type fakeTokenizer struct{}

func (fakeTokenizer) Encode(text string) []int    { return make([]int, len(text)) }
func (fakeTokenizer) CountTokens(text string) int { return len(text) }
func (fakeTokenizer) ModelName() string           { return "fake" }

func TestTokenMeasurerCustomTokenizer(t *testing.T) {
	m := size.NewTokenMeasurer(fakeTokenizer{})
	n, err := m.Measure("abc")
	require.NoError(t, err)
	assert.Equal(t, len(`"abc"`), n)
}
