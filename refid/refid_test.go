package refid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"goa.design/refcache/refid"
)

func TestMintIdempotent(t *testing.T) {
	a := refid.Mint("calc", "public", `["a",1]`)
	b := refid.Mint("calc", "public", `["a",1]`)
	assert.Equal(t, a, b)
	assert.True(t, refid.Looks(a))
}

func TestMintDiffersByNamespaceOrKey(t *testing.T) {
	a := refid.Mint("calc", "public", `["a",1]`)
	b := refid.Mint("calc", "user:alice", `["a",1]`)
	c := refid.Mint("calc", "public", `["a",2]`)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestLooks(t *testing.T) {
	cases := map[string]bool{
		"calc:abcdef1234567890": true,
		"calc:ABCDEF12":         false, // uppercase hex not allowed
		"calc:1234567":          false, // fewer than 8 hex chars
		"1calc:12345678":        false, // name must start with a letter
		"calc:":                 false,
		"calc":                  false,
	}
	for s, want := range cases {
		assert.Equal(t, want, refid.Looks(s), "Looks(%q)", s)
	}
}

func TestSplit(t *testing.T) {
	name, digest, ok := refid.Split("calc:1234567890abcdef")
	assert.True(t, ok)
	assert.Equal(t, "calc", name)
	assert.Equal(t, "1234567890abcdef", digest)

	_, _, ok = refid.Split("not-a-ref")
	assert.False(t, ok)
}
