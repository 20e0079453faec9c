package permission_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/refcache/permission"
)

func TestSetHas(t *testing.T) {
	s := permission.Read | permission.Execute
	assert.True(t, s.Has(permission.Read))
	assert.True(t, s.Has(permission.Execute))
	assert.False(t, s.Has(permission.Write))
	assert.True(t, s.Has(permission.Read|permission.Execute))
	assert.False(t, s.Has(permission.CRUD))
}

func TestSetUnionIntersect(t *testing.T) {
	a := permission.Read | permission.Write
	b := permission.Write | permission.Delete
	assert.Equal(t, permission.Read|permission.Write|permission.Delete, a.Union(b))
	assert.Equal(t, permission.Write, a.Intersect(b))
}

func TestSetComposites(t *testing.T) {
	assert.True(t, permission.CRUD.Has(permission.Read|permission.Write|permission.Update|permission.Delete))
	assert.False(t, permission.CRUD.Has(permission.Execute))
	assert.True(t, permission.Full.Has(permission.CRUD|permission.Execute))
}

func TestSetStringRoundTrip(t *testing.T) {
	cases := []permission.Set{
		permission.None,
		permission.Read,
		permission.Read | permission.Execute,
		permission.Full,
		permission.CRUD,
	}
	for _, s := range cases {
		parsed, err := permission.Parse(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed, "round trip for %s", s)
	}
}

func TestSetJSONRoundTrip(t *testing.T) {
	type wrapper struct {
		Perms permission.Set `json:"perms"`
	}
	in := wrapper{Perms: permission.Read | permission.Delete}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out wrapper
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.Perms, out.Perms)
}

func TestParseUnknownTokenIgnored(t *testing.T) {
	s, err := permission.Parse("READ|BOGUS|WRITE")
	require.NoError(t, err)
	assert.Equal(t, permission.Read|permission.Write, s)
}

func TestSetIsEmpty(t *testing.T) {
	assert.True(t, permission.None.IsEmpty())
	assert.False(t, permission.Read.IsEmpty())
}
