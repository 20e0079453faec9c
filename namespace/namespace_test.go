package namespace_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"goa.design/refcache/actor"
	"goa.design/refcache/namespace"
)

func TestParse(t *testing.T) {
	cases := []struct {
		raw  string
		want namespace.Info
	}{
		{"public", namespace.Info{Raw: "public", Kind: namespace.Public, IsPublic: true}},
		{"session:s1", namespace.Info{Raw: "session:s1", Kind: namespace.Session, SessionID: "s1"}},
		{"user:alice", namespace.Info{Raw: "user:alice", Kind: namespace.UserOwned, OwnerID: "alice"}},
		{"agent:claude-1", namespace.Info{Raw: "agent:claude-1", Kind: namespace.AgentOwned, OwnerID: "claude-1"}},
		{"user:alice:session:s1", namespace.Info{Raw: "user:alice:session:s1", Kind: namespace.UserSession, OwnerID: "alice", SessionID: "s1"}},
		{"org:acme", namespace.Info{Raw: "org:acme", Kind: namespace.Org, OwnerID: "acme"}},
		{"custom:widgets", namespace.Info{Raw: "custom:widgets", Kind: namespace.Custom, OwnerID: "widgets"}},
		{"whatever", namespace.Info{Raw: "whatever", Kind: namespace.Custom}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, namespace.Parse(c.raw), "parse %q", c.raw)
	}
}

func TestValidateAccessPublic(t *testing.T) {
	info := namespace.Parse("public")
	assert.True(t, namespace.ValidateAccess(info, actor.NewUser(actor.WithID("bob"))))
}

func TestValidateAccessUserOwned(t *testing.T) {
	info := namespace.Parse("user:alice")
	assert.True(t, namespace.ValidateAccess(info, actor.NewUser(actor.WithID("alice"))))
	assert.False(t, namespace.ValidateAccess(info, actor.NewUser(actor.WithID("bob"))))
	assert.True(t, namespace.ValidateAccess(info, actor.NewSystem()))
}

func TestValidateAccessSession(t *testing.T) {
	info := namespace.Parse("session:s1")
	assert.True(t, namespace.ValidateAccess(info, actor.NewAgent(actor.WithSession("s1"))))
	assert.False(t, namespace.ValidateAccess(info, actor.NewAgent(actor.WithSession("s2"))))
}

func TestValidateAccessUserSession(t *testing.T) {
	info := namespace.Parse("user:alice:session:s1")
	assert.True(t, namespace.ValidateAccess(info, actor.NewUser(actor.WithID("alice"), actor.WithSession("s1"))))
	assert.False(t, namespace.ValidateAccess(info, actor.NewUser(actor.WithID("alice"), actor.WithSession("s2"))))
	assert.False(t, namespace.ValidateAccess(info, actor.NewUser(actor.WithID("bob"), actor.WithSession("s1"))))
}

func TestValidateAccessAgentOwned(t *testing.T) {
	info := namespace.Parse("agent:claude-1")
	assert.True(t, namespace.ValidateAccess(info, actor.NewAgent(actor.WithID("claude-1"))))
	assert.False(t, namespace.ValidateAccess(info, actor.NewAgent(actor.WithID("claude-2"))))
	assert.True(t, namespace.ValidateAccess(info, actor.NewSystem()))
}

func TestValidateAccessOrgAndCustomFallThrough(t *testing.T) {
	// No implicit ownership: validation never rejects on namespace alone.
	assert.True(t, namespace.ValidateAccess(namespace.Parse("org:acme"), actor.NewUser(actor.WithID("bob"))))
	assert.True(t, namespace.ValidateAccess(namespace.Parse("custom:widgets"), actor.NewAgent()))
}
