package access_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/refcache/access"
	"goa.design/refcache/actor"
	"goa.design/refcache/namespace"
	"goa.design/refcache/permission"
	"goa.design/refcache/rcerr"
)

func TestCheckRoleDefault(t *testing.T) {
	policy := access.DefaultPolicy()
	info := namespace.Parse("public")

	eff, err := access.Check(actor.NewUser(actor.WithID("alice")), permission.Read, policy, info)
	require.NoError(t, err)
	assert.True(t, eff.Has(permission.Read))

	_, err = access.Check(actor.NewAgent(), permission.Write, policy, info)
	require.Error(t, err)
	var pd *rcerr.PermissionDenied
	assert.ErrorAs(t, err, &pd)
}

func TestCheckDenyListWins(t *testing.T) {
	policy := access.DefaultPolicy()
	policy.Deny = []string{"user:mallory"}
	info := namespace.Parse("public")

	_, err := access.Check(actor.NewUser(actor.WithID("mallory")), permission.Read, policy, info)
	require.Error(t, err)
}

func TestCheckBoundSession(t *testing.T) {
	policy := access.DefaultPolicy()
	policy.BoundSession = "s1"
	info := namespace.Parse("public")

	_, err := access.Check(actor.NewUser(actor.WithID("alice"), actor.WithSession("s2")), permission.Read, policy, info)
	require.Error(t, err)

	_, err = access.Check(actor.NewUser(actor.WithID("alice"), actor.WithSession("s1")), permission.Read, policy, info)
	require.NoError(t, err)
}

func TestCheckNamespaceOwnershipSystemBypass(t *testing.T) {
	policy := access.DefaultPolicy()
	info := namespace.Parse("user:alice")

	_, err := access.Check(actor.NewUser(actor.WithID("bob")), permission.Read, policy, info)
	require.Error(t, err)

	_, err = access.Check(actor.NewSystem(), permission.Read, policy, info)
	require.NoError(t, err)
}

func TestCheckAllowList(t *testing.T) {
	policy := access.DefaultPolicy()
	policy.Allow = []string{"agent:claude-*"}
	info := namespace.Parse("public")

	_, err := access.Check(actor.NewAgent(actor.WithID("claude-1")), permission.Read, policy, info)
	require.NoError(t, err)

	_, err = access.Check(actor.NewAgent(actor.WithID("gpt-1")), permission.Read, policy, info)
	require.Error(t, err)
}

func TestCheckOwnerOverride(t *testing.T) {
	policy := access.DefaultPolicy()
	policy.AgentPermissions = permission.Execute
	policy.Owner = "agent:claude-1"
	policy.OwnerPermissions = permission.Full
	info := namespace.Parse("public")

	eff, err := access.Check(actor.NewAgent(actor.WithID("claude-1")), permission.Read, policy, info)
	require.NoError(t, err)
	assert.True(t, eff.Has(permission.Full))

	_, err = access.Check(actor.NewAgent(actor.WithID("other")), permission.Read, policy, info)
	require.Error(t, err) // agent default is EXECUTE only, no READ
}

func TestCheckExecuteWithoutRead(t *testing.T) {
	policy := access.Policy{
		UserPermissions:  permission.Full,
		AgentPermissions: permission.Execute,
	}
	info := namespace.Parse("public")

	eff, err := access.Check(actor.NewAgent(), permission.Execute, policy, info)
	require.NoError(t, err)
	assert.False(t, eff.Has(permission.Read))

	_, err = access.Check(actor.NewAgent(), permission.Read, policy, info)
	require.Error(t, err)
}
