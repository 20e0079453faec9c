// Package access combines permission flags, actor identity, and namespace
// ownership into the effective-permission checker used by the reference
// store.
package access

import "goa.design/refcache/permission"

// Policy is a per-entry access control record. All fields besides the
// default user/agent/system permissions are optional; an absent field
// (nil slice/pointer, zero string) means "no override". Policies are
// value-equal and JSON-serializable.
type Policy struct {
	// UserPermissions is the baseline grant for USER-role actors when no
	// owner/allow/deny rule applies.
	UserPermissions permission.Set `json:"user_permissions"`
	// AgentPermissions is the baseline grant for AGENT-role actors.
	AgentPermissions permission.Set `json:"agent_permissions"`
	// SystemPermissions is the baseline grant for SYSTEM-role actors.
	SystemPermissions permission.Set `json:"system_permissions"`

	// Owner is the canonical actor pattern ("role:principal") granted
	// OwnerPermissions. Empty means no owner override.
	Owner string `json:"owner,omitempty"`
	// OwnerPermissions is granted to the actor matching Owner.
	OwnerPermissions permission.Set `json:"owner_permissions,omitempty"`

	// Allow, when non-empty, restricts access to actors matching at least
	// one pattern; matching actors receive the role-default permissions
	// (unless Owner also matches, which wins — see Check).
	Allow []string `json:"allow,omitempty"`
	// Deny, when non-empty, unconditionally blocks any matching actor,
	// taking precedence over every other rule.
	Deny []string `json:"deny,omitempty"`

	// BoundSession, when non-empty, restricts access to actors whose
	// SessionID equals this value, regardless of role or ownership.
	BoundSession string `json:"bound_session,omitempty"`
}

// DefaultPolicy returns a policy granting CRUD to users, READ and EXECUTE
// to agents, and FULL to system actors — a reasonable default for entries
// created without an explicit policy.
func DefaultPolicy() Policy {
	return Policy{
		UserPermissions:   permission.CRUD,
		AgentPermissions:  permission.Execute | permission.Read,
		SystemPermissions: permission.Full,
	}
}
