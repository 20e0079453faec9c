package access

import (
	"goa.design/refcache/actor"
	"goa.design/refcache/namespace"
	"goa.design/refcache/permission"
	"goa.design/refcache/rcerr"
)

// Check resolves the effective permission set for a, given policy and the
// parsed namespace the entry lives in, and returns a *rcerr.PermissionDenied
// if required is not a subset of the effective set. Resolution order (spec
// §4.4): deny-list, bound-session, namespace ownership, allow-list, owner,
// role default. Deny is absolute; SYSTEM bypasses namespace ownership.
func Check(a actor.Actor, required permission.Set, policy Policy, info namespace.Info) (permission.Set, error) {
	effective, err := Effective(a, policy, info)
	if err != nil {
		return permission.None, err
	}
	if !effective.Has(required) {
		return permission.None, deny(a, required, info, "insufficient permissions")
	}
	return effective, nil
}

// Effective resolves the permission set a holds under policy and info,
// without enforcing any particular requirement. Callers that need an
// "any of" test (e.g. Resolve accepting READ or EXECUTE)
// compute Effective once and test it themselves; Check is the common
// "all of required" case built on top of this.
func Effective(a actor.Actor, policy Policy, info namespace.Info) (permission.Set, error) {
	for _, pattern := range policy.Deny {
		if a.Matches(pattern) {
			return permission.None, deny(a, permission.None, info, "denylisted")
		}
	}

	if policy.BoundSession != "" && a.SessionID != policy.BoundSession {
		return permission.None, deny(a, permission.None, info, "session mismatch")
	}

	if a.Role != actor.System && !namespace.ValidateAccess(info, a) {
		return permission.None, deny(a, permission.None, info, "namespace ownership")
	}

	if len(policy.Allow) > 0 {
		matched := false
		for _, pattern := range policy.Allow {
			if a.Matches(pattern) {
				matched = true
				break
			}
		}
		if !matched {
			return permission.None, deny(a, permission.None, info, "not allowlisted")
		}
	}

	if policy.Owner != "" && a.Matches(policy.Owner) {
		return policy.OwnerPermissions, nil
	}

	return roleDefault(a, policy), nil
}

func roleDefault(a actor.Actor, policy Policy) permission.Set {
	switch a.Role {
	case actor.User:
		return policy.UserPermissions
	case actor.Agent:
		return policy.AgentPermissions
	case actor.System:
		return policy.SystemPermissions
	default:
		return permission.None
	}
}

func deny(a actor.Actor, required permission.Set, info namespace.Info, reason string) error {
	return &rcerr.PermissionDenied{
		Actor:     a.Canonical(),
		Required:  required.String(),
		Reason:    reason,
		Namespace: info.Raw,
	}
}
