// Package namespace parses and validates the hierarchical namespace strings
// that partition reference store entries and imply ownership rules.
package namespace

import (
	"strings"

	"goa.design/refcache/actor"
)

// Kind classifies a parsed namespace.
type Kind string

const (
	// Public namespaces are accessible to every actor.
	Public Kind = "public"
	// Session namespaces are scoped to a session ID, any role.
	Session Kind = "session"
	// UserOwned namespaces are scoped to a user principal.
	UserOwned Kind = "user"
	// AgentOwned namespaces are scoped to an agent principal.
	AgentOwned Kind = "agent"
	// UserSession namespaces combine a user and a session scope.
	UserSession Kind = "user_session"
	// Org namespaces carry no implicit ownership; ACLs decide access.
	Org Kind = "org"
	// Custom namespaces carry no implicit ownership; ACLs decide access.
	Custom Kind = "custom"
)

// Info is the parsed form of a namespace string.
type Info struct {
	Raw       string
	Kind      Kind
	OwnerID   string
	SessionID string
	IsPublic  bool
}

// Parse interprets raw according to the recognized forms: "public",
// "session:<id>", "user:<id>", "agent:<id>", "user:<uid>:session:<sid>",
// "org:<id>", and free-form "custom:<name>". Further segments after
// "session:<id>", "user:<id>", or "agent:<id>" (e.g. "user:alice:portfolios")
// name a sub-namespace owned by the same id. Any string that does not match
// a recognized prefix is treated as custom in its entirety.
func Parse(raw string) Info {
	if raw == "public" {
		return Info{Raw: raw, Kind: Public, IsPublic: true}
	}

	segs := strings.Split(raw, ":")
	switch {
	case len(segs) == 4 && segs[0] == "user" && segs[2] == "session":
		return Info{Raw: raw, Kind: UserSession, OwnerID: segs[1], SessionID: segs[3]}
	case len(segs) >= 2 && segs[0] == "session":
		return Info{Raw: raw, Kind: Session, SessionID: segs[1]}
	case len(segs) >= 2 && segs[0] == "user":
		return Info{Raw: raw, Kind: UserOwned, OwnerID: segs[1]}
	case len(segs) >= 2 && segs[0] == "agent":
		return Info{Raw: raw, Kind: AgentOwned, OwnerID: segs[1]}
	case len(segs) >= 2 && segs[0] == "org":
		return Info{Raw: raw, Kind: Org, OwnerID: strings.Join(segs[1:], ":")}
	case len(segs) >= 2 && segs[0] == "custom":
		return Info{Raw: raw, Kind: Custom, OwnerID: strings.Join(segs[1:], ":")}
	default:
		return Info{Raw: raw, Kind: Custom}
	}
}

// ValidateAccess applies the namespace's ownership rules. It never
// consults access-policy ACLs; callers combine this with allow/deny-list
// and owner checks (see the access package) to get the full decision.
func ValidateAccess(info Info, a actor.Actor) bool {
	switch info.Kind {
	case Public:
		return true
	case UserOwned:
		return (a.Role == actor.User && a.ID == info.OwnerID) || a.Role == actor.System
	case Session:
		return a.SessionID == info.SessionID
	case UserSession:
		return ((a.Role == actor.User && a.ID == info.OwnerID) || a.Role == actor.System) &&
			a.SessionID == info.SessionID
	case AgentOwned:
		return (a.Role == actor.Agent && a.ID == info.OwnerID) || a.Role == actor.System
	case Org, Custom:
		// No implicit ownership: the namespace check never rejects on its
		// own. Access is fully governed by the policy's ACLs (see the
		// access package), which run after this check.
		return true
	default:
		return false
	}
}
