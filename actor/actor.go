// Package actor models the identity used throughout access checks: a role
// tag plus optional principal and session identifiers.
package actor

import "strings"

// Role tags the kind of principal performing an operation.
type Role string

const (
	// User identifies a human operator.
	User Role = "user"
	// Agent identifies an autonomous tool-calling client.
	Agent Role = "agent"
	// System identifies trusted server-side code that bypasses ownership
	// checks (see namespace.ValidateAccess).
	System Role = "system"
)

// Actor is a typed identity used for permission checks.
type Actor struct {
	Role      Role
	ID        string
	SessionID string
}

// NewUser builds an identified or anonymous user actor. Pass options to set
// an ID and/or session.
func NewUser(opts ...Option) Actor { return newActor(User, opts...) }

// NewAgent builds an identified or anonymous agent actor.
func NewAgent(opts ...Option) Actor { return newActor(Agent, opts...) }

// NewSystem builds an identified or anonymous system actor.
func NewSystem(opts ...Option) Actor { return newActor(System, opts...) }

func newActor(role Role, opts ...Option) Actor {
	a := Actor{Role: role}
	for _, o := range opts {
		o(&a)
	}
	return a
}

// Option configures an Actor built via NewUser/NewAgent/NewSystem.
type Option func(*Actor)

// WithID sets the actor's principal identifier.
func WithID(id string) Option {
	return func(a *Actor) { a.ID = id }
}

// WithSession sets the actor's session identifier.
func WithSession(sessionID string) Option {
	return func(a *Actor) { a.SessionID = sessionID }
}

// Canonical renders the actor as "role:principal", the form used by
// Matches, policy owner fields, and allow/deny-list patterns. An anonymous
// actor's principal segment is "*".
func (a Actor) Canonical() string {
	id := a.ID
	if id == "" {
		id = "*"
	}
	return string(a.Role) + ":" + id
}

// Matches implements prefix-wildcard globbing against a pattern of the form
// "role:principal", where principal may end in "*" to match any suffix
// (e.g. "agent:claude-*" matches "agent:claude-instance-1"). A bare "*"
// principal matches any principal of the matching role.
func (a Actor) Matches(pattern string) bool {
	role, princ, ok := strings.Cut(pattern, ":")
	if !ok {
		return false
	}
	if role != string(a.Role) {
		return false
	}
	if princ == "*" || princ == "" {
		return true
	}
	if strings.HasSuffix(princ, "*") {
		return strings.HasPrefix(a.ID, strings.TrimSuffix(princ, "*"))
	}
	return princ == a.ID
}

// Canonicalize normalizes a caller-supplied role value into an Actor. It
// accepts a typed Actor unchanged, or one of the literal strings "user",
// "agent", "system" (case-insensitive) as an anonymous actor of that role.
// Any other input yields an anonymous Agent actor, matching the
// cached-callable wrapper's default actor when none is configured.
func Canonicalize(v any) Actor {
	switch t := v.(type) {
	case Actor:
		return t
	case *Actor:
		if t != nil {
			return *t
		}
	case string:
		switch strings.ToLower(t) {
		case "user":
			return NewUser()
		case "agent":
			return NewAgent()
		case "system":
			return NewSystem()
		}
	}
	return NewAgent()
}
