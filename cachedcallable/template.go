package cachedcallable

import "strings"

// CallContext carries the invocation-time context variables a decorated
// tool's namespace/owner templates are formatted against: user id,
// session id, and an actor override, plus any tool-specific extras.
type CallContext struct {
	UserID    string
	SessionID string
	// Actor overrides Options.Actor for this call when non-nil; accepts
	// the same shapes as actor.Canonicalize (an actor.Actor, *actor.Actor,
	// or "user"/"agent"/"system").
	Actor any
	// Extra supplies additional named substitutions for custom templates
	// beyond {user_id} and {session_id}.
	Extra map[string]string
	// ResponseFormat, when non-empty, overrides the decoration-time
	// AsyncResponseFormat for this call only, via a private per-call
	// kwarg the client may pass alongside the tool's normal arguments.
	ResponseFormat string
}

// format substitutes {user_id}, {session_id}, and any cc.Extra keys into
// tmpl. An empty tmpl, or a cc carrying no context variables, yields an
// empty string, signaling the caller should fall back to the
// decoration-time static value.
func format(tmpl string, cc CallContext) string {
	if tmpl == "" {
		return ""
	}
	if cc.UserID == "" && cc.SessionID == "" && len(cc.Extra) == 0 {
		return ""
	}
	replacements := make([]string, 0, 4+2*len(cc.Extra))
	replacements = append(replacements,
		"{user_id}", cc.UserID,
		"{session_id}", cc.SessionID,
	)
	for k, v := range cc.Extra {
		replacements = append(replacements, "{"+k+"}", v)
	}
	return strings.NewReplacer(replacements...).Replace(tmpl)
}
