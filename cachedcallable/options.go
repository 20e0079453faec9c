// Package cachedcallable wraps a tool function so it caches its result
// behind a reference identifier, resolves reference identifiers nested
// in its arguments, and optionally runs as a background task with
// polling, cancellation, retry, and progress reporting. It is the central
// cached-callable wrapper gluing the reference store, resolver, and task
// backend together.
package cachedcallable

import (
	"time"

	"goa.design/refcache"
	"goa.design/refcache/access"
	"goa.design/refcache/preview"
	"goa.design/refcache/task"
)

// Options configures a wrapped tool at decoration time.
type Options struct {
	// Name identifies the tool in cache-key derivation, logging, and
	// Describe() output. Required.
	Name string

	// Namespace is the static namespace used when NamespaceTemplate is
	// empty or the invocation carries no context variables to format it
	// with.
	Namespace string
	// NamespaceTemplate is formatted against the invocation's CallContext
	// (e.g. "user:{user_id}:portfolios") to produce a per-invocation
	// namespace. Takes precedence over Namespace when it resolves to a
	// non-empty string.
	NamespaceTemplate string
	// OwnerTemplate similarly formats a per-invocation policy Owner
	// pattern (e.g. "user:{user_id}").
	OwnerTemplate string
	// SessionScoped, when true, binds the entry's policy to the
	// invocation's session ID (access.Policy.BoundSession), isolating
	// results per session even within a shared namespace.
	SessionScoped bool

	// Policy is the access policy new entries are stored under. Defaults
	// to access.DefaultPolicy().
	Policy *access.Policy
	// TTL, if non-zero, bounds how long a stored result remains live.
	TTL time.Duration
	// MaxSize is the per-tool default max_size, the middle precedence
	// level, beaten only by a per-call override.
	MaxSize int
	// PreviewStrategy records a preview strategy for this tool. Call does
	// not pass it to the store, so this tool's responses use the store's
	// default strategy (or Paginate when a page is requested).
	PreviewStrategy preview.Strategy

	// Actor is the default actor identity used when the invocation's
	// CallContext does not supply one, canonicalized the same way
	// actor.Canonicalize accepts a typed actor.Actor or a role string.
	// Defaults to an anonymous AGENT.
	Actor any
	// ResolveRefs enables deep reference resolution of arguments before
	// cache-key derivation and tool invocation. Defaults to true; set
	// false for tools whose string parameters could accidentally look
	// like reference identifiers.
	ResolveRefs *bool

	// AsyncTimeout, when non-zero, runs the tool as a background task and
	// waits up to this duration before returning a processing response;
	// a call that finishes within the wait returns a complete response.
	// Zero runs the tool synchronously.
	AsyncTimeout time.Duration
	// AsyncResponseFormat selects the detail level of processing
	// responses. Defaults to refcache.Standard.
	AsyncResponseFormat refcache.ResponseFormat
	// Retry bounds how the background task retries a failing call.
	// Ignored when AsyncTimeout is zero: synchronous calls surface the
	// error directly to the caller instead.
	Retry task.RetryPolicy
	// ProgressEnabled allows a ToolWithProgress function to report
	// progress into the task registry, rate-limited by the task
	// backend's configured interval. Has no effect on a plain Tool,
	// which has no progress-callback parameter to inject.
	ProgressEnabled bool
}

// resolveRefs reports whether deep reference resolution is enabled,
// honoring the *bool override and defaulting to true.
func (o Options) resolveRefs() bool {
	if o.ResolveRefs == nil {
		return true
	}
	return *o.ResolveRefs
}

// effectiveMaxSize resolves max_size's three-level precedence for a
// single call: per-call override, then per-tool Options.MaxSize, then
// the store's own cache-wide default (0 here defers to it).
func (o Options) effectiveMaxSize(perCall int) int {
	if perCall > 0 {
		return perCall
	}
	return o.MaxSize
}
