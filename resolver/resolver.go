// Package resolver implements deep reference-identifier substitution:
// walking an arbitrary nested value (scalars, lists, maps), replacing
// every leaf that looks like a reference identifier with the value it
// points to, recursively, with per-branch cycle detection.
package resolver

import (
	"context"
	"fmt"

	"goa.design/refcache/actor"
	"goa.design/refcache/rcerr"
	"goa.design/refcache/refid"
	"goa.design/refcache/telemetry"
)

// Lookup fetches the value behind a reference identifier on behalf of
// actor, applying whatever permission/expiry checks the implementation
// (the reference store) enforces. It should return an error rather than
// a zero value for not-found, expired, or denied, so the resolver's
// opaque-error policy can apply uniformly.
type Lookup interface {
	Resolve(ctx context.Context, refID string, a actor.Actor) (any, error)
}

// Resolver walks nested tool-call arguments and substitutes reference
// identifiers with the values they point to.
type Resolver struct {
	lookup Lookup
	tracer telemetry.Tracer
	logger telemetry.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTracer attaches a tracer used to span each top-level Resolve call.
func WithTracer(tracer telemetry.Tracer) Option {
	return func(r *Resolver) { r.tracer = tracer }
}

// WithLogger attaches a logger for diagnostic messages.
func WithLogger(logger telemetry.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// New constructs a Resolver backed by lookup.
func New(lookup Lookup, opts ...Option) *Resolver {
	r := &Resolver{
		lookup: lookup,
		tracer: telemetry.NewNoopTracer(),
		logger: telemetry.NewNoopLogger(),
	}
	for _, o := range opts {
		if o != nil {
			o(r)
		}
	}
	return r
}

// Resolve walks value and returns a copy with every reference identifier
// leaf replaced by its resolved value, recursively. If resolving any
// identifier fails for any reason (not found, expired, denied), the
// entire call fails with a single opaque error: the source of truth is
// never disclosed via error-message differences. A cycle on a single
// branch instead returns *rcerr.CircularReferenceError with the chain
// that produced it.
func (r *Resolver) Resolve(ctx context.Context, value any, a actor.Actor) (any, error) {
	ctx, span := r.tracer.Start(ctx, "resolver.Resolve")
	defer span.End()

	out, err := r.resolveValue(ctx, value, a, nil)
	if err != nil {
		span.RecordError(err)
	}
	return out, err
}

func (r *Resolver) resolveValue(ctx context.Context, value any, a actor.Actor, chain []string) (any, error) {
	switch t := value.(type) {
	case string:
		if !refid.Looks(t) {
			return t, nil
		}
		return r.resolveRef(ctx, t, a, chain)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			resolved, err := r.resolveValue(ctx, e, a, chain)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			resolved, err := r.resolveValue(ctx, e, a, chain)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

func (r *Resolver) resolveRef(ctx context.Context, refID string, a actor.Actor, chain []string) (any, error) {
	for _, seen := range chain {
		if seen == refID {
			full := append(append([]string{}, chain...), refID)
			return nil, &rcerr.CircularReferenceError{Chain: full}
		}
	}

	value, err := r.lookup.Resolve(ctx, refID, a)
	if err != nil {
		r.logger.Debug(ctx, "resolver: reference lookup failed", "ref_id", refID, "error", err)
		return nil, rcerr.AsOpaque(refID, fmt.Errorf("resolve %s: %w", refID, err))
	}

	nextChain := make([]string, len(chain)+1)
	copy(nextChain, chain)
	nextChain[len(chain)] = refID

	return r.resolveValue(ctx, value, a, nextChain)
}
