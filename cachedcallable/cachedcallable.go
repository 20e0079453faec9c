package cachedcallable

import (
	"context"
	"fmt"

	"goa.design/refcache"
	"goa.design/refcache/access"
	"goa.design/refcache/actor"
	"goa.design/refcache/rcerr"
	"goa.design/refcache/resolver"
	"goa.design/refcache/task"
)

// Tool is a cacheable tool function taking named arguments and returning
// an arbitrary serializable result.
type Tool func(ctx context.Context, args map[string]any) (any, error)

// ToolWithProgress is a Tool that additionally accepts a progress
// callback. Go has no runtime introspection of a closure's declared
// parameters, so where a dynamic language would inspect the wrapped
// callable for a progress_callback parameter, this library asks the
// caller to choose the type up front: wrap with WrapWithProgress instead
// of Wrap to opt in. report is nil whenever Options.ProgressEnabled is
// false, so the tool body can treat a nil check as "should I bother
// computing progress".
type ToolWithProgress func(ctx context.Context, args map[string]any, report task.ProgressFunc) (any, error)

// Cached wraps a Tool or ToolWithProgress with caching, deep reference
// resolution, and async-timeout execution.
type Cached struct {
	store    *refcache.Store
	resolver *resolver.Resolver
	opts     Options

	tool         Tool
	progressTool ToolWithProgress
	hasProgress  bool
}

// Wrap decorates tool with caching, deep reference resolution, and
// (when opts.AsyncTimeout is set) background-task execution.
func Wrap(store *refcache.Store, res *resolver.Resolver, tool Tool, opts Options) *Cached {
	return &Cached{store: store, resolver: res, tool: tool, opts: opts}
}

// WrapWithProgress is Wrap for a tool that wants to report progress into
// the task registry when opts.ProgressEnabled is set. Progress reporting
// has no effect unless opts.AsyncTimeout is also set, since a synchronous
// call has nowhere to poll progress from.
func WrapWithProgress(store *refcache.Store, res *resolver.Resolver, tool ToolWithProgress, opts Options) *Cached {
	return &Cached{store: store, resolver: res, progressTool: tool, opts: opts, hasProgress: true}
}

// Call runs the wrapped tool for a single invocation, in order: context
// substitution, deep resolution, cache-key derivation, cache lookup,
// execution (sync or async-timeout), and response building. cc supplies
// the invocation's context variables (user/session id, actor override);
// pass the zero value for tools with no dynamic context.
func (c *Cached) Call(ctx context.Context, cc CallContext, args map[string]any) (refcache.Response, error) {
	ns := format(c.opts.NamespaceTemplate, cc)
	if ns == "" {
		ns = c.opts.Namespace
	}
	owner := format(c.opts.OwnerTemplate, cc)

	a := actor.Canonicalize(c.opts.Actor)
	if cc.Actor != nil {
		a = actor.Canonicalize(cc.Actor)
	}

	respFormat := c.opts.AsyncResponseFormat
	if cc.ResponseFormat != "" {
		respFormat = refcache.ResponseFormat(cc.ResponseFormat)
	}

	resolvedArgs := args
	if c.opts.resolveRefs() {
		resolved, err := c.resolver.Resolve(ctx, map[string]any(args), a)
		if err != nil {
			return refcache.Response{}, err
		}
		m, ok := resolved.(map[string]any)
		if !ok {
			return refcache.Response{}, &rcerr.InvalidArgument{Message: "cachedcallable: resolved arguments are not a map"}
		}
		resolvedArgs = m
	}

	keyParts := []any{c.opts.Name, resolvedArgs}
	refID, err := c.store.PredictRef(ns, keyParts)
	if err != nil {
		return refcache.Response{}, err
	}

	getOpts := refcache.GetOptions{Actor: a, Format: respFormat, MaxSize: c.opts.MaxSize}

	if resp, err := c.store.Get(ctx, refID, getOpts); err == nil {
		return resp, nil
	} else if !rcerr.IsNotFound(err) {
		return refcache.Response{}, err
	}

	policy := c.buildPolicy(owner, cc)
	setOpts := refcache.SetOptions{Namespace: ns, Policy: &policy, TTL: c.opts.TTL, Actor: a}

	if c.opts.AsyncTimeout <= 0 {
		result, err := c.invoke(ctx, resolvedArgs, nil)
		if err != nil {
			return refcache.Response{}, err
		}
		if _, err := c.store.Set(ctx, keyParts, result, setOpts); err != nil {
			return refcache.Response{}, err
		}
		return c.store.Get(ctx, refID, getOpts)
	}

	fn := func(taskCtx context.Context, report task.ProgressFunc) (any, error) {
		result, err := c.invoke(taskCtx, resolvedArgs, report)
		if err != nil {
			return nil, err
		}
		if _, err := c.store.Set(context.Background(), keyParts, result, setOpts); err != nil {
			return nil, err
		}
		return result, nil
	}
	if _, err := c.store.SubmitTask(ctx, refID, fn, c.opts.Retry); err != nil {
		return refcache.Response{}, err
	}
	c.store.WaitTask(ctx, refID, c.opts.AsyncTimeout)
	return c.store.Get(ctx, refID, getOpts)
}

func (c *Cached) invoke(ctx context.Context, args map[string]any, report task.ProgressFunc) (any, error) {
	if c.hasProgress {
		if !c.opts.ProgressEnabled {
			report = nil
		}
		return c.progressTool(ctx, args, report)
	}
	return c.tool(ctx, args)
}

func (c *Cached) buildPolicy(owner string, cc CallContext) access.Policy {
	policy := access.DefaultPolicy()
	if c.opts.Policy != nil {
		policy = *c.opts.Policy
	}
	if owner != "" {
		policy.Owner = owner
	}
	if c.opts.SessionScoped && cc.SessionID != "" {
		policy.BoundSession = cc.SessionID
	}
	return policy
}

// Describe renders the cache-behavior note appended to a tool's
// human-readable documentation at decoration time: namespace, effective
// max_size, whether arguments are resolved, and a pointer to the polling
// operation. Go has no docstring to mutate in
// place, so a wrapper's documentation is this method rather than a
// rewritten annotation string; callers append its output to whatever
// description field their tool-framework registration uses.
func (c *Cached) Describe() string {
	ns := c.opts.NamespaceTemplate
	if ns == "" {
		ns = c.opts.Namespace
	}
	maxSize := "server default"
	if c.opts.MaxSize > 0 {
		maxSize = fmt.Sprintf("%d", c.opts.MaxSize)
	}
	resolveNote := "Reference identifiers found in arguments are resolved to their underlying values before execution."
	if !c.opts.resolveRefs() {
		resolveNote = "Reference identifiers in arguments are passed through unresolved."
	}
	return fmt.Sprintf(
		"Cached under namespace %q (max_size: %s). %s Poll an in-flight or completed call with get_cached_result(ref_id).",
		ns, maxSize, resolveNote,
	)
}
