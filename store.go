package refcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"goa.design/refcache/access"
	"goa.design/refcache/actor"
	"goa.design/refcache/canon"
	"goa.design/refcache/namespace"
	"goa.design/refcache/permission"
	"goa.design/refcache/preview"
	"goa.design/refcache/rcerr"
	"goa.design/refcache/refid"
	"goa.design/refcache/size"
	"goa.design/refcache/storage"
	"goa.design/refcache/storage/memorydb"
	"goa.design/refcache/task"
	"goa.design/refcache/task/workerpool"
	"goa.design/refcache/telemetry"
)

// Store is the reference caching library's central coordinator,
// combining a storage.Backend, the access package's permission checker,
// a size.Measurer and preview.Generator, and a task.Backend. A
// long-lived server typically holds exactly one Store per logical
// cache; there is no process-wide singleton.
type Store struct {
	cacheName string

	backend         storage.Backend
	tasks           task.Backend
	measurer        size.Measurer
	defaultStrategy preview.Strategy
	maxSize         int

	cleanupInterval  time.Duration
	cleanupRetention time.Duration
	cleanupStop      chan struct{}
	cleanupOnce      sync.Once
	cleanupStarted   bool

	logger  telemetry.Logger
	tracer  telemetry.Tracer
	metrics telemetry.Metrics

	mu          sync.Mutex
	activeTasks map[string]string     // ref ID -> task ID of the task currently producing it
	submissions map[string]submission // ref ID -> original invocation, for RetryTask
	hits        int64
	misses      int64
}

// New constructs a Store minting reference identifiers of the form
// "<cache-name>:<hex-digest>" under cacheName. Options default to an
// in-memory storage backend, an in-process worker-pool task backend, a
// token-based size measurer using the built-in approximate tokenizer,
// and the Sample preview strategy.
func New(cacheName string, opts ...Option) *Store {
	s := &Store{
		cacheName:       cacheName,
		defaultStrategy: preview.Sample,
		maxSize:         8192,
		logger:          telemetry.NewNoopLogger(),
		tracer:          telemetry.NewNoopTracer(),
		metrics:         telemetry.NewNoopMetrics(),
		activeTasks:     make(map[string]string),
	}
	for _, o := range opts {
		if o != nil {
			o(s)
		}
	}
	if s.backend == nil {
		s.backend = memorydb.New()
	}
	if s.tasks == nil {
		s.tasks = workerpool.New(workerpool.Config{Logger: s.logger, Tracer: s.tracer})
	}
	if s.measurer == nil {
		s.measurer = size.NewTokenMeasurer(nil)
	}
	if s.cleanupInterval > 0 {
		s.startCleanup()
	}
	return s
}

// SetOptions configures a single Set call.
type SetOptions struct {
	// Namespace is the entry's namespace string. Required.
	Namespace string
	// Policy is the entry's access policy. Defaults to access.DefaultPolicy().
	Policy *access.Policy
	// TTL, if non-zero, sets the entry's expiration relative to now.
	TTL time.Duration
	// Metadata is opaque string-to-string metadata carried with the entry.
	Metadata map[string]string
	// Actor is the caller performing the write. Set does not read it and
	// does not enforce a write permission on a not-yet-existing entry; the
	// policy supplied governs subsequent reads.
	Actor actor.Actor
}

// Set writes value under a reference identifier deterministic in
// (namespace, canonical(key)). Repeat calls with equal namespace and
// key yield the same identifier and replace the entry in place, so a
// later TTL or metadata change takes effect without orphaning the old
// identifier (idempotent cache insert).
func (s *Store) Set(ctx context.Context, key, value any, opts SetOptions) (string, error) {
	ctx, span := s.tracer.Start(ctx, "refcache.Set")
	defer span.End()

	refID, err := s.PredictRef(opts.Namespace, key)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	policy := access.DefaultPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}

	entry := storage.Entry{
		Key:       refID,
		Value:     value,
		Namespace: opts.Namespace,
		Policy:    policy,
		CreatedAt: time.Now(),
		Metadata:  opts.Metadata,
	}
	if opts.TTL > 0 {
		expires := entry.CreatedAt.Add(opts.TTL)
		entry.ExpiresAt = &expires
	}

	if err := s.backend.Set(ctx, refID, entry); err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("refcache: set %s: %w", refID, err)
	}
	s.logger.Debug(ctx, "refcache: entry stored", "ref_id", refID, "namespace", opts.Namespace)
	s.metrics.IncCounter("refcache.set", 1, "namespace", opts.Namespace)
	return refID, nil
}

// PredictRef computes the reference identifier Set(key, ...) under
// namespace would mint, without writing anything. The cached-callable
// wrapper uses this to pre-compute the identifier a background task
// will eventually produce.
func (s *Store) PredictRef(ns, key any) (string, error) {
	nsStr, _ := ns.(string)
	canonKey, err := canon.Key(key)
	if err != nil {
		return "", fmt.Errorf("refcache: canonicalize key: %w", err)
	}
	return refid.Mint(s.cacheName, nsStr, canonKey), nil
}

// GetOptions configures a single Get call.
type GetOptions struct {
	// Actor is the caller requesting the entry.
	Actor actor.Actor
	// Page, when non-zero, forces the Paginate strategy regardless of the
	// store's configured default.
	Page int
	// PageSize, when non-zero, fixes the number of items Paginate puts
	// on each page, overriding the count it would otherwise derive from
	// max_size; 0 leaves pagination sized purely by max_size.
	PageSize int
	// MaxSize, when non-zero, overrides the store's default for this
	// call only, the highest-precedence of the three max_size override
	// levels.
	MaxSize int
	// Format selects the detail level of a processing response, when
	// refID names an in-flight background task. Defaults to Standard.
	Format ResponseFormat
}

// Get loads the entry behind refID and returns a structured response: a
// processing response if a background task is still producing it, a
// complete response if the value is within the effective max_size, or
// a preview response otherwise. All failure modes — missing, expired,
// and permission-denied — collapse to the same
// *rcerr.OpaqueReferenceError so a caller cannot distinguish them.
func (s *Store) Get(ctx context.Context, refID string, opts GetOptions) (Response, error) {
	ctx, span := s.tracer.Start(ctx, "refcache.Get")
	defer span.End()

	if resp, ok, err := s.taskResponse(ctx, refID, opts.Format); err != nil {
		span.RecordError(err)
		return Response{}, err
	} else if ok {
		return resp, nil
	}

	entry, ok, err := s.backend.Get(ctx, refID)
	if err != nil {
		span.RecordError(err)
		return Response{}, fmt.Errorf("refcache: get %s: %w", refID, err)
	}
	if !ok {
		s.recordMiss()
		return Response{}, rcerr.AsOpaque(refID, &rcerr.NotFound{Key: refID})
	}

	info := namespace.Parse(entry.Namespace)
	if _, err := access.Check(opts.Actor, permission.Read, entry.Policy, info); err != nil {
		s.recordMiss()
		return Response{}, rcerr.AsOpaque(refID, err)
	}
	s.recordHit()

	return s.buildResponse(refID, entry.Value, opts)
}

// Resolve returns the full value behind refID, requiring READ or
// EXECUTE: EXECUTE-only holders may use the value in server-side
// computation but the public Get/poll surface never grants them
// disclosure. SYSTEM actors are not held to the READ-or-EXECUTE
// requirement; deny-list and bound-session rules still apply to them.
// Resolve satisfies the resolver.Lookup interface so a
// Store can back a resolver.Resolver directly.
func (s *Store) Resolve(ctx context.Context, refID string, a actor.Actor) (any, error) {
	ctx, span := s.tracer.Start(ctx, "refcache.Resolve")
	defer span.End()

	entry, ok, err := s.backend.Get(ctx, refID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("refcache: get %s: %w", refID, err)
	}
	if !ok {
		return nil, rcerr.AsOpaque(refID, &rcerr.NotFound{Key: refID})
	}

	info := namespace.Parse(entry.Namespace)
	effective, err := access.Effective(a, entry.Policy, info)
	if err != nil {
		return nil, rcerr.AsOpaque(refID, err)
	}
	if a.Role != actor.System && !effective.Has(permission.Read) && !effective.Has(permission.Execute) {
		return nil, rcerr.AsOpaque(refID, &rcerr.PermissionDenied{
			Actor: a.Canonical(), Required: permission.Read.String(), Reason: "neither READ nor EXECUTE", Namespace: info.Raw,
		})
	}
	return entry.Value, nil
}

// Delete removes the entry behind refID, requiring DELETE.
func (s *Store) Delete(ctx context.Context, refID string, a actor.Actor) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "refcache.Delete")
	defer span.End()

	entry, ok, err := s.backend.Get(ctx, refID)
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("refcache: get %s: %w", refID, err)
	}
	if !ok {
		return false, nil
	}

	info := namespace.Parse(entry.Namespace)
	if _, err := access.Check(a, permission.Delete, entry.Policy, info); err != nil {
		return false, rcerr.AsOpaque(refID, err)
	}

	if err := s.backend.Delete(ctx, refID); err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("refcache: delete %s: %w", refID, err)
	}
	s.mu.Lock()
	delete(s.activeTasks, refID)
	s.mu.Unlock()
	return true, nil
}

// Exists reports whether refID could be observed by actor via Get,
// without disclosing which of "missing" or "denied" applies: opaque
// by construction, errors collapse to false.
func (s *Store) Exists(ctx context.Context, refID string, a actor.Actor) bool {
	entry, ok, err := s.backend.Get(ctx, refID)
	if err != nil || !ok {
		return false
	}
	info := namespace.Parse(entry.Namespace)
	_, err = access.Check(a, permission.Read, entry.Policy, info)
	return err == nil
}

// Clear removes every entry in ns (or every entry in the store if ns
// is empty), requiring DELETE under the default policy's namespace
// rules. Typical callers are USER-role owners of ns or a SYSTEM actor.
func (s *Store) Clear(ctx context.Context, ns string, a actor.Actor) error {
	if ns != "" {
		info := namespace.Parse(ns)
		if _, err := access.Check(a, permission.Delete, access.DefaultPolicy(), info); err != nil {
			return rcerr.AsOpaque(ns, err)
		}
	} else if a.Role != actor.System {
		return rcerr.AsOpaque(ns, &rcerr.PermissionDenied{
			Actor: a.Canonical(), Required: permission.Delete.String(), Reason: "clearing the entire store requires SYSTEM", Namespace: ns,
		})
	}
	return s.backend.Clear(ctx, ns)
}

// ListKeys lists every live key in ns (or the whole store if ns is
// empty). Administrative operation; typically gated to USER or SYSTEM
// actors by the caller's tool-level policy.
func (s *Store) ListKeys(ctx context.Context, ns string) ([]string, error) {
	return s.backend.Keys(ctx, ns)
}

// Close releases the store's storage and task backends and stops the
// cleanup loop if one was started.
func (s *Store) Close(ctx context.Context) error {
	s.cleanupOnce.Do(func() {
		if s.cleanupStarted {
			close(s.cleanupStop)
		}
	})
	if err := s.tasks.Shutdown(ctx); err != nil {
		return err
	}
	return s.backend.Close()
}

func (s *Store) recordHit() {
	s.mu.Lock()
	s.hits++
	s.mu.Unlock()
	s.metrics.IncCounter("refcache.hit", 1)
}

func (s *Store) recordMiss() {
	s.mu.Lock()
	s.misses++
	s.mu.Unlock()
	s.metrics.IncCounter("refcache.miss", 1)
}
