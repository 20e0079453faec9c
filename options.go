// Package refcache is the reference-based caching library: a reference
// store (namespaced, owned, TTL'd entries behind a pluggable storage
// backend), an access-control engine, a context-limiting preview
// pipeline, and a cached-callable wrapper that deep-resolves reference
// identifiers in tool arguments and runs long invocations as background
// tasks. Store is the library's central coordinator, combining a
// storage.Backend, an access.Policy checker, a preview.Generator, and a
// task.Backend.
package refcache

import (
	"time"

	"goa.design/refcache/preview"
	"goa.design/refcache/size"
	"goa.design/refcache/storage"
	"goa.design/refcache/task"
	"goa.design/refcache/telemetry"
)

// Option configures a Store at construction time.
type Option func(*Store)

// WithBackend sets the storage backend. Defaults to an in-memory backend
// if never called.
func WithBackend(backend storage.Backend) Option {
	return func(s *Store) { s.backend = backend }
}

// WithTaskBackend sets the background-task executor. Defaults to an
// in-process worker pool with 4 workers if never called.
func WithTaskBackend(backend task.Backend) Option {
	return func(s *Store) { s.tasks = backend }
}

// WithMeasurer sets the size measurer used to decide complete-vs-preview
// responses. Defaults to a token measurer using the built-in approximate
// tokenizer.
func WithMeasurer(measurer size.Measurer) Option {
	return func(s *Store) { s.measurer = measurer }
}

// WithPreviewStrategy sets the default preview strategy used when a
// caller does not force one via an explicit page. Defaults to Sample.
func WithPreviewStrategy(strategy preview.Strategy) Option {
	return func(s *Store) { s.defaultStrategy = strategy }
}

// WithMaxSize sets the cache-wide default max_size, the lowest-precedence
// level of the three-level override chain.
func WithMaxSize(maxSize int) Option {
	return func(s *Store) { s.maxSize = maxSize }
}

// WithCleanup enables a periodic loop that calls Cleanup(retention) every
// interval. New spawns the loop once when interval is positive; it lives
// for the Store's lifetime and stops on Close.
func WithCleanup(interval, retention time.Duration) Option {
	return func(s *Store) {
		s.cleanupInterval = interval
		s.cleanupRetention = retention
	}
}

// WithLogger sets the logger used for diagnostic messages. Defaults to a
// noop logger.
func WithLogger(logger telemetry.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithTracer sets the tracer used to span store operations. Defaults to a
// noop tracer.
func WithTracer(tracer telemetry.Tracer) Option {
	return func(s *Store) { s.tracer = tracer }
}

// WithMetrics sets the metrics sink used for hit/miss counters and gauges.
// Defaults to a noop implementation.
func WithMetrics(metrics telemetry.Metrics) Option {
	return func(s *Store) { s.metrics = metrics }
}
