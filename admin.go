package refcache

import (
	"context"
	"time"

	"goa.design/refcache/actor"
	"goa.design/refcache/permission"
	"goa.design/refcache/rcerr"
	"goa.design/refcache/task"
)

// submission remembers enough about a submitted task to re-submit it
// under the same reference identifier if RetryTask is called later.
type submission struct {
	fn    task.Func
	retry task.RetryPolicy
}

// SubmitTask hands fn to the task backend under a task ID derived from
// refID and records refID as in-flight, so Get/taskResponse report its
// status until it reaches a terminal state and its result is stored.
func (s *Store) SubmitTask(ctx context.Context, refID string, fn task.Func, retry task.RetryPolicy) (task.Record, error) {
	ctx, span := s.tracer.Start(ctx, "refcache.SubmitTask")
	defer span.End()

	taskID := refID
	rec, err := s.tasks.Submit(ctx, taskID, refID, fn, retry)
	if err != nil {
		span.RecordError(err)
		return task.Record{}, err
	}

	s.mu.Lock()
	s.activeTasks[refID] = taskID
	if s.submissions == nil {
		s.submissions = make(map[string]submission)
	}
	s.submissions[refID] = submission{fn: fn, retry: retry}
	s.mu.Unlock()

	return rec, nil
}

// WaitTask blocks until refID's background task reaches a terminal
// status or timeout elapses: the wait ends but the work continues. A
// timeout never cancels the task.
func (s *Store) WaitTask(ctx context.Context, refID string, timeout time.Duration) (task.Record, bool) {
	s.mu.Lock()
	taskID, ok := s.activeTasks[refID]
	s.mu.Unlock()
	if !ok {
		return task.Record{}, false
	}
	return s.tasks.Wait(ctx, taskID, timeout)
}

// CancelTask requests cooperative cancellation of the background task
// behind refID. Idempotent: a second call returns false.
func (s *Store) CancelTask(ctx context.Context, refID string, a actor.Actor) (bool, error) {
	if err := s.requireAdmin(a); err != nil {
		return false, err
	}
	s.mu.Lock()
	taskID, ok := s.activeTasks[refID]
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	return s.tasks.Cancel(taskID), nil
}

// RetryTask re-submits a FAILED task's original invocation with its
// retry-attempt counter reset to zero, preserving refID so clients
// already polling it keep working against the same handle.
func (s *Store) RetryTask(ctx context.Context, refID string, a actor.Actor) (task.Record, error) {
	if err := s.requireAdmin(a); err != nil {
		return task.Record{}, err
	}

	s.mu.Lock()
	taskID, tracked := s.activeTasks[refID]
	sub, hasSub := s.submissions[refID]
	s.mu.Unlock()
	if !tracked || !hasSub {
		return task.Record{}, rcerr.AsOpaque(refID, &rcerr.NotFound{Key: refID})
	}

	rec, ok := s.tasks.GetStatus(taskID)
	if !ok || rec.Status != task.Failed {
		return task.Record{}, &rcerr.InvalidArgument{Message: "refcache: retry_task requires a FAILED task"}
	}

	return s.SubmitTask(ctx, refID, sub.fn, sub.retry)
}

// AdminStats reports the task backend's current load for the
// administrative cache_stats() surface.
func (s *Store) AdminStats(a actor.Actor) (task.Stats, error) {
	if err := s.requireAdmin(a); err != nil {
		return task.Stats{}, err
	}
	return s.tasks.GetStats(), nil
}

// Stats summarizes the store's hit/miss counters, as exposed to
// cache_stats(). It does not itself enforce a permission; callers
// expose it behind whatever gating their administrative tool uses.
type Stats struct {
	Hits   int64
	Misses int64
}

// CacheStats returns the store's accumulated hit/miss counters.
func (s *Store) CacheStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Hits: s.hits, Misses: s.misses}
}

// requireAdmin enforces that administrative operations (cancel/retry
// task, stats) run only for USER or SYSTEM actors.
func (s *Store) requireAdmin(a actor.Actor) error {
	if a.Role == actor.User || a.Role == actor.System {
		return nil
	}
	return &rcerr.PermissionDenied{
		Actor: a.Canonical(), Required: permission.Read.String(), Reason: "administrative operation requires USER or SYSTEM", Namespace: "",
	}
}
