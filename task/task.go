// Package task defines the pluggable background-execution contract used
// by the cached-callable wrapper's async-timeout machinery:
// submit/cancel/progress/cleanup of long-running tool invocations, so a
// client can poll instead of blocking. Concrete backends live in the
// workerpool and temporaltask subpackages.
package task

import (
	"context"
	"time"
)

// Status is a task record's lifecycle state. Transitions are monotonic:
// Pending -> Processing -> {Complete, Failed, Cancelled}.
type Status string

const (
	Pending    Status = "PENDING"
	Processing Status = "PROCESSING"
	Complete   Status = "COMPLETE"
	Failed     Status = "FAILED"
	Cancelled  Status = "CANCELLED"
)

// Terminal reports whether s is one of the states a task does not leave.
func (s Status) Terminal() bool {
	switch s {
	case Complete, Failed, Cancelled:
		return true
	default:
		return false
	}
}

// Progress reports incremental completion of an in-flight task. Message
// and Percentage are both optional convenience fields derived from
// Current/Total by callers that track counts.
type Progress struct {
	Current    int     `json:"current"`
	Total      int     `json:"total"`
	Message    string  `json:"message,omitempty"`
	Percentage float64 `json:"percentage"`
}

// ProgressFunc reports incremental progress for a running task. Calls
// are non-blocking: implementations must not let a slow or stuck
// consumer stall the worker.
type ProgressFunc func(p Progress)

// Func is a background invocation submitted to a Backend. ctx is
// cancelled cooperatively when the task is cancelled; implementations
// that support cooperative cancellation should check ctx.Err() or the
// Backend's IsCancelled between units of work. report is nil when the
// caller did not request progress updates.
type Func func(ctx context.Context, report ProgressFunc) (result any, err error)

// RetryPolicy bounds how a Backend retries a failing Func before
// marking its task Failed: on error, sleep
// Delay * BackoffFactor^attempt and re-invoke, up to MaxRetries times.
type RetryPolicy struct {
	MaxRetries    int
	Delay         time.Duration
	BackoffFactor float64
}

// Record tracks one in-flight or completed background execution. RefID
// ties the record back to the reference identifier the caller received
// in its processing response, so a later poll resolves the same handle
// regardless of which component (wrapper, admin tool) asks.
type Record struct {
	TaskID        string
	RefID         string
	Status        Status
	Progress      *Progress
	StartedAt     time.Time
	CompletedAt   *time.Time
	LastError     string
	RetryAttempts int
	MaxRetries    int
}

// Stats summarizes a Backend's current load, for the administrative
// cache_stats() surface.
type Stats struct {
	Pending    int
	Processing int
	Complete   int
	Failed     int
	Cancelled  int
}

// Backend is the pluggable executor contract for background tool runs.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Submit schedules fn for background execution under taskID, returning
	// its initial Pending record. fn begins running asynchronously;
	// progress, if requested, flows through the returned record's
	// subsequent GetStatus calls.
	Submit(ctx context.Context, taskID, refID string, fn Func, retry RetryPolicy) (Record, error)
	// GetStatus returns the current record for taskID, or ok=false if
	// unknown (never submitted, or already cleaned up).
	GetStatus(taskID string) (rec Record, ok bool)
	// Wait blocks until taskID reaches a terminal status or timeout
	// elapses, whichever comes first, returning the record observed at
	// that moment. This is the "wait ends but the work continues"
	// primitive behind the cached-callable wrapper's async_timeout: a
	// timeout never cancels the task, it only ends the wait.
	Wait(ctx context.Context, taskID string, timeout time.Duration) (rec Record, ok bool)
	// GetResult returns the terminal result for taskID. It returns an
	// error if the task has not reached a terminal state, or the task's
	// own failure/cancellation error if it has.
	GetResult(ctx context.Context, taskID string) (any, error)
	// Cancel requests cooperative cancellation of taskID. Returns false
	// if the task is unknown or already terminal (idempotent
	// double-cancel).
	Cancel(taskID string) bool
	// IsCancelled reports whether taskID has been asked to cancel, for
	// cooperative checks inside long-running tool code.
	IsCancelled(taskID string) bool
	// Cleanup removes terminal records older than maxAge and returns the
	// count removed.
	Cleanup(maxAge time.Duration) int
	// Shutdown stops accepting new work and releases backend resources.
	// In-flight tasks are not forcibly killed; callers should Cancel them
	// first if that is required.
	Shutdown(ctx context.Context) error
	// GetStats reports current load, for administrative surfaces.
	GetStats() Stats
}
