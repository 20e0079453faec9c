// Package rcerr defines the typed error kinds used internally by the
// reference caching library, following the chain-preserving style of
// toolerrors.ToolError: every kind wraps an optional cause so errors.Is/As
// keep working across the public/opaque boundary.
package rcerr

import "errors"

// OpaqueMessage is the single externally visible message for all reference
// access failures (not found, expired, denied). Its text must never vary
// with the underlying cause, or a caller could enumerate valid references.
const OpaqueMessage = "Invalid or inaccessible reference"

// PermissionDenied is raised internally when an actor lacks a required
// permission. It is never surfaced verbatim to untrusted callers; public
// surfaces convert it via AsOpaque.
type PermissionDenied struct {
	Actor     string
	Required  string
	Reason    string
	Namespace string
}

func (e *PermissionDenied) Error() string {
	return "permission denied: " + e.Actor + " lacks " + e.Required + " in " + e.Namespace + ": " + e.Reason
}

// NotFound is raised internally when a key or reference has no live entry.
// It is never surfaced verbatim; public surfaces convert it via AsOpaque.
type NotFound struct {
	Key string
}

func (e *NotFound) Error() string { return "not found: " + e.Key }

// OpaqueReferenceError is the single externally visible failure kind for
// reference access, conflating not-found, expired, and denied. RefID is
// preserved because the caller already knew it.
type OpaqueReferenceError struct {
	RefID string
	cause error
}

func (e *OpaqueReferenceError) Error() string { return OpaqueMessage }

// Unwrap exposes the internal cause for diagnostics (logging, tracing) while
// Error() still returns only the fixed opaque message.
func (e *OpaqueReferenceError) Unwrap() error { return e.cause }

// AsOpaque collapses a PermissionDenied or NotFound (or any other error)
// into an OpaqueReferenceError.
func AsOpaque(refID string, cause error) *OpaqueReferenceError {
	return &OpaqueReferenceError{RefID: refID, cause: cause}
}

// CircularReferenceError is fatal for the resolution it occurs in. Chain
// lists the reference identifiers encountered on the branch, in order,
// ending with the identifier that reappeared.
type CircularReferenceError struct {
	Chain []string
}

func (e *CircularReferenceError) Error() string {
	s := "circular reference: "
	for i, id := range e.Chain {
		if i > 0 {
			s += " -> "
		}
		s += id
	}
	return s
}

// TaskFailed reports that a background task exhausted its retries.
type TaskFailed struct {
	RefID   string
	Message string
}

func (e *TaskFailed) Error() string { return "task failed (" + e.RefID + "): " + e.Message }

// Cancelled reports explicit task cancellation.
type Cancelled struct {
	RefID string
}

func (e *Cancelled) Error() string { return "task cancelled: " + e.RefID }

// InvalidArgument reports malformed caller input.
type InvalidArgument struct {
	Message string
}

func (e *InvalidArgument) Error() string { return "invalid argument: " + e.Message }

// IsNotFound reports whether err is, or wraps, a NotFound.
func IsNotFound(err error) bool {
	var nf *NotFound
	return errors.As(err, &nf)
}

// IsPermissionDenied reports whether err is, or wraps, a PermissionDenied.
func IsPermissionDenied(err error) bool {
	var pd *PermissionDenied
	return errors.As(err, &pd)
}
