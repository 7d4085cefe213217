package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the orchestration core can surface.
// The kinds form a closed taxonomy so callers can branch on failure class
// without string matching.
type ErrorKind string

const (
	// KindPermissionDenied: the caller's held level is below the capability's
	// required level. Never retried.
	KindPermissionDenied ErrorKind = "permission_denied"
	// KindCapabilityMismatch: no registered agent exposes the requested
	// action. Never retried, surfaced immediately.
	KindCapabilityMismatch ErrorKind = "capability_mismatch"
	// KindAgentUnavailable: agent construction or a dependency failed.
	// Retried once against an alternate candidate when one exists.
	KindAgentUnavailable ErrorKind = "agent_unavailable"
	// KindTimeout: a sub-task exceeded its invocation deadline. Reported as
	// a partial failure for that sub-task only.
	KindTimeout ErrorKind = "timeout"
	// KindValidation: malformed request fields, rejected before routing.
	KindValidation ErrorKind = "validation_error"
	// KindInternal: an unexpected failure inside an agent, caught at the
	// agent boundary and converted to a structured response.
	KindInternal ErrorKind = "internal_agent_error"
)

// Retryable reports whether the orchestrator may try an alternate candidate
// for this failure class.
func (k ErrorKind) Retryable() bool {
	return k == KindAgentUnavailable
}

// Error is the structured error type carried through the pipeline. It wraps
// an optional cause and is compatible with errors.Is/errors.As.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// NewError creates an Error of the given kind with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an Error of the given kind wrapping a cause.
func WrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the ErrorKind from err. Errors outside the taxonomy map to
// KindInternal; a nil error has no kind and returns "".
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// IsKind reports whether err (or anything it wraps) is a core Error of the
// given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == kind
}
