package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/naptrack/internal/event"
	"github.com/roach88/naptrack/internal/gateway"
)

// Error represents a failure surfaced by the engine's public operations.
//
// Error kinds:
//   - Unknown child: Target child not recognized (local, never retried)
//   - Invalid transition: State-machine guard failed (carries current status)
//   - Remote unavailable: Transport/timeout (safe to retry with backoff)
//   - Remote rejected: Backend-side validation failure (message passed through)
//   - Stale notification: Out-of-order remote echo (dropped, never surfaced)
//
// Error includes structured fields so callers can render useful messages.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// ChildUID identifies the affected child, if any.
	ChildUID string

	// Kind identifies the activity kind (for transition errors).
	Kind event.Kind

	// Status is the current activity status at the time of a rejected
	// transition, so callers can explain why the guard failed.
	Status ActivityStatus

	// Err is the underlying cause (for remote errors).
	Err error
}

// Code categorizes engine errors.
type Code string

const (
	// CodeUnknownChild indicates the target child is not recognized.
	CodeUnknownChild Code = "UNKNOWN_CHILD"

	// CodeInvalidTransition indicates a state-machine guard rejected the
	// operation.
	CodeInvalidTransition Code = "INVALID_TRANSITION"

	// CodeRemoteUnavailable indicates a transport failure or timeout.
	// No local state was changed; the caller may retry with backoff.
	CodeRemoteUnavailable Code = "REMOTE_UNAVAILABLE"

	// CodeRemoteRejected indicates the backend rejected the mutation.
	CodeRemoteRejected Code = "REMOTE_REJECTED"

	// CodeStaleNotification marks a superseded remote echo. Not a real
	// failure: the reconciler logs and drops these without surfacing them.
	CodeStaleNotification Code = "STALE_NOTIFICATION"
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.ChildUID != "" && e.Kind != "":
		return fmt.Sprintf("%s: %s (child=%s, kind=%s)", e.Code, e.Message, e.ChildUID, e.Kind)
	case e.ChildUID != "":
		return fmt.Sprintf("%s: %s (child=%s)", e.Code, e.Message, e.ChildUID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// codeIs reports whether err is an engine Error with the given code.
// Uses errors.As to handle wrapped errors.
func codeIs(err error, code Code) bool {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}

// IsUnknownChild reports whether the error is an unknown-child error.
func IsUnknownChild(err error) bool { return codeIs(err, CodeUnknownChild) }

// IsInvalidTransition reports whether the error is a rejected transition.
func IsInvalidTransition(err error) bool { return codeIs(err, CodeInvalidTransition) }

// IsRemoteUnavailable reports whether the error is a transport failure.
// Operations failing this way left local state unchanged and are safe to
// retry with backoff.
func IsRemoteUnavailable(err error) bool { return codeIs(err, CodeRemoteUnavailable) }

// IsRemoteRejected reports whether the backend rejected the mutation.
func IsRemoteRejected(err error) bool { return codeIs(err, CodeRemoteRejected) }

// NewUnknownChildError creates an Error for an unrecognized child.
func NewUnknownChildError(childUID string) *Error {
	return &Error{
		Code:     CodeUnknownChild,
		Message:  "child not recognized",
		ChildUID: childUID,
	}
}

// NewInvalidTransitionError creates an Error for a rejected transition,
// carrying the current status so callers can render a useful message.
func NewInvalidTransitionError(childUID string, kind event.Kind, status ActivityStatus, transition string) *Error {
	return &Error{
		Code:     CodeInvalidTransition,
		Message:  fmt.Sprintf("cannot %s while %s", transition, status),
		ChildUID: childUID,
		Kind:     kind,
		Status:   status,
	}
}

// classifyRemoteError maps a gateway failure to the engine error kinds.
// Backend rejections pass the reason through; everything else (network,
// auth, timeout, cancellation) is reported as remote-unavailable.
func classifyRemoteError(childUID string, err error) *Error {
	var rej *gateway.RejectionError
	if errors.As(err, &rej) {
		return &Error{
			Code:     CodeRemoteRejected,
			Message:  rej.Reason,
			ChildUID: childUID,
			Err:      err,
		}
	}

	msg := "remote call failed"
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "remote call timed out"
	}
	return &Error{
		Code:     CodeRemoteUnavailable,
		Message:  msg,
		ChildUID: childUID,
		Err:      err,
	}
}
