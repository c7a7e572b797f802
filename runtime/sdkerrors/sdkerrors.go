// Package sdkerrors defines the typed error contracts shared across the SDK
// runtime. Each class carries enough structure for callers to branch with
// errors.Is/As without inspecting message text.
//
// The classes map onto distinct handling policies: request errors abort a
// request without retries, function errors absorb user failures after the
// retry budget, usage errors flag SDK misuse, and internal errors report
// contract violations in the runtime itself.
package sdkerrors

import (
	"errors"
	"fmt"
)

type (
	// RequestError is raised by user code to fail the whole request with a
	// user-facing message. It is never retried and is surfaced to the request
	// handle exactly as raised.
	RequestError struct {
		// Message is the user-facing failure text.
		Message string
	}

	// FunctionError reports that a function exhausted its retry budget. The
	// rendered message stays generic so user stack detail never leaks into
	// request output; the cause remains reachable through Unwrap for local
	// debugging.
	FunctionError struct {
		// Function is the qualified name of the failing function.
		Function string
		// Attempts counts the runs performed, including the first.
		Attempts int
		// Cause stores the last error raised by the function body.
		Cause error
	}

	// UsageError reports SDK misuse: re-running a live awaitable, returning a
	// list awaitable from a function body, touching the request context from a
	// detached goroutine, and similar contract breaches by the caller.
	UsageError struct {
		// Message describes the misuse.
		Message string
	}

	// InternalError reports a contract violation inside the runtime itself.
	// It is never suppressed silently.
	InternalError struct {
		// Message is a short description of the violated invariant.
		Message string
	}
)

var (
	// ErrRequest matches all RequestError instances via errors.Is.
	ErrRequest = errors.New("request error")

	// ErrUsage matches all UsageError instances via errors.Is.
	ErrUsage = errors.New("sdk usage error")

	// ErrInternal matches all InternalError instances via errors.Is.
	ErrInternal = errors.New("internal error")

	// ErrTimeout reports an elapsed wait deadline. The underlying future is
	// left untouched.
	ErrTimeout = errors.New("timed out waiting for result")

	// ErrRequestNotFinished reports that output was requested before the
	// request completed in non-blocking mode.
	ErrRequestNotFinished = errors.New("request not finished")

	// ErrAborted is the stop signal delivered to workers once the request
	// exception slot is set. Workers treat it as a non-retryable failure.
	ErrAborted = errors.New("request aborted")
)

// NewRequestError formats a user-facing request failure.
func NewRequestError(format string, args ...any) *RequestError {
	return &RequestError{Message: fmt.Sprintf(format, args...)}
}

// Error returns the user-facing message as raised.
func (e *RequestError) Error() string {
	if e == nil {
		return ErrRequest.Error()
	}
	return e.Message
}

// Is allows errors.Is(err, ErrRequest) classification.
func (e *RequestError) Is(target error) bool {
	return target == ErrRequest
}

// NewFunctionError wraps the terminal failure of a function run.
func NewFunctionError(function string, attempts int, cause error) *FunctionError {
	return &FunctionError{Function: function, Attempts: attempts, Cause: cause}
}

// Error renders a generic failure description without the user traceback.
func (e *FunctionError) Error() string {
	if e == nil {
		return "function error"
	}
	if e.Attempts > 1 {
		return fmt.Sprintf("function %q failed after %d attempts", e.Function, e.Attempts)
	}
	return fmt.Sprintf("function %q failed", e.Function)
}

// Unwrap exposes the last underlying failure.
func (e *FunctionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewUsageError formats an SDK misuse report.
func NewUsageError(format string, args ...any) *UsageError {
	return &UsageError{Message: fmt.Sprintf(format, args...)}
}

// Error describes the misuse.
func (e *UsageError) Error() string {
	if e == nil {
		return ErrUsage.Error()
	}
	return e.Message
}

// Is allows errors.Is(err, ErrUsage) classification.
func (e *UsageError) Is(target error) bool {
	return target == ErrUsage
}

// NewInternalError formats a runtime contract violation.
func NewInternalError(format string, args ...any) *InternalError {
	return &InternalError{Message: fmt.Sprintf(format, args...)}
}

// Error describes the violated invariant.
func (e *InternalError) Error() string {
	if e == nil {
		return ErrInternal.Error()
	}
	return "internal: " + e.Message
}

// Is allows errors.Is(err, ErrInternal) classification.
func (e *InternalError) Is(target error) bool {
	return target == ErrInternal
}

// IsRequestError reports whether err classifies as a user-raised request
// failure.
func IsRequestError(err error) bool {
	return errors.Is(err, ErrRequest)
}

// AsRequestError extracts a typed request error.
func AsRequestError(err error) (*RequestError, bool) {
	var typed *RequestError
	if !errors.As(err, &typed) {
		return nil, false
	}
	return typed, true
}

// IsUsageError reports whether err classifies as SDK misuse.
func IsUsageError(err error) bool {
	return errors.Is(err, ErrUsage)
}
