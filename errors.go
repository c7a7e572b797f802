package tensorlake

import (
	"github.com/tensorlakeai/tensorlake-go/runtime/sdkerrors"
)

// Error classes re-exported from the runtime so user code handles failures
// with a single import. See each type for its handling policy.
type (
	// RequestError fails the whole request with a user-facing message and is
	// never retried. Raise it from a handler to reject bad input.
	RequestError = sdkerrors.RequestError

	// FunctionError reports a function that exhausted its retry budget.
	FunctionError = sdkerrors.FunctionError

	// UsageError reports SDK misuse.
	UsageError = sdkerrors.UsageError

	// InternalError reports a contract violation inside the runtime.
	InternalError = sdkerrors.InternalError
)

// Sentinel errors for errors.Is checks.
var (
	// ErrTimeout reports an elapsed result or wait deadline.
	ErrTimeout = sdkerrors.ErrTimeout

	// ErrRequestNotFinished reports a non-blocking output fetch on an
	// unfinished request.
	ErrRequestNotFinished = sdkerrors.ErrRequestNotFinished

	// ErrAborted is the stop signal observed by workers after the request
	// failed; any in-flight SDK call returns it instead of working.
	ErrAborted = sdkerrors.ErrAborted
)

// Constructors and classifiers re-exported from the runtime.
var (
	NewRequestError = sdkerrors.NewRequestError
	IsRequestError  = sdkerrors.IsRequestError
	IsUsageError    = sdkerrors.IsUsageError
)
