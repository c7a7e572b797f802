// Package runner defines the seam between user code and the engine driving
// it. The three hook operations (start, wait, start-and-wait) are the only
// way user code reaches the scheduler, so the same function bodies run
// unchanged under the local and the remote runner.
//
// Every hook call is a cancellation point: once a request fails, any
// subsequent hook call from any worker returns the stop signal
// (sdkerrors.ErrAborted) instead of performing work.
package runner

import (
	"context"

	"github.com/tensorlakeai/tensorlake-go/runtime/awaitable"
	"github.com/tensorlakeai/tensorlake-go/runtime/future"
	"github.com/tensorlakeai/tensorlake-go/runtime/sdkerrors"
)

type (
	// Runner turns awaitables into futures and drives them to completion.
	// Implementations are single-use per request and bind themselves into
	// the context handed to user functions.
	Runner interface {
		// StartCalls registers the awaitables (and their dependency trees)
		// and returns their futures in input order. Submitting an awaitable
		// whose id the runner already tracks is a usage error.
		StartCalls(ctx context.Context, aws ...awaitable.Awaitable) ([]*future.Future, error)

		// StartCallsLater is StartCalls with a non-negative start delay: the
		// runner must not dispatch the returned futures before the delay
		// elapses. Dependencies are not delayed.
		StartCallsLater(ctx context.Context, delay Delay, aws ...awaitable.Awaitable) ([]*future.Future, error)

		// WaitFutures blocks until the mode predicate holds, then partitions
		// the futures into (done, notDone).
		WaitFutures(ctx context.Context, futs []*future.Future, mode future.WaitMode) (done, notDone []*future.Future, err error)

		// StartAndWait submits the awaitables, blocks until all of them
		// settle, and returns their decoded results in input order.
		StartAndWait(ctx context.Context, aws ...awaitable.Awaitable) ([]any, error)
	}

	// Request is the handle on one invocation of an application. Output
	// blocks until the root future resolves and yields the decoded result
	// or the request failure.
	Request interface {
		// ID returns the request id issued at submission.
		ID() string
		// Output blocks until the request finishes, then returns the decoded
		// application output or re-raises the request failure.
		Output(ctx context.Context) (any, error)
	}
)

type ctxKey struct{}

// WithRunner binds r into the context. Runners bind themselves before
// dispatching user code; tests bind stubs.
func WithRunner(ctx context.Context, r Runner) context.Context {
	return context.WithValue(ctx, ctxKey{}, r)
}

// FromContext returns the bound runner. A miss means the caller is outside
// any request dispatch, which is SDK misuse.
func FromContext(ctx context.Context) (Runner, error) {
	r, ok := ctx.Value(ctxKey{}).(Runner)
	if !ok || r == nil {
		return nil, sdkerrors.NewUsageError("no runner bound to this context")
	}
	return r, nil
}
