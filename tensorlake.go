// Package tensorlake is the SDK surface for building and running durable
// function applications. Declare functions, classes, and applications at
// package init; compose calls into awaitable graphs; run them on a local
// runner (in-process worker pool) or a remote runner (the scheduler).
//
// Declarations self-register into the default registry, so importing a
// package that declares functions is enough to make them callable:
//
//	var Add = tensorlake.Function("add", addHandler)
//	var Sum = tensorlake.Application("sum", sumHandler,
//		tensorlake.WithParams(tensorlake.Param{Name: "xs", TypeToken: "[]int"}))
//
// Inside a running function, the SDK is reached through the context passed
// to the handler: Run, Await, and Wait resolve the runner bound to it.
package tensorlake

import (
	"context"
	"io"
	"runtime"
	"time"

	"github.com/tensorlakeai/tensorlake-go/client"
	"github.com/tensorlakeai/tensorlake-go/manifest"
	"github.com/tensorlakeai/tensorlake-go/runtime/awaitable"
	"github.com/tensorlakeai/tensorlake-go/runtime/function"
	"github.com/tensorlakeai/tensorlake-go/runtime/future"
	"github.com/tensorlakeai/tensorlake-go/runtime/registry"
	runnerpkg "github.com/tensorlakeai/tensorlake-go/runtime/runner"
	"github.com/tensorlakeai/tensorlake-go/runtime/runner/local"
	"github.com/tensorlakeai/tensorlake-go/runtime/validate"
)

// Declaration types re-exported so user packages import only this one.
type (
	// Handler is a function body: it receives the decoded invocation and
	// returns a value, a tail-call awaitable, or an error.
	Handler = function.Handler

	// Invocation carries one run's decoded arguments and class receiver.
	Invocation = function.Invocation

	// Option configures a declaration.
	Option = function.Option

	// Param declares one parameter: name, type token, optional schema.
	Param = function.Param

	// Constructor builds a class instance; it takes no user parameters.
	Constructor = function.Constructor

	// RetryPolicy bounds retries of a failing function.
	RetryPolicy = function.RetryPolicy

	// Resources is a function's compute request.
	Resources = function.Resources

	// Timeouts bounds class initialization and function calls.
	Timeouts = function.Timeouts

	// Awaitable is a composable description of work.
	Awaitable = awaitable.Awaitable

	// Future is the handle on work in progress.
	Future = future.Future

	// WaitMode selects the predicate of Wait.
	WaitMode = future.WaitMode

	// Request is the handle on one application invocation.
	Request = runnerpkg.Request
)

// Wait modes.
const (
	FirstCompleted = future.FirstCompleted
	FirstFailure   = future.FirstFailure
	AllCompleted   = future.AllCompleted
)

// Declaration options re-exported from the function package.
var (
	WithDescription        = function.WithDescription
	WithClass              = function.WithClass
	WithInputSerializer    = function.WithInputSerializer
	WithOutputSerializer   = function.WithOutputSerializer
	WithRetryPolicy        = function.WithRetryPolicy
	WithResources          = function.WithResources
	WithTimeouts           = function.WithTimeouts
	WithRegion             = function.WithRegion
	WithMaxConcurrency     = function.WithMaxConcurrency
	WithImage              = function.WithImage
	WithSecrets            = function.WithSecrets
	WithCacheKey           = function.WithCacheKey
	WithParams             = function.WithParams
	WithReturnHint         = function.WithReturnHint
	WithTags               = function.WithTags
	WithDefaultRetryPolicy = function.WithDefaultRetryPolicy
)

// Function declares a function and registers it in the default registry.
// It panics on registration conflicts, which only happen at package init.
func Function(name string, handler Handler, opts ...Option) *function.Function {
	f := function.New(name, handler, withCaller(opts)...)
	if err := registry.Default().RegisterFunction(f); err != nil {
		panic(err)
	}
	return f
}

// Application declares an externally callable entrypoint and registers it
// in the default registry. It panics on registration conflicts.
func Application(name string, handler Handler, opts ...Option) *function.Application {
	a := function.NewApplication(name, handler, withCaller(opts)...)
	if err := registry.Default().RegisterApplication(a); err != nil {
		panic(err)
	}
	return a
}

// Class declares a class with its parameter-free constructor and registers
// it in the default registry. Bind methods to it with WithClass on their
// Function declarations. It panics on registration conflicts.
func Class(name string, ctor Constructor, opts ...Option) *function.Class {
	c := function.NewClass(name, ctor, withCaller(opts)...)
	if err := registry.Default().RegisterClass(c); err != nil {
		panic(err)
	}
	return c
}

// withCaller stamps the user's declaration site so registry conflicts and
// validation findings point at user code, not this package.
func withCaller(opts []Option) []Option {
	_, file, line, ok := runtime.Caller(2)
	if !ok {
		return opts
	}
	out := make([]Option, 0, len(opts)+1)
	out = append(out, function.WithSource(file, line))
	return append(out, opts...)
}

// Registry returns the default registry that declarations register into.
func Registry() *registry.Registry {
	return registry.Default()
}

// NewLocalRunner constructs a single-use local runner over the default
// registry.
func NewLocalRunner(opts ...local.Option) *local.Runner {
	return local.New(registry.Default(), opts...)
}

// Run hands the awaitable to the runner bound to ctx and returns its
// future. It fails when no runner is bound, which means the caller is not
// inside a function run.
func Run(ctx context.Context, aw Awaitable) (*Future, error) {
	r, err := runnerpkg.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	futs, err := r.StartCalls(ctx, aw)
	if err != nil {
		return nil, err
	}
	return futs[0], nil
}

// RunLater is Run with a start delay: the runner will not dispatch the
// returned future before the delay elapses. Dependencies are not delayed.
func RunLater(ctx context.Context, delay time.Duration, aw Awaitable) (*Future, error) {
	r, err := runnerpkg.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	futs, err := r.StartCallsLater(ctx, runnerpkg.After(delay), aw)
	if err != nil {
		return nil, err
	}
	return futs[0], nil
}

// Await runs the awaitable on the bound runner and blocks for its decoded
// result.
func Await(ctx context.Context, aw Awaitable) (any, error) {
	r, err := runnerpkg.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	out, err := r.StartAndWait(ctx, aw)
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// Wait blocks until the mode predicate holds over the futures, then returns
// the (done, notDone) partition.
func Wait(ctx context.Context, futs []*Future, mode WaitMode) (done, notDone []*Future, err error) {
	r, err := runnerpkg.FromContext(ctx)
	if err != nil {
		return nil, nil, err
	}
	return r.WaitFutures(ctx, futs, mode)
}

// Deploy validates the named application, builds its manifest, and upserts
// it to the scheduler with the zipped code archive. Validation errors abort
// before anything is sent.
func Deploy(ctx context.Context, c *client.Client, appName string, code io.Reader) (*manifest.Manifest, error) {
	if err := validate.Check(registry.Default()).Err(); err != nil {
		return nil, err
	}
	m, err := manifest.Build(registry.Default(), appName)
	if err != nil {
		return nil, err
	}
	if err := c.UpsertApplication(ctx, m, code); err != nil {
		return nil, err
	}
	return m, nil
}
