// Package function defines the descriptors behind the SDK decorators: plain
// functions, classes with method functions, and applications (externally
// callable entrypoints). Descriptors are created once with functional
// options, are immutable afterwards, and are registered by qualified name.
package function

import (
	"context"
	"runtime"

	"github.com/tensorlakeai/tensorlake-go/runtime/awaitable"
	"github.com/tensorlakeai/tensorlake-go/runtime/serializer"
)

type (
	// Handler is the user procedure behind a function. The returned value is
	// either a plain result, a *awaitable.FunctionCall, or a
	// *awaitable.Reduce (the latter two are tail calls). Returning a
	// *awaitable.List is a usage error.
	Handler func(ctx context.Context, inv *Invocation) (any, error)

	// Invocation carries the decoded arguments of one function run.
	Invocation struct {
		// Args are the positional arguments in declaration order.
		Args []any
		// Kwargs are the keyword arguments by name.
		Kwargs map[string]any
		// Receiver is the class instance for method functions, nil
		// otherwise.
		Receiver any
	}

	// Function is an immutable function descriptor: the handler plus the
	// configuration attached at declaration time.
	Function struct {
		name       string
		desc       string
		class      string
		handler    Handler
		inputSer   string
		outputSer  string
		retry      *RetryPolicy
		resources  Resources
		timeouts   Timeouts
		region     string
		maxConc    int
		image      string
		secrets    []string
		cacheKey   string
		params     []Param
		returnHint Param
		isAPI      bool
		file       string
		line       int
	}
)

// New constructs a function descriptor. The registration source location is
// captured from the caller unless WithSource overrides it.
func New(name string, handler Handler, opts ...Option) *Function {
	cfg := newConfig(opts)
	f := cfg.function(name, handler)
	if f.file == "" {
		f.file, f.line = callerLocation(2)
	}
	return f
}

func callerLocation(skip int) (string, int) {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "", 0
	}
	return file, line
}

// Name returns the qualified function name.
func (f *Function) Name() string { return f.name }

// Description returns the declared description.
func (f *Function) Description() string { return f.desc }

// Class returns the bound class name, empty for free functions.
func (f *Function) Class() string { return f.class }

// Handler returns the user procedure.
func (f *Function) Handler() Handler { return f.handler }

// InputSerializer returns the codec decoding this function's arguments.
func (f *Function) InputSerializer() string {
	if f.inputSer == "" {
		return serializer.NameJSON
	}
	return f.inputSer
}

// OutputSerializer returns the codec encoding this function's results.
func (f *Function) OutputSerializer() string {
	if f.outputSer == "" {
		return serializer.NameJSON
	}
	return f.outputSer
}

// Retry returns the function's own retry policy and whether one was
// declared; undeclared functions fall back to the application default.
func (f *Function) Retry() (RetryPolicy, bool) {
	if f.retry == nil {
		return RetryPolicy{}, false
	}
	return *f.retry, true
}

// Resources returns the declared compute request.
func (f *Function) Resources() Resources { return f.resources }

// Timeouts returns the declared execution bounds.
func (f *Function) Timeouts() Timeouts { return f.timeouts }

// Region returns the placement region, empty when unconstrained.
func (f *Function) Region() string { return f.region }

// MaxConcurrency returns the per-worker concurrency bound.
func (f *Function) MaxConcurrency() int { return f.maxConc }

// Image returns the container image reference for fleet execution.
func (f *Function) Image() string { return f.image }

// Secrets returns the declared secret names.
func (f *Function) Secrets() []string {
	out := make([]string, len(f.secrets))
	copy(out, f.secrets)
	return out
}

// CacheKey returns the declared cache key, empty when caching is off.
func (f *Function) CacheKey() string { return f.cacheKey }

// Params returns the declared parameters in order.
func (f *Function) Params() []Param {
	out := make([]Param, len(f.params))
	copy(out, f.params)
	return out
}

// ReturnHint returns the declared return type: token and optional schema.
func (f *Function) ReturnHint() Param { return f.returnHint }

// IsAPI reports whether the function is an application entrypoint.
func (f *Function) IsAPI() bool { return f.isAPI }

// File returns the absolute source path captured at declaration.
func (f *Function) File() string { return f.file }

// Line returns the source line captured at declaration.
func (f *Function) Line() int { return f.line }

// Call composes a function-call awaitable over this function. Arguments
// that are themselves awaitables become data-dependency edges; everything
// else is carried as a value.
func (f *Function) Call(args ...any) *awaitable.FunctionCall {
	lifted := make([]awaitable.Arg, len(args))
	for i, a := range args {
		lifted[i] = awaitable.Lift(a)
	}
	return awaitable.NewCall(f.name, lifted...)
}

// Reduce composes a left-fold awaitable using this function as the binary
// step.
func (f *Function) Reduce(inputs ...any) *awaitable.Reduce {
	lifted := make([]awaitable.Arg, len(inputs))
	for i, a := range inputs {
		lifted[i] = awaitable.Lift(a)
	}
	return awaitable.NewReduce(f.name, lifted...)
}

// Arg returns the i-th positional argument or nil when out of range.
func (inv *Invocation) Arg(i int) any {
	if i < 0 || i >= len(inv.Args) {
		return nil
	}
	return inv.Args[i]
}

// Kwarg returns the named keyword argument and whether it was bound.
func (inv *Invocation) Kwarg(name string) (any, bool) {
	v, ok := inv.Kwargs[name]
	return v, ok
}
