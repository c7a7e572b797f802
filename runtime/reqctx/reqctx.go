// Package reqctx provides the per-request context visible to running
// functions: the request id, a key/value state store, a progress reporter,
// and a metrics recorder.
//
// The context is bound for the duration of one function dispatch and is
// reachable only through the context.Context the runner hands the function.
// Goroutines detached from that context get ErrNoContext rather than
// silently reading another request's state.
//
// State values are encoded with the self-describing binary codec on both
// the in-memory and the loopback HTTP paths, so local and remote semantics
// match byte for byte.
package reqctx

import (
	"context"
	"errors"
	"time"
)

// ErrNoContext reports a request-context read outside a function dispatch,
// typically from a goroutine the user spawned without propagating the
// runner's context.
var ErrNoContext = errors.New("no request context bound: not inside a function dispatch")

type (
	// State is the per-request key/value store. Values round-trip through
	// the binary codec, so what comes back is the codec's representation of
	// what went in, not the identical Go value.
	State interface {
		// Set encodes value and stores it under key, replacing any previous
		// value.
		Set(ctx context.Context, key string, value any) error
		// Get decodes the value stored under key. The boolean reports
		// whether the key was present.
		Get(ctx context.Context, key string) (any, bool, error)
	}

	// Progress reports user-visible completion of long work.
	Progress interface {
		// Report publishes current/total progress with an optional message.
		Report(ctx context.Context, current, total uint64, message string) error
	}

	// Metrics records user metrics scoped to the request.
	Metrics interface {
		// Counter adds value to the named counter.
		Counter(ctx context.Context, name string, value float64) error
		// Timer records a duration observation.
		Timer(ctx context.Context, name string, d time.Duration) error
		// Gauge records a point-in-time value.
		Gauge(ctx context.Context, name string, value float64) error
	}

	// Context is the request-scoped handle exposed to user functions.
	Context struct {
		requestID string
		state     State
		progress  Progress
		metrics   Metrics
	}

	// Option configures a Context at creation.
	Option func(*Context)
)

// WithState selects the state backend.
func WithState(s State) Option {
	return func(c *Context) { c.state = s }
}

// WithProgress selects the progress backend.
func WithProgress(p Progress) Option {
	return func(c *Context) { c.progress = p }
}

// WithMetrics selects the metrics backend.
func WithMetrics(m Metrics) Option {
	return func(c *Context) { c.metrics = m }
}

// New constructs a request context. Backends default to in-memory state and
// discarding progress and metrics sinks.
func New(requestID string, opts ...Option) *Context {
	c := &Context{requestID: requestID}
	for _, opt := range opts {
		opt(c)
	}
	if c.state == nil {
		c.state = NewMemoryState()
	}
	if c.progress == nil {
		c.progress = nopProgress{}
	}
	if c.metrics == nil {
		c.metrics = nopMetrics{}
	}
	return c
}

// RequestID returns the id of the request this context belongs to.
func (c *Context) RequestID() string { return c.requestID }

// State returns the request's key/value store.
func (c *Context) State() State { return c.state }

// Progress returns the request's progress reporter.
func (c *Context) Progress() Progress { return c.progress }

// Metrics returns the request's metrics recorder.
func (c *Context) Metrics() Metrics { return c.metrics }

type ctxKey struct{}

// WithContext binds rc into ctx for the duration of one function dispatch.
func WithContext(ctx context.Context, rc *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, rc)
}

// FromContext returns the bound request context, or ErrNoContext when the
// caller is outside a dispatch.
func FromContext(ctx context.Context) (*Context, error) {
	rc, ok := ctx.Value(ctxKey{}).(*Context)
	if !ok || rc == nil {
		return nil, ErrNoContext
	}
	return rc, nil
}

type (
	nopProgress struct{}
	nopMetrics  struct{}
)

func (nopProgress) Report(context.Context, uint64, uint64, string) error { return nil }

func (nopMetrics) Counter(context.Context, string, float64) error     { return nil }
func (nopMetrics) Timer(context.Context, string, time.Duration) error { return nil }
func (nopMetrics) Gauge(context.Context, string, float64) error       { return nil }
