// Package local implements the in-process runner: a dependency-driven
// scheduler that takes a root function call and drives the resulting
// awaitable graph to completion on a bounded worker pool.
//
// The control loop is single-threaded and owns all scheduler state: the
// future table, the blob store, and the run table. Workers never touch
// those tables; they receive an input snapshot at launch and publish one
// completion record per run through the result queue. Submissions from
// user code arrive over a channel and are applied on the control thread,
// so no scheduler-state locks exist. The only mutex is per class,
// serializing one-shot instance construction.
//
// A runner instance drives exactly one request and cannot be reused.
package local

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tensorlakeai/tensorlake-go/runtime/awaitable"
	"github.com/tensorlakeai/tensorlake-go/runtime/events"
	"github.com/tensorlakeai/tensorlake-go/runtime/function"
	"github.com/tensorlakeai/tensorlake-go/runtime/future"
	"github.com/tensorlakeai/tensorlake-go/runtime/registry"
	"github.com/tensorlakeai/tensorlake-go/runtime/reqctx"
	"github.com/tensorlakeai/tensorlake-go/runtime/runner"
	"github.com/tensorlakeai/tensorlake-go/runtime/sdkerrors"
	"github.com/tensorlakeai/tensorlake-go/runtime/serializer"
	"github.com/tensorlakeai/tensorlake-go/runtime/telemetry"
)

// Defaults applied when options are omitted. Four workers keep a map fan-out
// fully parallel while one worker blocks in the application body.
const (
	DefaultWorkers = 4
	DefaultTick    = 100 * time.Millisecond
)

type (
	// Runner is the local scheduler. Construct one per request with New,
	// start it with Run, and read the result from the returned request
	// handle. Runner implements runner.Runner for the code it dispatches.
	Runner struct {
		reg     *registry.Registry
		logger  telemetry.Logger
		metrics telemetry.Metrics
		tracer  telemetry.Tracer
		bus     events.Bus
		workers int
		tick    time.Duration

		requestID string
		app       *function.Application
		rootID    awaitable.ID
		rc        *reqctx.Context

		// Control-loop state. Only the control goroutine reads or writes
		// these after Run returns.
		futures  map[awaitable.ID]*localFuture
		blobs    map[awaitable.ID]*serializer.Payload
		runs     map[awaitable.ID]*futureRun
		order    []awaitable.ID
		inFlight int

		submitCh chan *submitBatch
		resultCh chan completion
		sem      chan struct{}

		slot    *exceptionSlot
		classes *classCache

		used bool
		done chan struct{}
	}

	// Option configures a Runner at construction.
	Option func(*Runner)
)

// WithWorkers bounds the worker pool. Values below one are ignored.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithTick overrides the control loop tick used to poll delayed futures.
func WithTick(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.tick = d
		}
	}
}

// WithLogger sets the runner's logger.
func WithLogger(l telemetry.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithMetrics sets the runner's metrics recorder.
func WithMetrics(m telemetry.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithTracer sets the runner's tracer.
func WithTracer(t telemetry.Tracer) Option {
	return func(r *Runner) { r.tracer = t }
}

// WithBus sets the lifecycle event bus the runner publishes to.
func WithBus(b events.Bus) Option {
	return func(r *Runner) { r.bus = b }
}

// New constructs a single-use local runner over the given registry.
func New(reg *registry.Registry, opts ...Option) *Runner {
	r := &Runner{
		reg:     reg,
		workers: DefaultWorkers,
		tick:    DefaultTick,
		futures: make(map[awaitable.ID]*localFuture),
		blobs:   make(map[awaitable.ID]*serializer.Payload),
		runs:    make(map[awaitable.ID]*futureRun),
		slot:    newExceptionSlot(),
		classes: newClassCache(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = telemetry.NewNoopLogger()
	}
	if r.metrics == nil {
		r.metrics = telemetry.NewNoopMetrics()
	}
	if r.tracer == nil {
		r.tracer = telemetry.NewNoopTracer()
	}
	if r.bus == nil {
		r.bus = events.NewBus()
	}
	r.submitCh = make(chan *submitBatch)
	r.resultCh = make(chan completion, r.workers)
	r.sem = make(chan struct{}, r.workers)
	return r
}

// RequestID returns the id issued by Run, empty beforehand.
func (r *Runner) RequestID() string { return r.requestID }

// Bus returns the runner's event bus for subscribing before Run.
func (r *Runner) Bus() events.Bus { return r.bus }

// Run submits one invocation of the named application and starts the
// control loop. It returns immediately with the request handle; Output on
// the handle blocks until the root future resolves.
func (r *Runner) Run(ctx context.Context, appName string, args ...any) (runner.Request, error) {
	app, ok := r.reg.Application(appName)
	if !ok {
		return nil, sdkerrors.NewUsageError("unknown application %q", appName)
	}
	if r.used {
		return nil, sdkerrors.NewUsageError("runner already drove a request; construct a new one")
	}
	r.used = true
	r.requestID = uuid.NewString()
	r.app = app
	r.rc = reqctx.New(r.requestID,
		reqctx.WithState(reqctx.NewMemoryState()),
		reqctx.WithProgress(reqctx.NewConsoleProgress(r.requestID, r.logger, r.bus)),
		reqctx.WithMetrics(reqctx.NewTelemetryMetrics(r.requestID, r.metrics)),
	)

	root := app.Call(args...)
	r.rootID = root.ID()

	// The loop has not started yet, so the root batch applies directly.
	futs, err := r.registerBatch(ctx, []awaitable.Awaitable{root}, time.Time{})
	if err != nil {
		return nil, err
	}

	r.publish(ctx, events.NewRequestStarted(r.requestID, appName))
	r.logger.Debug(ctx, "request accepted", "request_id", r.requestID, "application", appName, "root", string(r.rootID))

	go r.loop(ctx)

	return &request{id: r.requestID, root: futs[0], app: app}, nil
}

// publish sends an event to the bus, logging subscriber failures instead of
// letting them take the request down.
func (r *Runner) publish(ctx context.Context, e events.Event) {
	if err := r.bus.Publish(ctx, e); err != nil {
		r.logger.Warn(ctx, "event subscriber failed", "event", string(e.Type()), "err", err)
	}
}

// request is the local request handle. The root future carries the request
// outcome: the drain path stores the request failure there, so Output never
// sees the bare stop signal.
type request struct {
	id   string
	root *future.Future
	app  *function.Application
}

// ID returns the request id.
func (rq *request) ID() string { return rq.id }

// Output blocks until the root future resolves, re-raises the request
// failure, and otherwise decodes the application output. When the root
// payload carries no type token the application's declared return hint
// drives decoding.
func (rq *request) Output(ctx context.Context) (any, error) {
	p, err := rq.root.Payload(ctx)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	if p.TypeHint == "" {
		if hint := rq.app.ReturnHint().TypeToken; hint != "" {
			return p.DecodeAs(hint)
		}
	}
	return p.Decode()
}
