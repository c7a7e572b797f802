package local

import (
	"context"
	"errors"
	"time"

	"github.com/tensorlakeai/tensorlake-go/runtime/awaitable"
	"github.com/tensorlakeai/tensorlake-go/runtime/events"
	"github.com/tensorlakeai/tensorlake-go/runtime/function"
	"github.com/tensorlakeai/tensorlake-go/runtime/reqctx"
	"github.com/tensorlakeai/tensorlake-go/runtime/runner"
	"github.com/tensorlakeai/tensorlake-go/runtime/sdkerrors"
)

// runFuture drives one launched future to a terminal state on a worker
// goroutine and publishes exactly one completion. Failures retry inside the
// worker under the function's effective policy; request errors, usage
// errors, and the stop signal end the run immediately.
func (r *Runner) runFuture(ctx context.Context, lf *localFuture, call *awaitable.FunctionCall, inputs workerInputs) {
	defer func() { <-r.sem }()

	id := lf.fut.ID()
	fn, ok := r.reg.Function(call.Function())
	if !ok {
		r.resultCh <- completion{id: id, err: sdkerrors.NewUsageError("unknown function %q", call.Function()), attempts: 1}
		return
	}
	policy := r.app.EffectiveRetry(fn)
	attempts := policy.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		value, err := r.invoke(ctx, fn, call, inputs, attempt)
		if err == nil {
			r.resultCh <- completion{id: id, value: value, attempts: attempt}
			return
		}
		lastErr = err
		if !retryable(err) {
			r.resultCh <- completion{id: id, err: err, attempts: attempt}
			return
		}
		if attempt == attempts {
			break
		}
		r.logger.Debug(ctx, "function run retrying",
			"request_id", r.requestID, "future_id", string(id), "function", fn.Name(), "attempt", attempt, "err", err)
		if !r.sleepRetry(ctx, policy.Delay(attempt)) {
			r.resultCh <- completion{id: id, err: sdkerrors.ErrAborted, attempts: attempt}
			return
		}
	}
	r.resultCh <- completion{id: id, err: sdkerrors.NewFunctionError(fn.Name(), attempts, lastErr), attempts: attempts}
}

// retryable classifies one attempt failure. Request errors fail the request
// as raised, usage errors report SDK misuse, and the stop signal means the
// request is already failing; none of those buy anything from another run.
func retryable(err error) bool {
	switch {
	case sdkerrors.IsRequestError(err):
		return false
	case sdkerrors.IsUsageError(err):
		return false
	case errors.Is(err, sdkerrors.ErrAborted):
		return false
	}
	return true
}

// sleepRetry waits out a retry delay. It reports false when the request
// failed or the context ended while waiting, in which case the run aborts
// instead of retrying.
func (r *Runner) sleepRetry(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return r.slot.get() == nil && ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return r.slot.get() == nil && ctx.Err() == nil
	case <-r.slot.tripped():
		return false
	case <-ctx.Done():
		return false
	}
}

// invoke performs one attempt: resolve the receiver for method functions,
// materialize arguments from the input snapshot, bind the dispatch context,
// and run the handler under the call timeout.
func (r *Runner) invoke(ctx context.Context, fn *function.Function, call *awaitable.FunctionCall, inputs workerInputs, attempt int) (value any, err error) {
	start := time.Now()
	r.publish(ctx, events.NewFunctionRunStarted(r.requestID, string(call.ID()), fn.Name(), attempt))
	defer func() {
		d := time.Since(start)
		r.publish(ctx, events.NewFunctionRunCompleted(r.requestID, string(call.ID()), fn.Name(), attempt, d, err))
		outcome := events.OutcomeSuccess
		if err != nil {
			outcome = events.OutcomeFailure
		}
		r.metrics.IncCounter("function_runs", 1, "function", fn.Name(), "outcome", outcome)
		r.metrics.RecordTimer("function_run_duration", d, "function", fn.Name())
	}()

	inv := &function.Invocation{}
	if fn.Class() != "" {
		cls, ok := r.reg.Class(fn.Class())
		if !ok {
			return nil, sdkerrors.NewUsageError("function %q references unregistered class %q", fn.Name(), fn.Class())
		}
		receiver, cerr := r.classes.instance(ctx, cls, fn.Timeouts().Initialization)
		if cerr != nil {
			return nil, cerr
		}
		inv.Receiver = receiver
	}

	if inv.Args, err = r.materializeArgs(fn, call.Args(), inputs); err != nil {
		return nil, err
	}
	if kwargs := call.Kwargs(); len(kwargs) > 0 {
		inv.Kwargs = make(map[string]any, len(kwargs))
		for name, arg := range kwargs {
			v, aerr := r.materializeArg(arg, kwargHint(fn, name), inputs)
			if aerr != nil {
				return nil, aerr
			}
			inv.Kwargs[name] = v
		}
	}

	wctx := runner.WithRunner(reqctx.WithContext(ctx, r.rc), r)
	wctx, span := r.tracer.Start(wctx, "function_run")
	defer span.End()
	if t := fn.Timeouts().Call; t > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(wctx, t)
		defer cancel()
	}

	value, err = fn.Handler()(wctx, inv)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if _, isList := value.(*awaitable.List); isList {
		return nil, sdkerrors.NewUsageError(
			"function %q returned a list awaitable; gather results with a wait or fold them with a reduce", fn.Name())
	}
	return value, nil
}

// materializeArgs decodes the positional arguments in declaration order.
func (r *Runner) materializeArgs(fn *function.Function, args []awaitable.Arg, inputs workerInputs) ([]any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make([]any, len(args))
	for i, arg := range args {
		v, err := r.materializeArg(arg, positionalHint(fn, i), inputs)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// materializeArg resolves one argument: plain values pass through untouched,
// list references expand item by item into a slice, and dependency
// references decode their snapshotted blobs. A blob without a recorded type
// token decodes through the declared parameter hint.
func (r *Runner) materializeArg(arg awaitable.Arg, hint string, inputs workerInputs) (any, error) {
	if arg.IsValue() {
		return arg.Value(), nil
	}
	if list, ok := arg.Node().(*awaitable.List); ok {
		items := list.Items()
		out := make([]any, len(items))
		for i, item := range items {
			v, err := r.materializeArg(item, "", inputs)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	p, err := inputs.payload(arg.Node().ID())
	if err != nil {
		return nil, err
	}
	if p.TypeHint == "" && hint != "" {
		return p.DecodeAs(hint)
	}
	return p.Decode()
}

// positionalHint returns the declared type token of the i-th parameter.
func positionalHint(fn *function.Function, i int) string {
	params := fn.Params()
	if i < 0 || i >= len(params) {
		return ""
	}
	return params[i].TypeToken
}

// kwargHint returns the declared type token of the named parameter.
func kwargHint(fn *function.Function, name string) string {
	for _, p := range fn.Params() {
		if p.Name == name {
			return p.TypeToken
		}
	}
	return ""
}
