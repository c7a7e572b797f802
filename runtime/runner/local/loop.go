package local

import (
	"context"
	"time"

	"github.com/tensorlakeai/tensorlake-go/runtime/awaitable"
	"github.com/tensorlakeai/tensorlake-go/runtime/events"
	"github.com/tensorlakeai/tensorlake-go/runtime/future"
	"github.com/tensorlakeai/tensorlake-go/runtime/sdkerrors"
	"github.com/tensorlakeai/tensorlake-go/runtime/serializer"
)

// loop is the control goroutine. Each pass launches every runnable future,
// then blocks for one submission, one completion, or a tick, whichever comes
// first. The loop exits when every known future has settled and nothing is
// in flight, or through the drain path once the request-exception slot is
// set.
func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()
	for {
		if err := r.slot.get(); err != nil {
			r.drain(ctx, err)
			return
		}
		r.launchRunnable(ctx)
		if r.inFlight == 0 && r.allSettled() {
			r.publish(ctx, events.NewRequestFinished(r.requestID, nil))
			r.logger.Debug(ctx, "request finished", "request_id", r.requestID, "outcome", events.OutcomeSuccess)
			return
		}
		select {
		case batch := <-r.submitCh:
			futs, err := r.registerBatch(ctx, batch.aws, batch.notBefore)
			batch.reply <- submitReply{futs: futs, err: err}
		case c := <-r.resultCh:
			r.inFlight--
			r.processCompletion(ctx, c)
		case <-ticker.C:
		case <-ctx.Done():
			r.slot.set(ctx.Err())
		}
	}
}

// launchRunnable hands every runnable future to a worker, in registration
// order, until the pool is exhausted. A future is runnable when it is
// pending, not already handed out, its start delay has elapsed, and every
// dependency blob is committed.
func (r *Runner) launchRunnable(ctx context.Context) {
	now := time.Now()
	for _, id := range r.order {
		lf := r.futures[id]
		if lf.fut.Done() {
			continue
		}
		if _, running := r.runs[id]; running {
			continue
		}
		call, ok := lf.fut.Source().(*awaitable.FunctionCall)
		if !ok {
			// Fold placeholders settle by propagation, never by a run.
			continue
		}
		if nb := lf.fut.NotBefore(); !nb.IsZero() && now.Before(nb) {
			continue
		}
		inputs, ready := r.snapshotInputs(call)
		if !ready {
			continue
		}
		select {
		case r.sem <- struct{}{}:
		default:
			return
		}
		r.runs[id] = &futureRun{futureID: id, started: now}
		r.inFlight++
		r.logger.Debug(ctx, "future launched",
			"request_id", r.requestID, "future_id", string(id), "function", call.Function(), "kind", lf.fut.Kind().String())
		go r.runFuture(ctx, lf, call, inputs)
	}
}

// allSettled reports whether every tracked future has settled.
func (r *Runner) allSettled() bool {
	for _, id := range r.order {
		if !r.futures[id].fut.Done() {
			return false
		}
	}
	return true
}

// snapshotInputs clones the blobs a call's references resolve to. The second
// result is false while any dependency is still pending, including failed
// dependencies, whose blobs never appear; those futures are released by the
// drain path instead.
func (r *Runner) snapshotInputs(call *awaitable.FunctionCall) (workerInputs, bool) {
	inputs := make(workerInputs)
	if !r.collectBlobs(call.Args(), inputs) {
		return nil, false
	}
	for _, arg := range call.Kwargs() {
		if !r.collectBlobs([]awaitable.Arg{arg}, inputs) {
			return nil, false
		}
	}
	return inputs, true
}

func (r *Runner) collectBlobs(args []awaitable.Arg, into workerInputs) bool {
	for _, a := range args {
		if a.IsValue() {
			continue
		}
		if list, ok := a.Node().(*awaitable.List); ok {
			if !r.collectBlobs(list.Items(), into) {
				return false
			}
			continue
		}
		blob, ok := r.blobs[a.Node().ID()]
		if !ok {
			return false
		}
		into[a.Node().ID()] = blob.Clone()
	}
	return true
}

// processCompletion applies one worker result: a failure trips the slot, a
// returned awaitable becomes a tail call, and a plain value is encoded with
// the future's effective output serializer and committed.
func (r *Runner) processCompletion(ctx context.Context, c completion) {
	lf, ok := r.futures[c.id]
	if !ok {
		r.slot.set(sdkerrors.NewInternalError("completion for unknown future %s", c.id))
		return
	}
	r.logger.Debug(ctx, "run published",
		"request_id", r.requestID, "future_id", string(c.id), "attempts", c.attempts, "failed", c.err != nil)
	if c.err != nil {
		r.failFuture(ctx, lf, c.err)
		return
	}
	switch v := c.value.(type) {
	case *awaitable.List:
		r.failFuture(ctx, lf, sdkerrors.NewUsageError(
			"future %s returned a list awaitable; return a call, a reduce, or a plain value", c.id))
	case awaitable.Awaitable:
		r.handleTail(ctx, lf, v)
	default:
		ser, err := r.effectiveOutputSerializer(lf)
		if err != nil {
			r.failFuture(ctx, lf, err)
			return
		}
		payload, err := serializer.EncodePayload(ser, v)
		if err != nil {
			r.failFuture(ctx, lf, err)
			return
		}
		r.commit(ctx, lf, payload)
	}
}

// failFuture settles a future with err and trips the request-exception slot.
func (r *Runner) failFuture(ctx context.Context, lf *localFuture, err error) {
	_ = lf.fut.Fail(err)
	r.slot.set(err)
	r.logger.Debug(ctx, "future failed",
		"request_id", r.requestID, "future_id", string(lf.fut.ID()), "err", err)
}

// commit stores the result blob under the future's id, completes the
// future, and propagates clones down the consumer chain so every future a
// tail call promised settles with its own copy.
func (r *Runner) commit(ctx context.Context, lf *localFuture, p *serializer.Payload) {
	r.blobs[lf.fut.ID()] = p
	if err := lf.fut.Complete(p); err != nil {
		r.slot.set(err)
		return
	}
	r.logger.Debug(ctx, "future completed",
		"request_id", r.requestID, "future_id", string(lf.fut.ID()), "serializer", p.Serializer)
	for next := lf.consumer; next != ""; {
		nlf, ok := r.futures[next]
		if !ok {
			r.slot.set(sdkerrors.NewInternalError("consumer %s missing from future table", next))
			return
		}
		clone := p.Clone()
		r.blobs[next] = clone
		if err := nlf.fut.Complete(clone); err != nil {
			r.slot.set(err)
			return
		}
		r.logger.Debug(ctx, "future fulfilled by producer",
			"request_id", r.requestID, "future_id", string(next), "producer", string(lf.fut.ID()))
		next = nlf.consumer
	}
}

// effectiveOutputSerializer resolves the codec encoding a future's result:
// the awaitable's inherited override when present, the function default
// otherwise.
func (r *Runner) effectiveOutputSerializer(lf *localFuture) (string, error) {
	var fnName, override string
	switch src := lf.fut.Source().(type) {
	case *awaitable.FunctionCall:
		fnName, override = src.Function(), src.OutputSerializer()
	case *awaitable.Reduce:
		fnName, override = src.Function(), src.OutputSerializer()
	default:
		return "", sdkerrors.NewInternalError("future %s carries no output serializer", lf.fut.ID())
	}
	if override != "" {
		return override, nil
	}
	return r.reg.OutputSerializer(fnName)
}

// handleTail wires a returned awaitable to the future that returned it. A
// fresh awaitable is registered with its output serializer rewritten to the
// caller's effective one and inherits the caller's start delay; an
// already-tracked awaitable only gains the consumer edge. Either way the
// caller's future settles when the returned computation settles.
func (r *Runner) handleTail(ctx context.Context, lf *localFuture, tail awaitable.Awaitable) {
	callerID := lf.fut.ID()
	r.logger.Debug(ctx, "tail call",
		"request_id", r.requestID, "future_id", string(callerID), "tail_id", string(tail.ID()))

	if existing, ok := r.futures[tail.ID()]; ok {
		if existing.consumer != "" && existing.consumer != callerID {
			r.failFuture(ctx, lf, sdkerrors.NewUsageError(
				"awaitable %s already fulfills future %s; a result cannot fan out to a second consumer",
				tail.ID(), existing.consumer))
			return
		}
		existing.consumer = callerID
		if blob, ok := r.blobs[tail.ID()]; ok {
			r.commit(ctx, lf, blob.Clone())
		}
		return
	}

	ser, err := r.effectiveOutputSerializer(lf)
	if err != nil {
		r.failFuture(ctx, lf, err)
		return
	}
	var rewritten awaitable.Awaitable
	switch t := tail.(type) {
	case *awaitable.FunctionCall:
		rewritten = t.WithOutputSerializer(ser)
	case *awaitable.Reduce:
		rewritten = t.WithOutputSerializer(ser)
	default:
		r.failFuture(ctx, lf, sdkerrors.NewUsageError("unsupported awaitable kind %q returned from a function", tail.Kind()))
		return
	}

	p := newPlan(r)
	if err := p.addNode(rewritten, lf.fut.NotBefore(), future.KindTailCall, false); err != nil {
		r.failFuture(ctx, lf, err)
		return
	}
	if err := p.link(rewritten.ID(), callerID); err != nil {
		r.failFuture(ctx, lf, err)
		return
	}
	r.apply(ctx, p)
}

// drain runs once the request-exception slot is set. Pending futures fail
// immediately so user code blocked on them unwinds: the root future takes
// the request failure itself, every other future takes the stop signal. The
// loop then keeps answering submissions with the stop signal until the last
// in-flight run publishes, and exits.
func (r *Runner) drain(ctx context.Context, cause error) {
	r.logger.Debug(ctx, "request draining", "request_id", r.requestID, "err", cause)
	for _, id := range r.order {
		lf := r.futures[id]
		if lf.fut.Done() {
			continue
		}
		if id == r.rootID {
			_ = lf.fut.Fail(cause)
		} else {
			_ = lf.fut.Fail(sdkerrors.ErrAborted)
		}
	}
	for r.inFlight > 0 {
		select {
		case batch := <-r.submitCh:
			batch.reply <- submitReply{err: sdkerrors.ErrAborted}
		case <-r.resultCh:
			r.inFlight--
		}
	}
	r.publish(ctx, events.NewRequestFinished(r.requestID, cause))
	r.logger.Debug(ctx, "request finished",
		"request_id", r.requestID, "outcome", events.OutcomeFailure, "err", cause)
}
