package local

import (
	"context"
	"time"

	"github.com/tensorlakeai/tensorlake-go/runtime/awaitable"
	"github.com/tensorlakeai/tensorlake-go/runtime/future"
	"github.com/tensorlakeai/tensorlake-go/runtime/runner"
	"github.com/tensorlakeai/tensorlake-go/runtime/sdkerrors"
)

// The hook methods implement runner.Runner for code dispatched by this
// runner. Each is a cancellation point: once the request-exception slot is
// set the hook returns the stop signal instead of performing work.

// StartCalls registers the awaitables and their dependency trees on the
// control thread and returns their pending futures in input order.
func (r *Runner) StartCalls(ctx context.Context, aws ...awaitable.Awaitable) ([]*future.Future, error) {
	return r.StartCallsLater(ctx, runner.Delay{}, aws...)
}

// StartCallsLater is StartCalls with a start delay applied to the submitted
// futures. Dependencies dispatch as soon as they are runnable.
func (r *Runner) StartCallsLater(ctx context.Context, delay runner.Delay, aws ...awaitable.Awaitable) ([]*future.Future, error) {
	if err := r.checkStop(); err != nil {
		return nil, err
	}
	if err := delay.Validate(); err != nil {
		return nil, err
	}
	if len(aws) == 0 {
		return nil, nil
	}
	batch := &submitBatch{
		aws:       aws,
		notBefore: delay.NotBefore(time.Now()),
		reply:     make(chan submitReply, 1),
	}
	select {
	case r.submitCh <- batch:
	case <-r.done:
		return nil, r.finishedErr()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case rep := <-batch.reply:
		return rep.futs, rep.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WaitFutures blocks until the mode predicate holds, then partitions futs
// into (done, notDone) in input order. A request failure settles every
// pending future, so blocked waiters unwind promptly; the next hook call
// then reports the stop signal.
func (r *Runner) WaitFutures(ctx context.Context, futs []*future.Future, mode future.WaitMode) (done, notDone []*future.Future, err error) {
	if err := r.checkStop(); err != nil {
		return nil, nil, err
	}
	done, notDone = future.Wait(ctx, futs, mode)
	return done, notDone, nil
}

// StartAndWait submits the awaitables, waits for all of them to settle, and
// returns their decoded results in input order. The first failure in input
// order is returned as the error.
func (r *Runner) StartAndWait(ctx context.Context, aws ...awaitable.Awaitable) ([]any, error) {
	futs, err := r.StartCalls(ctx, aws...)
	if err != nil {
		return nil, err
	}
	if _, _, err := r.WaitFutures(ctx, futs, future.AllCompleted); err != nil {
		return nil, err
	}
	out := make([]any, len(futs))
	for i, f := range futs {
		v, rerr := f.Result(ctx)
		if rerr != nil {
			return nil, rerr
		}
		out[i] = v
	}
	return out, nil
}

// checkStop is the cancellation point at every hook entry.
func (r *Runner) checkStop() error {
	if r.slot.get() != nil {
		return sdkerrors.ErrAborted
	}
	return nil
}

// finishedErr reports why the control loop no longer accepts work.
func (r *Runner) finishedErr() error {
	if r.slot.get() != nil {
		return sdkerrors.ErrAborted
	}
	return sdkerrors.NewUsageError("request already finished; the runner accepts no further work")
}
