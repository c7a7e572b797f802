package remote

import (
	"context"
	"sync"

	"github.com/tensorlakeai/tensorlake-go/client"
	"github.com/tensorlakeai/tensorlake-go/manifest"
	"github.com/tensorlakeai/tensorlake-go/runtime/sdkerrors"
	"github.com/tensorlakeai/tensorlake-go/runtime/telemetry"
)

// Request is the handle on one scheduler-driven invocation. Output blocks
// on the progress stream; OutputNow polls without blocking. Terminal
// outcomes are cached so repeated reads hit the scheduler once.
type Request struct {
	client   *client.Client
	logger   telemetry.Logger
	app      string
	manifest *manifest.Manifest
	id       string

	mu     sync.Mutex
	done   bool
	value  any
	outErr error
}

// ID returns the scheduler-assigned request id.
func (rq *Request) ID() string { return rq.id }

// Output follows the request's progress stream until it finishes, then
// fetches the outcome: the decoded application output on success, the
// scheduler-reported request error on failure. Transport errors are not
// cached, so a later call retries.
func (rq *Request) Output(ctx context.Context) (any, error) {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	if rq.done {
		return rq.value, rq.outErr
	}

	err := rq.client.StreamProgress(ctx, rq.app, rq.id, func(ev client.StreamEvent) error {
		rq.logger.Debug(ctx, "request progress", "request_id", rq.id, "event", ev.Event)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rq.fetchOutcome(ctx)
}

// OutputNow fetches the outcome without blocking: if the request has not
// finished it returns sdkerrors.ErrRequestNotFinished.
func (rq *Request) OutputNow(ctx context.Context) (any, error) {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	if rq.done {
		return rq.value, rq.outErr
	}
	return rq.fetchOutcome(ctx)
}

// Metadata fetches the scheduler's current view of the request.
func (rq *Request) Metadata(ctx context.Context) (*client.RequestMetadata, error) {
	return rq.client.GetRequest(ctx, rq.app, rq.id)
}

// fetchOutcome resolves a finished request into its cached terminal state.
// Callers hold rq.mu.
func (rq *Request) fetchOutcome(ctx context.Context) (any, error) {
	md, err := rq.client.GetRequest(ctx, rq.app, rq.id)
	if err != nil {
		return nil, err
	}
	if !md.Outcome.Finished() {
		return nil, sdkerrors.ErrRequestNotFinished
	}
	if ferr := md.Outcome.Err(); ferr != nil {
		rq.done = true
		rq.outErr = ferr
		return nil, ferr
	}

	out, err := rq.client.GetRequestOutput(ctx, rq.app, rq.id)
	if err != nil {
		return nil, err
	}
	v, err := rq.decodeOutput(out)
	if err != nil {
		return nil, err
	}
	rq.done = true
	rq.value = v
	return v, nil
}

// decodeOutput converts raw output bytes into a value using the recorded
// content type, falling back to the manifest's output serializer and return
// type hint when the response carries neither.
func (rq *Request) decodeOutput(out *client.RequestOutput) (any, error) {
	p := out.Payload()
	if p.Serializer == "" && p.ContentType == "" {
		p.Serializer = rq.manifest.Entrypoint.OutputSerializer
	}
	if p.TypeHint == "" {
		if hints, err := rq.manifest.Entrypoint.OutputHints(); err == nil && len(hints) > 0 {
			p.TypeHint = hints[0].TypeHint
		}
	}
	return p.Decode()
}
