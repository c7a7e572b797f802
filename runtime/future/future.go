// Package future provides the handle side of the awaitable model: a Future
// tracks one awaitable from pending to result or error, supports blocking
// reads with deadlines, and powers the multi-future wait modes.
package future

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tensorlakeai/tensorlake-go/runtime/awaitable"
	"github.com/tensorlakeai/tensorlake-go/runtime/sdkerrors"
	"github.com/tensorlakeai/tensorlake-go/runtime/serializer"
)

// Future is the handle on work in progress. It shares its awaitable's id,
// owns that awaitable exclusively, and transitions exactly once from pending
// to completed or failed. Futures hold a mutex and must not be copied;
// identity matters.
type Future struct {
	id        awaitable.ID
	source    awaitable.Awaitable
	notBefore time.Time
	kind      Kind

	ready chan struct{}

	mu      sync.Mutex
	settled bool
	payload *serializer.Payload
	err     error
}

// Option configures a future at creation.
type Option func(*Future)

// WithDelay schedules the future no earlier than now plus d. Negative
// delays are treated as zero.
func WithDelay(d time.Duration) Option {
	return func(f *Future) {
		if d > 0 {
			f.notBefore = time.Now().Add(d)
		}
	}
}

// WithNotBefore schedules the future no earlier than the absolute time t.
func WithNotBefore(t time.Time) Option {
	return func(f *Future) { f.notBefore = t }
}

// New creates a pending future owning the given awaitable. The future id is
// the awaitable id.
func New(a awaitable.Awaitable, opts ...Option) *Future {
	f := &Future{
		id:     a.ID(),
		source: a,
		ready:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ID returns the future's id, equal to its awaitable's id.
func (f *Future) ID() awaitable.ID { return f.id }

// Source returns the owned awaitable.
func (f *Future) Source() awaitable.Awaitable { return f.source }

// NotBefore returns the earliest wall-clock dispatch time; the zero time
// means dispatch immediately.
func (f *Future) NotBefore() time.Time { return f.notBefore }

// Ready returns a channel closed when the future settles.
func (f *Future) Ready() <-chan struct{} { return f.ready }

// Done reports whether the future has settled, without blocking.
func (f *Future) Done() bool {
	select {
	case <-f.ready:
		return true
	default:
		return false
	}
}

// Err returns the failure after the future settles, nil while pending or on
// success.
func (f *Future) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Complete settles the future with an encoded result payload. Settling a
// settled future is a contract violation.
func (f *Future) Complete(p *serializer.Payload) error {
	return f.settle(p, nil)
}

// Fail settles the future with an error.
func (f *Future) Fail(err error) error {
	if err == nil {
		err = sdkerrors.NewInternalError("future %s failed with nil error", f.id)
	}
	return f.settle(nil, err)
}

func (f *Future) settle(p *serializer.Payload, err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settled {
		return sdkerrors.NewInternalError("future %s settled twice", f.id)
	}
	f.settled = true
	f.payload = p
	f.err = err
	close(f.ready)
	return nil
}

// Payload blocks until the future settles or ctx ends and returns the raw
// encoded result. An elapsed deadline maps to the timeout error and leaves
// the future untouched.
func (f *Future) Payload(ctx context.Context) (*serializer.Payload, error) {
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, sdkerrors.ErrTimeout
		}
		return nil, ctx.Err()
	case <-f.ready:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

// Result blocks until the future settles or ctx ends, re-raises the stored
// failure, and otherwise decodes the result payload.
func (f *Future) Result(ctx context.Context) (any, error) {
	p, err := f.Payload(ctx)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	return p.Decode()
}

// ResultWithTimeout is Result bounded by an explicit timeout. A timeout of
// zero or less performs a non-blocking check: pending futures report the
// timeout error immediately and stay pending.
func (f *Future) ResultWithTimeout(ctx context.Context, timeout time.Duration) (any, error) {
	if timeout <= 0 {
		if !f.Done() {
			return nil, sdkerrors.ErrTimeout
		}
		return f.Result(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return f.Result(tctx)
}

// MarshalJSON always fails: futures are handles, not data.
func (f *Future) MarshalJSON() ([]byte, error) {
	return nil, serializer.ErrNotEncodable
}

// MarshalCBOR always fails: futures are handles, not data.
func (f *Future) MarshalCBOR() ([]byte, error) {
	return nil, serializer.ErrNotEncodable
}
