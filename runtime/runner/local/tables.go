package local

import (
	"context"
	"sync"
	"time"

	"github.com/tensorlakeai/tensorlake-go/runtime/awaitable"
	"github.com/tensorlakeai/tensorlake-go/runtime/function"
	"github.com/tensorlakeai/tensorlake-go/runtime/future"
	"github.com/tensorlakeai/tensorlake-go/runtime/sdkerrors"
	"github.com/tensorlakeai/tensorlake-go/runtime/serializer"
)

type (
	// localFuture is one row of the future table: the future plus the id of
	// the downstream future its output also fulfills, when a tail call or a
	// collapsed reducer linked one.
	localFuture struct {
		fut      *future.Future
		consumer awaitable.ID
	}

	// futureRun is one row of the run table, recording that a future has
	// been handed to a worker so the launch scan skips it. Entries persist
	// after the run publishes: a tail-calling future stays pending until its
	// replacement settles and must not launch again.
	futureRun struct {
		futureID awaitable.ID
		started  time.Time
	}

	// completion is the single record a worker publishes when a run reaches
	// a terminal state. Exactly one of value and err is meaningful; value
	// may itself be an awaitable when the function tail-called.
	completion struct {
		id       awaitable.ID
		value    any
		err      error
		attempts int
	}

	// submitBatch carries a hook submission to the control loop.
	submitBatch struct {
		aws       []awaitable.Awaitable
		notBefore time.Time
		reply     chan submitReply
	}

	submitReply struct {
		futs []*future.Future
		err  error
	}
)

// exceptionSlot is the request-exception slot: the first terminal failure
// wins and every later set is a no-op. Workers poll it between steps and the
// control loop drains once it is set.
type exceptionSlot struct {
	mu  sync.Mutex
	err error
	ch  chan struct{}
}

func newExceptionSlot() *exceptionSlot {
	return &exceptionSlot{ch: make(chan struct{})}
}

// set stores err if the slot is empty and reports whether it won.
func (s *exceptionSlot) set(err error) bool {
	if err == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false
	}
	s.err = err
	close(s.ch)
	return true
}

// get returns the stored failure, nil while the request is healthy.
func (s *exceptionSlot) get() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// tripped returns a channel closed once the slot is set.
func (s *exceptionSlot) tripped() <-chan struct{} { return s.ch }

// classCache serializes instance construction per class: the first run
// needing an instance constructs it inside the cell's once, all others block
// on the same cell and share the outcome, construction errors included.
type classCache struct {
	mu    sync.Mutex
	cells map[string]*classCell
}

type classCell struct {
	once     sync.Once
	instance any
	err      error
}

func newClassCache() *classCache {
	return &classCache{cells: make(map[string]*classCell)}
}

// instance returns the shared instance of the named class, constructing it
// on first use with the given timeout bound.
func (c *classCache) instance(ctx context.Context, cls *function.Class, initTimeout time.Duration) (any, error) {
	c.mu.Lock()
	cell, ok := c.cells[cls.Name()]
	if !ok {
		cell = &classCell{}
		c.cells[cls.Name()] = cell
	}
	c.mu.Unlock()

	cell.once.Do(func() {
		ictx := ctx
		if initTimeout > 0 {
			var cancel context.CancelFunc
			ictx, cancel = context.WithTimeout(ctx, initTimeout)
			defer cancel()
		}
		cell.instance, cell.err = cls.Construct(ictx)
	})
	return cell.instance, cell.err
}

// workerInputs is the immutable snapshot a worker receives at launch: every
// blob its call references, cloned out of dependency results committed by
// the control loop. Workers never read the shared blob store.
type workerInputs map[awaitable.ID]*serializer.Payload

// payload returns the snapshotted blob for a dependency id.
func (in workerInputs) payload(id awaitable.ID) (*serializer.Payload, error) {
	p, ok := in[id]
	if !ok {
		return nil, sdkerrors.NewInternalError("dependency %s launched without its input blob", id)
	}
	return p, nil
}
