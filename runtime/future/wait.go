package future

import "context"

// WaitMode selects the return predicate of Wait.
type WaitMode int

const (
	// FirstCompleted returns as soon as any future settles.
	FirstCompleted WaitMode = iota
	// FirstFailure returns as soon as any future fails, otherwise behaves
	// as AllCompleted.
	FirstFailure
	// AllCompleted returns once every future has settled.
	AllCompleted
)

// String returns the mode name.
func (m WaitMode) String() string {
	switch m {
	case FirstCompleted:
		return "FIRST_COMPLETED"
	case FirstFailure:
		return "FIRST_FAILURE"
	case AllCompleted:
		return "ALL_COMPLETED"
	default:
		return "UNKNOWN"
	}
}

// Wait blocks until the mode predicate is satisfied or ctx ends, then
// partitions the futures into (done, notDone) in input order. Waiting on an
// empty set returns immediately. An expired ctx returns the partition as it
// stands; no error is raised, matching standard executor wait semantics.
func Wait(ctx context.Context, futs []*Future, mode WaitMode) (done, notDone []*Future) {
	if len(futs) == 0 {
		return nil, nil
	}
	if satisfied(futs, mode) {
		return partition(futs)
	}

	stop := make(chan struct{})
	defer close(stop)
	settled := make(chan *Future, len(futs))
	pending := 0
	for _, f := range futs {
		if f.Done() {
			continue
		}
		pending++
		go func(f *Future) {
			select {
			case <-f.Ready():
				settled <- f
			case <-stop:
			}
		}(f)
	}

	for pending > 0 {
		select {
		case <-ctx.Done():
			return partition(futs)
		case f := <-settled:
			pending--
			switch mode {
			case FirstCompleted:
				return partition(futs)
			case FirstFailure:
				if f.Err() != nil {
					return partition(futs)
				}
			}
		}
	}
	return partition(futs)
}

// satisfied reports whether the mode predicate already holds.
func satisfied(futs []*Future, mode WaitMode) bool {
	doneCount := 0
	for _, f := range futs {
		if !f.Done() {
			continue
		}
		doneCount++
		if mode == FirstCompleted {
			return true
		}
		if mode == FirstFailure && f.Err() != nil {
			return true
		}
	}
	return doneCount == len(futs)
}

func partition(futs []*Future) (done, notDone []*Future) {
	for _, f := range futs {
		if f.Done() {
			done = append(done, f)
		} else {
			notDone = append(notDone, f)
		}
	}
	return done, notDone
}
