package future

import "github.com/tensorlakeai/tensorlake-go/runtime/awaitable"

// Kind classifies how the runner treats a future: an ordinary call, a tail
// call fulfilling its creator's id, or the placeholder promised by a lowered
// reducer. Kinds exist for scheduling and observability; result semantics
// are identical.
type Kind int

const (
	// KindCall is an ordinary function call.
	KindCall Kind = iota
	// KindTailCall marks a future whose completion also fulfills the future
	// that returned it.
	KindTailCall
	// KindReducer marks the placeholder future holding a reducer's promised
	// id while the lowered call chain runs.
	KindReducer
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindCall:
		return "call"
	case KindTailCall:
		return "tail-call"
	case KindReducer:
		return "reducer"
	default:
		return "unknown"
	}
}

// WithKind sets the future's kind at creation.
func WithKind(k Kind) Option {
	return func(f *Future) { f.kind = k }
}

// Kind returns the future's kind.
func (f *Future) Kind() Kind { return f.kind }

// Derive creates a future for a new awaitable inheriting the source
// future's markers: a delayed source schedules the derived future at the
// same instant, a tail-call source makes the derived future a tail call,
// and an unmarked source yields an ordinary call.
func Derive(src *Future, a awaitable.Awaitable) *Future {
	opts := make([]Option, 0, 2)
	if src != nil {
		if !src.notBefore.IsZero() {
			opts = append(opts, WithNotBefore(src.notBefore))
		}
		if src.kind == KindTailCall {
			opts = append(opts, WithKind(KindTailCall))
		}
	}
	return New(a, opts...)
}
