// Package awaitable defines the immutable, composable descriptions of work
// the runtime schedules: function calls, ordered lists, and left-fold
// reductions. Awaitables carry request-scoped unique ids; handing one to a
// runner materializes a future with the same id.
package awaitable

import "github.com/google/uuid"

type (
	// ID uniquely identifies an awaitable, its future, and its AST node
	// within one request.
	ID string

	// Kind discriminates the awaitable variants.
	Kind string

	// Awaitable is the sealed set of computation descriptions. Arguments and
	// returns are not serialization: encoding an awaitable inside an opaque
	// user value fails, only positions recognized by the AST builder may
	// carry one.
	Awaitable interface {
		// ID returns the request-scoped unique id.
		ID() ID
		// Kind returns the variant discriminator.
		Kind() Kind

		sealed()
	}
)

const (
	// KindCall describes a single function invocation.
	KindCall Kind = "call"
	// KindList describes an ordered gather of values and awaitables.
	KindList Kind = "list"
	// KindReduce describes a left-fold over a binary function.
	KindReduce Kind = "reduce"
)

// NewID allocates a fresh awaitable id.
func NewID() ID {
	return ID(uuid.NewString())
}

type argKind uint8

const (
	argValue argKind = iota
	argRef
)

// Arg is the tagged "value or awaitable" variant used in every argument
// position. Exactly one of the two payloads is set.
type Arg struct {
	kind  argKind
	value any
	node  Awaitable
}

// ValueOf wraps a plain user value as an argument.
func ValueOf(v any) Arg {
	return Arg{kind: argValue, value: v}
}

// Ref wraps an awaitable as an argument, creating a data-dependency edge.
func Ref(a Awaitable) Arg {
	return Arg{kind: argRef, node: a}
}

// Lift wraps v as a Ref when it is an awaitable and as a value otherwise.
func Lift(v any) Arg {
	if a, ok := v.(Awaitable); ok {
		return Ref(a)
	}
	return Arg{kind: argValue, value: v}
}

// IsValue reports whether the argument carries a plain value.
func (a Arg) IsValue() bool { return a.kind == argValue }

// IsRef reports whether the argument carries an awaitable.
func (a Arg) IsRef() bool { return a.kind == argRef }

// Value returns the wrapped user value. Only meaningful when IsValue.
func (a Arg) Value() any { return a.value }

// Node returns the wrapped awaitable. Only meaningful when IsRef.
func (a Arg) Node() Awaitable { return a.node }
