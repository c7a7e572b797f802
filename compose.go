package tensorlake

import (
	"github.com/tensorlakeai/tensorlake-go/runtime/awaitable"
	"github.com/tensorlakeai/tensorlake-go/runtime/function"
)

// Gather composes a list awaitable from values and awaitables, preserving
// order. Lists may only appear as call arguments or reduce inputs; they
// cannot be submitted or returned on their own.
func Gather(items ...any) *awaitable.List {
	lifted := make([]awaitable.Arg, len(items))
	for i, v := range items {
		lifted[i] = awaitable.Lift(v)
	}
	return awaitable.NewList(lifted...)
}

// Reduce composes a left-fold of the binary function over the inputs:
// fn(fn(...fn(i1, i2)...), iN). Inputs may be values, calls, or a single
// list awaitable; a single input resolves to itself without calling fn.
func Reduce(fn *function.Function, inputs ...any) *awaitable.Reduce {
	return fn.Reduce(inputs...)
}
