package awaitable

// ShallowCopy produces a structural copy of an awaitable tree: every
// interior node is re-allocated with fresh child slices while user-value
// leaves are shared by reference. Ids and structure are preserved.
func ShallowCopy(a Awaitable) Awaitable {
	switch n := a.(type) {
	case *FunctionCall:
		d := &FunctionCall{
			id:         n.id,
			function:   n.function,
			outputOver: n.outputOver,
		}
		d.args = copyArgs(n.args)
		if n.kwargs != nil {
			d.kwargs = make(map[string]Arg, len(n.kwargs))
			for k, v := range n.kwargs {
				d.kwargs[k] = copyArg(v)
			}
		}
		return d
	case *List:
		return &List{id: n.id, items: copyArgs(n.items)}
	case *Reduce:
		d := &Reduce{
			id:         n.id,
			function:   n.function,
			outputOver: n.outputOver,
		}
		d.inputs = copyArgs(n.inputs)
		if n.initial != nil {
			init := copyArg(*n.initial)
			d.initial = &init
		}
		return d
	default:
		return a
	}
}

func copyArgs(args []Arg) []Arg {
	out := make([]Arg, len(args))
	for i, a := range args {
		out[i] = copyArg(a)
	}
	return out
}

// copyArg recurses into awaitable references and shares value leaves.
func copyArg(a Arg) Arg {
	if a.IsRef() {
		return Ref(ShallowCopy(a.node))
	}
	return a
}
