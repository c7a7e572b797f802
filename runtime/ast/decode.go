package ast

import (
	"github.com/tensorlakeai/tensorlake-go/runtime/awaitable"
	"github.com/tensorlakeai/tensorlake-go/runtime/sdkerrors"
)

// Decode is the mirror image of Build: value nodes yield the decoded user
// value, call and reducer nodes yield the reconstructed awaitable bearing
// its original id. A reducer's initial value was folded into the input run
// at build time and reappears as the first input, which is semantically
// identical.
func Decode(n *Node) (any, error) {
	switch n.Kind {
	case KindValue:
		return n.Value.Decode()
	case KindCall:
		return decodeCallNode(n, false)
	case KindReducer:
		return decodeReducerNode(n)
	default:
		return nil, sdkerrors.NewInternalError("unknown AST node kind %q", n.Kind)
	}
}

// DecodeCall reconstructs a concrete, invocable function call. Every
// descendant must be a value node: gathered lists materialize as []any
// arguments and single children as their decoded values.
func DecodeCall(n *Node) (*awaitable.FunctionCall, error) {
	if n.Kind != KindCall {
		return nil, sdkerrors.NewInternalError("cannot decode %s node %s as a call", n.Kind, n.ID)
	}
	if !n.FullyResolved() {
		return nil, sdkerrors.NewInternalError("call node %s is not fully resolved", n.ID)
	}
	a, err := decodeCallNode(n, true)
	if err != nil {
		return nil, err
	}
	return a.(*awaitable.FunctionCall), nil
}

func decodeCallNode(n *Node, concrete bool) (any, error) {
	meta, err := n.CallMetadata()
	if err != nil {
		return nil, err
	}
	args := make([]awaitable.Arg, 0, len(meta.Slots))
	for _, slot := range meta.Slots {
		arg, err := decodeSlot(n, slot, concrete)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	call := awaitable.NewCall(meta.Function, args...).WithID(n.ID)
	if meta.OutputSerializer != "" {
		call = call.WithOutputSerializer(meta.OutputSerializer)
	}
	for name, id := range meta.Kwargs {
		child, err := n.child(id)
		if err != nil {
			return nil, err
		}
		arg, err := decodeArg(child, concrete)
		if err != nil {
			return nil, err
		}
		call = call.WithKwarg(name, arg)
	}
	return call, nil
}

// decodeSlot rebuilds one positional argument. A gathered list whose items
// all resolved comes back as a plain []any value; a list with pending items
// comes back as a list awaitable (with a fresh id, the inline encoding does
// not keep one).
func decodeSlot(n *Node, slot Slot, concrete bool) (awaitable.Arg, error) {
	if slot.List == nil {
		child, err := n.child(slot.Child)
		if err != nil {
			return awaitable.Arg{}, err
		}
		return decodeArg(child, concrete)
	}

	resolved := true
	items := make([]awaitable.Arg, 0, len(slot.List))
	for _, id := range slot.List {
		child, err := n.child(id)
		if err != nil {
			return awaitable.Arg{}, err
		}
		arg, err := decodeArg(child, concrete)
		if err != nil {
			return awaitable.Arg{}, err
		}
		if arg.IsRef() {
			resolved = false
		}
		items = append(items, arg)
	}
	if !resolved {
		return awaitable.Ref(awaitable.NewList(items...)), nil
	}
	values := make([]any, len(items))
	for i, item := range items {
		values[i] = item.Value()
	}
	return awaitable.ValueOf(values), nil
}

func decodeArg(child *Node, concrete bool) (awaitable.Arg, error) {
	if child.Kind == KindValue {
		v, err := child.Value.Decode()
		if err != nil {
			return awaitable.Arg{}, err
		}
		return awaitable.ValueOf(v), nil
	}
	if concrete {
		return awaitable.Arg{}, sdkerrors.NewInternalError(
			"child %s of a concrete call is %s, not a value", child.ID, child.Kind)
	}
	sub, err := Decode(child)
	if err != nil {
		return awaitable.Arg{}, err
	}
	a, ok := sub.(awaitable.Awaitable)
	if !ok {
		return awaitable.Arg{}, sdkerrors.NewInternalError(
			"child %s decoded to a non-awaitable", child.ID)
	}
	return awaitable.Ref(a), nil
}

func decodeReducerNode(n *Node) (any, error) {
	meta, err := n.ReducerMetadata()
	if err != nil {
		return nil, err
	}
	inputs := make([]awaitable.Arg, 0, len(meta.Inputs))
	for _, id := range meta.Inputs {
		child, err := n.child(id)
		if err != nil {
			return nil, err
		}
		arg, err := decodeArg(child, false)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, arg)
	}
	red := awaitable.NewReduce(meta.Function, inputs...).WithID(n.ID)
	if meta.OutputSerializer != "" {
		red = red.WithOutputSerializer(meta.OutputSerializer)
	}
	return red, nil
}
