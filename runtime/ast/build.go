package ast

import (
	"encoding/json"

	"github.com/tensorlakeai/tensorlake-go/runtime/awaitable"
	"github.com/tensorlakeai/tensorlake-go/runtime/sdkerrors"
	"github.com/tensorlakeai/tensorlake-go/runtime/serializer"
)

// Resolver reports the codec names declared by a function. The registry
// satisfies it; tests substitute fixed maps.
type Resolver interface {
	InputSerializer(function string) (string, error)
	OutputSerializer(function string) (string, error)
}

// Build converts a user object into an AST. Awaitables become call or
// reducer nodes; any other value becomes a single value node encoded with
// the binary codec (no consuming function exists to pick another).
//
// Value arguments inside a call are lifted through the input serializer of
// the consuming function, so the receiving process can decode them exactly
// as the callee expects.
func Build(obj any, res Resolver) (*Node, error) {
	if a, ok := obj.(awaitable.Awaitable); ok {
		return buildAwaitable(a, res)
	}
	return buildValue(awaitable.NewID(), serializer.NameBinary, obj)
}

func buildAwaitable(a awaitable.Awaitable, res Resolver) (*Node, error) {
	switch n := a.(type) {
	case *awaitable.FunctionCall:
		return buildCall(n, res)
	case *awaitable.Reduce:
		return buildReducer(n, res)
	case *awaitable.List:
		return nil, sdkerrors.NewUsageError(
			"a list awaitable cannot form an AST root; pass it as a call argument")
	default:
		return nil, sdkerrors.NewInternalError("unknown awaitable kind %q", a.Kind())
	}
}

func buildCall(call *awaitable.FunctionCall, res Resolver) (*Node, error) {
	inputSer, err := res.InputSerializer(call.Function())
	if err != nil {
		return nil, err
	}
	node := &Node{ID: call.ID(), Kind: KindCall}
	meta := CallMetadata{
		Function:         call.Function(),
		OutputSerializer: call.OutputSerializer(),
	}

	for _, arg := range call.Args() {
		slot, err := buildSlot(node, arg, inputSer, res)
		if err != nil {
			return nil, err
		}
		meta.Slots = append(meta.Slots, slot)
	}

	kwargs := call.Kwargs()
	if len(kwargs) > 0 {
		meta.Kwargs = make(map[string]awaitable.ID, len(kwargs))
		for name, arg := range kwargs {
			if arg.IsRef() {
				if _, ok := arg.Node().(*awaitable.List); ok {
					return nil, sdkerrors.NewUsageError(
						"keyword argument %q of %q is a list awaitable; lists may only be positional",
						name, call.Function())
				}
			}
			child, err := buildArg(node, arg, inputSer, res)
			if err != nil {
				return nil, err
			}
			meta.Kwargs[name] = child.ID
		}
	}

	if node.Metadata, err = json.Marshal(meta); err != nil {
		return nil, sdkerrors.NewInternalError("call metadata for %s: %v", node.ID, err)
	}
	return node, nil
}

// buildSlot lowers one positional argument. Lists inline into the slot as
// an ordered run of child references; everything else is a single child.
func buildSlot(parent *Node, arg awaitable.Arg, inputSer string, res Resolver) (Slot, error) {
	if arg.IsRef() {
		if list, ok := arg.Node().(*awaitable.List); ok {
			ids := make([]awaitable.ID, 0, list.Len())
			for _, item := range list.Items() {
				if item.IsRef() {
					if _, nested := item.Node().(*awaitable.List); nested {
						return Slot{}, sdkerrors.NewUsageError(
							"list awaitables cannot nest inside list awaitables")
					}
				}
				child, err := buildArg(parent, item, inputSer, res)
				if err != nil {
					return Slot{}, err
				}
				ids = append(ids, child.ID)
			}
			return Slot{List: ids}, nil
		}
	}
	child, err := buildArg(parent, arg, inputSer, res)
	if err != nil {
		return Slot{}, err
	}
	return Slot{Child: child.ID}, nil
}

// buildArg lowers a value-or-awaitable argument into a child node of
// parent.
func buildArg(parent *Node, arg awaitable.Arg, inputSer string, res Resolver) (*Node, error) {
	var (
		child *Node
		err   error
	)
	if arg.IsRef() {
		child, err = buildAwaitable(arg.Node(), res)
	} else {
		child, err = buildValue(awaitable.NewID(), inputSer, arg.Value())
	}
	if err != nil {
		return nil, err
	}
	parent.addChild(child)
	return child, nil
}

func buildReducer(red *awaitable.Reduce, res Resolver) (*Node, error) {
	if err := red.Validate(); err != nil {
		return nil, err
	}
	inputSer, err := res.InputSerializer(red.Function())
	if err != nil {
		return nil, err
	}
	node := &Node{ID: red.ID(), Kind: KindReducer}
	meta := ReducerMetadata{
		Function:         red.Function(),
		OutputSerializer: red.OutputSerializer(),
	}
	for _, input := range red.EffectiveInputs() {
		if input.IsRef() {
			if _, ok := input.Node().(*awaitable.List); ok {
				return nil, sdkerrors.NewUsageError(
					"reduce inputs must be values or calls, not list awaitables")
			}
		}
		child, err := buildArg(node, input, inputSer, res)
		if err != nil {
			return nil, err
		}
		meta.Inputs = append(meta.Inputs, child.ID)
	}
	if node.Metadata, err = json.Marshal(meta); err != nil {
		return nil, sdkerrors.NewInternalError("reducer metadata for %s: %v", node.ID, err)
	}
	return node, nil
}

// buildValue encodes one user value as a leaf. Files bypass the codec and
// keep their content type; everything else encodes with the consumer's
// input serializer.
func buildValue(id awaitable.ID, serName string, v any) (*Node, error) {
	payload, err := serializer.EncodePayload(serName, v)
	if err != nil {
		return nil, err
	}
	return &Node{ID: id, Kind: KindValue, Value: payload}, nil
}
