// Package ast mirrors awaitable trees as serializable nodes: the wire form
// that lets a computation cross process boundaries and resume elsewhere.
//
// A tree holds three node kinds. Call and reducer nodes carry an opaque
// metadata blob serialized on the originating process; value nodes carry an
// encoded user value with its content type and type token and never have
// children. Traversal order is deterministic so persisted execution state
// stays stable across replicas.
package ast

import (
	"encoding/json"

	"github.com/tensorlakeai/tensorlake-go/runtime/awaitable"
	"github.com/tensorlakeai/tensorlake-go/runtime/sdkerrors"
	"github.com/tensorlakeai/tensorlake-go/runtime/serializer"
)

// Kind discriminates AST node kinds.
type Kind string

const (
	// KindCall mirrors a function-call awaitable.
	KindCall Kind = "call"
	// KindReducer mirrors a reduce awaitable.
	KindReducer Kind = "reducer"
	// KindValue carries an encoded user value; it has no children.
	KindValue Kind = "value"
)

type (
	// Node is one vertex of the serialized tree. Parent is the unique
	// inverse of the parent's child map; the root's parent is empty.
	Node struct {
		ID       awaitable.ID           `json:"id"`
		Kind     Kind                   `json:"kind"`
		Metadata []byte                 `json:"metadata,omitempty"`
		Children map[awaitable.ID]*Node `json:"children,omitempty"`
		Parent   awaitable.ID           `json:"parent,omitempty"`
		Value    *serializer.Payload    `json:"value,omitempty"`
	}

	// CallMetadata is the decoded metadata blob of a call node. Each
	// positional slot is either a single child reference or an inline list
	// of child references (a gathered list); keyword arguments bind by
	// name.
	CallMetadata struct {
		Function         string                  `json:"function"`
		Slots            []Slot                  `json:"slots"`
		Kwargs           map[string]awaitable.ID `json:"kwargs,omitempty"`
		OutputSerializer string                  `json:"output_serializer,omitempty"`
	}

	// Slot records one positional argument. Exactly one field is set.
	Slot struct {
		Child awaitable.ID   `json:"child,omitempty"`
		List  []awaitable.ID `json:"list,omitempty"`
	}

	// ReducerMetadata is the decoded metadata blob of a reducer node:
	// the binary function plus the fold inputs in order.
	ReducerMetadata struct {
		Function         string         `json:"function"`
		Inputs           []awaitable.ID `json:"inputs"`
		OutputSerializer string         `json:"output_serializer,omitempty"`
	}
)

// CallMetadata decodes the metadata blob of a call node.
func (n *Node) CallMetadata() (*CallMetadata, error) {
	if n.Kind != KindCall {
		return nil, sdkerrors.NewInternalError("node %s is %s, not a call", n.ID, n.Kind)
	}
	var meta CallMetadata
	if err := json.Unmarshal(n.Metadata, &meta); err != nil {
		return nil, sdkerrors.NewInternalError("node %s call metadata: %v", n.ID, err)
	}
	return &meta, nil
}

// ReducerMetadata decodes the metadata blob of a reducer node.
func (n *Node) ReducerMetadata() (*ReducerMetadata, error) {
	if n.Kind != KindReducer {
		return nil, sdkerrors.NewInternalError("node %s is %s, not a reducer", n.ID, n.Kind)
	}
	var meta ReducerMetadata
	if err := json.Unmarshal(n.Metadata, &meta); err != nil {
		return nil, sdkerrors.NewInternalError("node %s reducer metadata: %v", n.ID, err)
	}
	return &meta, nil
}

// child resolves a child node by id.
func (n *Node) child(id awaitable.ID) (*Node, error) {
	c, ok := n.Children[id]
	if !ok {
		return nil, sdkerrors.NewInternalError("node %s references missing child %s", n.ID, id)
	}
	return c, nil
}

// FullyResolved reports whether every descendant of n is a value node.
// Only fully resolved call nodes can be decoded to a concrete, invocable
// call. Value nodes are trivially resolved.
func (n *Node) FullyResolved() bool {
	if n.Kind == KindValue {
		return true
	}
	for _, c := range n.Children {
		if c.Kind != KindValue {
			return false
		}
	}
	return true
}

func (n *Node) addChild(c *Node) {
	if n.Children == nil {
		n.Children = make(map[awaitable.ID]*Node)
	}
	c.Parent = n.ID
	n.Children[c.ID] = c
}
