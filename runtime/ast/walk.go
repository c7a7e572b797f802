package ast

import (
	"sort"

	"github.com/tensorlakeai/tensorlake-go/runtime/awaitable"
)

// Walk visits the tree in deterministic post-order: children before their
// node, positional slots in declaration order (list slots left to right),
// keyword children in sorted key order, reducer inputs in fold order.
// Serializing a tree twice and walking both yields identical id sequences.
func Walk(n *Node, visit func(*Node) error) error {
	switch n.Kind {
	case KindCall:
		meta, err := n.CallMetadata()
		if err != nil {
			return err
		}
		for _, slot := range meta.Slots {
			ids := slot.List
			if ids == nil {
				ids = []awaitable.ID{slot.Child}
			}
			for _, id := range ids {
				child, err := n.child(id)
				if err != nil {
					return err
				}
				if err := Walk(child, visit); err != nil {
					return err
				}
			}
		}
		names := make([]string, 0, len(meta.Kwargs))
		for name := range meta.Kwargs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			child, err := n.child(meta.Kwargs[name])
			if err != nil {
				return err
			}
			if err := Walk(child, visit); err != nil {
				return err
			}
		}
	case KindReducer:
		meta, err := n.ReducerMetadata()
		if err != nil {
			return err
		}
		for _, id := range meta.Inputs {
			child, err := n.child(id)
			if err != nil {
				return err
			}
			if err := Walk(child, visit); err != nil {
				return err
			}
		}
	}
	return visit(n)
}
