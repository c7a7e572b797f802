package ast

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/tensorlakeai/tensorlake-go/runtime/awaitable"
)

func walkIDs(n *Node) []awaitable.ID {
	var order []awaitable.ID
	_ = Walk(n, func(v *Node) error {
		order = append(order, v.ID)
		return nil
	})
	return order
}

func TestWalkProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("walk visits every arg once and the root last", prop.ForAll(
		func(vals []string) bool {
			args := make([]awaitable.Arg, len(vals))
			for i, v := range vals {
				args[i] = awaitable.ValueOf(v)
			}
			n, err := Build(awaitable.NewCall("f", args...), jsonRes)
			if err != nil {
				return false
			}
			order := walkIDs(n)
			if len(order) != len(vals)+1 {
				return false
			}
			if order[len(order)-1] != n.ID {
				return false
			}
			seen := make(map[awaitable.ID]bool, len(order))
			for _, id := range order {
				if seen[id] {
					return false
				}
				seen[id] = true
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("walk order survives a wire trip", prop.ForAll(
		func(vals []int) bool {
			args := make([]awaitable.Arg, len(vals))
			for i, v := range vals {
				args[i] = awaitable.ValueOf(v)
			}
			call := awaitable.NewCall("f", args...).
				WithKwarg("k", awaitable.ValueOf("kw"))
			n, err := Build(call, jsonRes)
			if err != nil {
				return false
			}
			data, err := json.Marshal(n)
			if err != nil {
				return false
			}
			var wire Node
			if err := json.Unmarshal(data, &wire); err != nil {
				return false
			}
			before, after := walkIDs(n), walkIDs(&wire)
			if len(before) != len(after) {
				return false
			}
			for i := range before {
				if before[i] != after[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int()),
	))

	properties.TestingRun(t)
}
