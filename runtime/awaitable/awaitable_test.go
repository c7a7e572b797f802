package awaitable

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tensorlakeai/tensorlake-go/runtime/serializer"
)

func TestLift(t *testing.T) {
	v := Lift(42)
	require.True(t, v.IsValue())
	require.False(t, v.IsRef())
	require.Equal(t, 42, v.Value())

	call := NewCall("double", ValueOf(2))
	r := Lift(call)
	require.True(t, r.IsRef())
	require.Same(t, Awaitable(call), r.Node())
}

func TestNewCallAllocatesUniqueIDs(t *testing.T) {
	a := NewCall("f")
	b := NewCall("f")
	require.NotEmpty(t, a.ID())
	require.NotEqual(t, a.ID(), b.ID())
	require.Equal(t, KindCall, a.Kind())
}

func TestCallArgsAreCopies(t *testing.T) {
	c := NewCall("f", ValueOf(1), ValueOf(2))
	args := c.Args()
	args[0] = ValueOf(99)
	require.Equal(t, 1, c.Args()[0].Value())
}

// TestCallDerivationsPreserveID verifies With* methods refine the same
// description of work without mutating the receiver.
func TestCallDerivationsPreserveID(t *testing.T) {
	c := NewCall("f", ValueOf(1))

	d := c.WithKwarg("mode", ValueOf("fast"))
	require.Equal(t, c.ID(), d.ID())
	require.Empty(t, c.Kwargs())
	require.Equal(t, "fast", d.Kwargs()["mode"].Value())

	s := d.WithOutputSerializer(serializer.NameBinary)
	require.Equal(t, c.ID(), s.ID())
	require.Equal(t, serializer.NameBinary, s.OutputSerializer())
	require.Empty(t, d.OutputSerializer())

	renamed := s.WithID(ID("chain-tail"))
	require.Equal(t, ID("chain-tail"), renamed.ID())
	require.Equal(t, c.ID(), s.ID())
	require.Equal(t, serializer.NameBinary, renamed.OutputSerializer())
}

func TestListItems(t *testing.T) {
	l := NewList(ValueOf(1), Ref(NewCall("f")))
	require.Equal(t, KindList, l.Kind())
	require.Equal(t, 2, l.Len())

	items := l.Items()
	items[0] = ValueOf(0)
	require.Equal(t, 1, l.Items()[0].Value())
}

func TestReduceEffectiveInputs(t *testing.T) {
	r := NewReduce("add", ValueOf(1), ValueOf(2))
	require.Equal(t, KindReduce, r.Kind())
	require.Len(t, r.EffectiveInputs(), 2)

	seeded := r.WithInitial(ValueOf(0))
	require.Equal(t, r.ID(), seeded.ID())
	eff := seeded.EffectiveInputs()
	require.Len(t, eff, 3)
	require.Equal(t, 0, eff[0].Value())
	require.Equal(t, 1, eff[1].Value())

	_, ok := r.Initial()
	require.False(t, ok)
	init, ok := seeded.Initial()
	require.True(t, ok)
	require.Equal(t, 0, init.Value())
}

func TestReduceValidate(t *testing.T) {
	require.Error(t, NewReduce("").Validate())

	empty := NewReduce("add")
	err := empty.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "at least one input")

	require.NoError(t, NewReduce("add").WithInitial(ValueOf(0)).Validate())
	require.NoError(t, NewReduce("add", ValueOf(1)).Validate())
}

// TestShallowCopy verifies interior nodes are re-allocated while value
// leaves stay shared, with ids and structure intact.
func TestShallowCopy(t *testing.T) {
	leaf := &struct{ N int }{N: 7}
	inner := NewCall("inner", ValueOf(leaf))
	outer := NewCall("outer", Ref(inner), ValueOf(1)).WithKwarg("k", Ref(NewList(ValueOf(2))))

	cp := ShallowCopy(outer).(*FunctionCall)
	require.NotSame(t, outer, cp)
	require.Equal(t, outer.ID(), cp.ID())

	innerCp := cp.Args()[0].Node().(*FunctionCall)
	require.NotSame(t, inner, innerCp)
	require.Equal(t, inner.ID(), innerCp.ID())
	require.Same(t, leaf, innerCp.Args()[0].Value())

	listCp := cp.Kwargs()["k"].Node().(*List)
	require.Equal(t, outer.Kwargs()["k"].Node().ID(), listCp.ID())
	require.NotSame(t, outer.Kwargs()["k"].Node(), Awaitable(listCp))
}

// TestAwaitablesRefuseSerialization verifies the codec guard: awaitables
// smuggled inside opaque values fail at encode time for both codecs.
func TestAwaitablesRefuseSerialization(t *testing.T) {
	type holder struct {
		Call *FunctionCall `json:"call"`
	}
	h := holder{Call: NewCall("f")}

	_, err := serializer.EncodePayload(serializer.NameJSON, h)
	require.Error(t, err)
	require.True(t, errors.Is(err, serializer.ErrNotEncodable))

	_, err = serializer.EncodePayload(serializer.NameBinary, h)
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot be serialized")

	for _, a := range []interface{ MarshalJSON() ([]byte, error) }{
		NewCall("f"), NewList(), NewReduce("add", ValueOf(1)),
	} {
		_, err := a.MarshalJSON()
		require.ErrorIs(t, err, serializer.ErrNotEncodable)
	}
}
