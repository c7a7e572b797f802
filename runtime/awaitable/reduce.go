package awaitable

import "github.com/tensorlakeai/tensorlake-go/runtime/sdkerrors"

// Reduce describes a left-fold of a binary function over an ordered input
// list: f(f(f(a,b),c),d). An optional initial value is prepended to the
// inputs before folding.
type Reduce struct {
	id         ID
	function   string
	inputs     []Arg
	initial    *Arg
	outputOver string
}

// NewReduce constructs a reducer awaitable with a fresh id.
func NewReduce(function string, inputs ...Arg) *Reduce {
	return &Reduce{id: NewID(), function: function, inputs: inputs}
}

// ID returns the request-scoped unique id.
func (r *Reduce) ID() ID { return r.id }

// Kind returns KindReduce.
func (r *Reduce) Kind() Kind { return KindReduce }

// Function returns the qualified name of the binary function.
func (r *Reduce) Function() string { return r.function }

// Inputs returns a copy of the declared inputs in order, without the
// initial value.
func (r *Reduce) Inputs() []Arg {
	out := make([]Arg, len(r.inputs))
	copy(out, r.inputs)
	return out
}

// Initial returns the prepended initial value, if any.
func (r *Reduce) Initial() (Arg, bool) {
	if r.initial == nil {
		return Arg{}, false
	}
	return *r.initial, true
}

// OutputSerializer returns the inherited output-serializer override, or the
// empty string when the function's own default applies.
func (r *Reduce) OutputSerializer() string { return r.outputOver }

// WithInitial returns a derived reducer with an initial value prepended to
// the fold. The id is preserved.
func (r *Reduce) WithInitial(arg Arg) *Reduce {
	d := r.clone()
	d.initial = &arg
	return d
}

// WithOutputSerializer returns a derived reducer whose result encodes with
// the named codec. The id is preserved.
func (r *Reduce) WithOutputSerializer(name string) *Reduce {
	d := r.clone()
	d.outputOver = name
	return d
}

// WithID returns a derived reducer bearing the given id. AST decoding uses
// this to restore the originating id.
func (r *Reduce) WithID(id ID) *Reduce {
	d := r.clone()
	d.id = id
	return d
}

// EffectiveInputs returns the fold sequence: the initial value, when set,
// followed by the declared inputs.
func (r *Reduce) EffectiveInputs() []Arg {
	if r.initial == nil {
		return r.Inputs()
	}
	out := make([]Arg, 0, len(r.inputs)+1)
	out = append(out, *r.initial)
	out = append(out, r.inputs...)
	return out
}

// Validate checks well-formedness: the fold needs at least one effective
// input. A single effective input collapses to its identity at submission.
func (r *Reduce) Validate() error {
	if r.function == "" {
		return sdkerrors.NewUsageError("reduce requires a function name")
	}
	if len(r.EffectiveInputs()) == 0 {
		return sdkerrors.NewUsageError("reduce %q requires at least one input or an initial value", r.function)
	}
	return nil
}

func (r *Reduce) clone() *Reduce {
	d := &Reduce{
		id:         r.id,
		function:   r.function,
		outputOver: r.outputOver,
	}
	d.inputs = make([]Arg, len(r.inputs))
	copy(d.inputs, r.inputs)
	if r.initial != nil {
		init := *r.initial
		d.initial = &init
	}
	return d
}

func (*Reduce) sealed() {}
