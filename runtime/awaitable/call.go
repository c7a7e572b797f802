package awaitable

// FunctionCall describes one invocation of a named function with positional
// and keyword arguments. Instances are immutable; the With* methods return
// derived copies sharing the same id, for composition before submission.
type FunctionCall struct {
	id         ID
	function   string
	args       []Arg
	kwargs     map[string]Arg
	outputOver string
}

// NewCall constructs a function-call awaitable with a fresh id.
func NewCall(function string, args ...Arg) *FunctionCall {
	return &FunctionCall{
		id:       NewID(),
		function: function,
		args:     args,
	}
}

// ID returns the request-scoped unique id.
func (c *FunctionCall) ID() ID { return c.id }

// Kind returns KindCall.
func (c *FunctionCall) Kind() Kind { return KindCall }

// Function returns the qualified function name.
func (c *FunctionCall) Function() string { return c.function }

// Args returns a copy of the positional arguments in declaration order.
func (c *FunctionCall) Args() []Arg {
	out := make([]Arg, len(c.args))
	copy(out, c.args)
	return out
}

// Kwargs returns a copy of the keyword arguments.
func (c *FunctionCall) Kwargs() map[string]Arg {
	out := make(map[string]Arg, len(c.kwargs))
	for k, v := range c.kwargs {
		out[k] = v
	}
	return out
}

// OutputSerializer returns the inherited output-serializer override, or the
// empty string when the function's own default applies.
func (c *FunctionCall) OutputSerializer() string { return c.outputOver }

// WithKwarg returns a derived call with one keyword argument bound. The id
// is preserved: the derivation refines the same description of work.
func (c *FunctionCall) WithKwarg(name string, arg Arg) *FunctionCall {
	d := c.clone()
	if d.kwargs == nil {
		d.kwargs = make(map[string]Arg, 1)
	}
	d.kwargs[name] = arg
	return d
}

// WithOutputSerializer returns a derived call whose output encodes with the
// named codec instead of the function default. Runners apply this when a
// tail call must inherit the caller's output serializer.
func (c *FunctionCall) WithOutputSerializer(name string) *FunctionCall {
	d := c.clone()
	d.outputOver = name
	return d
}

// WithID returns a derived call bearing the given id. Reducer lowering uses
// this to rewrite the final chain call to the reducer's promised id.
func (c *FunctionCall) WithID(id ID) *FunctionCall {
	d := c.clone()
	d.id = id
	return d
}

func (c *FunctionCall) clone() *FunctionCall {
	d := &FunctionCall{
		id:         c.id,
		function:   c.function,
		outputOver: c.outputOver,
	}
	d.args = make([]Arg, len(c.args))
	copy(d.args, c.args)
	if c.kwargs != nil {
		d.kwargs = make(map[string]Arg, len(c.kwargs))
		for k, v := range c.kwargs {
			d.kwargs[k] = v
		}
	}
	return d
}

func (*FunctionCall) sealed() {}
