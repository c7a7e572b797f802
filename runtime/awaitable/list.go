package awaitable

// List is an ordered gather of values and awaitables. It may appear as a
// function argument; returning one from a function body is a usage error.
type List struct {
	id    ID
	items []Arg
}

// NewList constructs a list awaitable with a fresh id.
func NewList(items ...Arg) *List {
	return &List{id: NewID(), items: items}
}

// ID returns the request-scoped unique id.
func (l *List) ID() ID { return l.id }

// Kind returns KindList.
func (l *List) Kind() Kind { return KindList }

// Items returns a copy of the items in order.
func (l *List) Items() []Arg {
	out := make([]Arg, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the number of items.
func (l *List) Len() int { return len(l.items) }

func (*List) sealed() {}
