package function

import "context"

// Constructor builds one class instance. It takes no user parameters so the
// runtime can construct instances lazily without argument plumbing; slow
// constructors are expected and serialized per class.
type Constructor func(ctx context.Context) (any, error)

// Class groups method functions around a lazily constructed instance.
type Class struct {
	name string
	ctor Constructor
	file string
	line int
}

// NewClass declares a class with its parameter-free constructor.
func NewClass(name string, ctor Constructor, opts ...Option) *Class {
	cfg := newConfig(opts)
	c := &Class{name: name, ctor: ctor, file: cfg.file, line: cfg.line}
	if c.file == "" {
		c.file, c.line = callerLocation(2)
	}
	return c
}

// Name returns the class name.
func (c *Class) Name() string { return c.name }

// Constructor returns the declared constructor, nil when missing.
func (c *Class) Constructor() Constructor { return c.ctor }

// Construct builds a new instance.
func (c *Class) Construct(ctx context.Context) (any, error) {
	return c.ctor(ctx)
}

// File returns the source path captured at declaration.
func (c *Class) File() string { return c.file }

// Line returns the source line captured at declaration.
func (c *Class) Line() int { return c.line }
