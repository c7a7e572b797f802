// Package registry maintains the process-wide mapping from qualified names
// to function, class, and application descriptors. Registration happens as
// user packages initialize; runners consult the registry at dispatch time.
//
// The registry is passed explicitly to runner constructors. Default exists
// for the declaration-time path where descriptors self-register at package
// init.
package registry

import (
	"sort"
	"sync"

	"github.com/tensorlakeai/tensorlake-go/runtime/function"
	"github.com/tensorlakeai/tensorlake-go/runtime/sdkerrors"
)

// Registry maps qualified names to descriptors. It is append-only in
// practice: entries are never removed, and re-registration is tolerated
// only when the same source path registers the same name again (double
// import of one file).
type Registry struct {
	mu        sync.RWMutex
	functions map[string]*function.Function
	classes   map[string]*function.Class
	apps      map[string]*function.Application
}

// New constructs an empty registry.
func New() *Registry {
	return &Registry{
		functions: make(map[string]*function.Function),
		classes:   make(map[string]*function.Class),
		apps:      make(map[string]*function.Application),
	}
}

var defaultRegistry = New()

// Default returns the process-wide registry used by declaration-time
// registration.
func Default() *Registry {
	return defaultRegistry
}

// RegisterFunction adds a function descriptor. Registering the same name
// from the same source path is idempotent; from a different path it is
// rejected.
func (r *Registry) RegisterFunction(f *function.Function) error {
	if f == nil || f.Name() == "" {
		return sdkerrors.NewUsageError("function registration requires a name")
	}
	if f.Handler() == nil {
		return sdkerrors.NewUsageError("function %q has no handler", f.Name())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.functions[f.Name()]; ok && prev.File() != f.File() {
		return sdkerrors.NewUsageError(
			"function %q already registered from %s, redefined at %s",
			f.Name(), prev.File(), f.File(),
		)
	}
	r.functions[f.Name()] = f
	return nil
}

// RegisterApplication adds an application descriptor. The entrypoint is
// also registered as a plain function so calls resolve uniformly.
func (r *Registry) RegisterApplication(a *function.Application) error {
	if a == nil || a.Function == nil {
		return sdkerrors.NewUsageError("application registration requires a descriptor")
	}
	if err := r.RegisterFunction(a.Function); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apps[a.Name()] = a
	return nil
}

// RegisterClass adds a class descriptor under the same duplicate rules as
// functions.
func (r *Registry) RegisterClass(c *function.Class) error {
	if c == nil || c.Name() == "" {
		return sdkerrors.NewUsageError("class registration requires a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.classes[c.Name()]; ok && prev.File() != c.File() {
		return sdkerrors.NewUsageError(
			"class %q already registered from %s, redefined at %s",
			c.Name(), prev.File(), c.File(),
		)
	}
	r.classes[c.Name()] = c
	return nil
}

// Function resolves a function descriptor by name.
func (r *Registry) Function(name string) (*function.Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.functions[name]
	return f, ok
}

// Class resolves a class descriptor by name.
func (r *Registry) Class(name string) (*function.Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[name]
	return c, ok
}

// Application resolves an application descriptor by name.
func (r *Registry) Application(name string) (*function.Application, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.apps[name]
	return a, ok
}

// Functions returns all registered functions sorted by name.
func (r *Registry) Functions() []*function.Function {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*function.Function, 0, len(r.functions))
	for _, f := range r.functions {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Classes returns all registered classes sorted by name.
func (r *Registry) Classes() []*function.Class {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*function.Class, 0, len(r.classes))
	for _, c := range r.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Applications returns all registered applications sorted by name.
func (r *Registry) Applications() []*function.Application {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*function.Application, 0, len(r.apps))
	for _, a := range r.apps {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// InputSerializer reports the codec decoding the named function's
// arguments. AST lifting of value arguments resolves through this.
func (r *Registry) InputSerializer(name string) (string, error) {
	f, ok := r.Function(name)
	if !ok {
		return "", sdkerrors.NewUsageError("unknown function %q", name)
	}
	return f.InputSerializer(), nil
}

// OutputSerializer reports the codec encoding the named function's results.
func (r *Registry) OutputSerializer(name string) (string, error) {
	f, ok := r.Function(name)
	if !ok {
		return "", sdkerrors.NewUsageError("unknown function %q", name)
	}
	return f.OutputSerializer(), nil
}
