package function

import (
	"sort"

	"github.com/ggpwnkthx/azfunc-go/pkg/fail"
)

// Registry accumulates descriptors under unique names. Populate it at
// startup, then treat it as read-only; the router is built from a
// frozen snapshot and concurrent mutation is not supported.
type Registry struct {
	byName map[string]*Function
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Function)}
}

// Register stores fns, rejecting duplicate names with DEFINITION.
func (r *Registry) Register(fns ...*Function) error {
	for _, fn := range fns {
		if fn == nil {
			return fail.Definitionf("cannot register a nil function")
		}
		if _, exists := r.byName[fn.Name]; exists {
			return fail.Definitionf("function %q is already registered", fn.Name)
		}
		r.byName[fn.Name] = fn
	}
	return nil
}

// MustRegister is Register for static startup wiring; it panics on a
// definition error since that is a developer mistake, not a runtime
// condition.
func (r *Registry) MustRegister(fns ...*Function) {
	if err := r.Register(fns...); err != nil {
		panic(err)
	}
}

// Lookup finds a descriptor by name.
func (r *Registry) Lookup(name string) (*Function, bool) {
	fn, ok := r.byName[name]
	return fn, ok
}

// Names returns the registered names sorted ascending.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns all descriptors ordered by name. Determinism matters for
// route-specificity tie-breaking and for diagnostic listings.
func (r *Registry) List() []*Function {
	names := r.Names()
	fns := make([]*Function, len(names))
	for i, name := range names {
		fns[i] = r.byName[name]
	}
	return fns
}

// Len reports the number of registered functions.
func (r *Registry) Len() int { return len(r.byName) }
