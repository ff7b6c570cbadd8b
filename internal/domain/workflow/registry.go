package workflow

import (
	"fmt"
	"sort"
)

// Registry maps workflow types to their definitions. It is read-only after construction.
type Registry struct {
	defs map[Type]*Definition
}

// NewRegistry creates a registry from definitions. Duplicate types panic.
func NewRegistry(defs ...*Definition) *Registry {
	r := &Registry{defs: make(map[Type]*Definition, len(defs))}
	for _, d := range defs {
		if _, exists := r.defs[d.Type()]; exists {
			panic(fmt.Sprintf("workflow %s registered twice", d.Type()))
		}
		r.defs[d.Type()] = d
	}
	return r
}

// Get returns the definition for a workflow type
func (r *Registry) Get(wfType Type) (*Definition, error) {
	d, ok := r.defs[wfType]
	if !ok {
		return nil, fmt.Errorf("%w: unknown workflow %q", ErrValidation, wfType)
	}
	return d, nil
}

// Types returns the registered workflow types in name order
func (r *Registry) Types() []Type {
	types := make([]Type, 0, len(r.defs))
	for t := range r.defs {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
