package api

import (
	"fmt"
)

// Registry is an ordered set of descriptors, unique by name.
type Registry struct {
	descs  []Descriptor
	byName map[string]int
}

// NewRegistry builds a registry from ds in order.
func NewRegistry(ds ...Descriptor) (*Registry, error) {
	r := &Registry{byName: make(map[string]int, len(ds))}
	for _, d := range ds {
		if err := r.Add(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add appends d. Names must be unique and non-empty.
func (r *Registry) Add(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("api: descriptor without a name")
	}
	if d.Call == nil {
		return fmt.Errorf("api: descriptor %q has no call", d.Name)
	}
	if _, dup := r.byName[d.Name]; dup {
		return fmt.Errorf("api: duplicate descriptor %q", d.Name)
	}
	r.byName[d.Name] = len(r.descs)
	r.descs = append(r.descs, d)
	return nil
}

func (r *Registry) Lookup(name string) (Descriptor, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Descriptor{}, false
	}
	return r.descs[i], true
}

func (r *Registry) Len() int { return len(r.descs) }

// Names returns descriptor names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.descs))
	for i, d := range r.descs {
		names[i] = d.Name
	}
	return names
}

// Descriptors returns a copy of the descriptor list in registration order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.descs))
	copy(out, r.descs)
	return out
}
