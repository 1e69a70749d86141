package body

import "fmt"

// Registry maps body IDs to their animated state. It is not safe for
// concurrent use; the session's frame loop is its only writer.
type Registry struct {
	bodies [Count]*Body
	n      int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// add registers b. Each ID may be added once.
func (r *Registry) add(b *Body) {
	if !b.ID.Valid() {
		panic(fmt.Sprintf("registry: invalid body id %d", int(b.ID)))
	}
	if r.bodies[b.ID] != nil {
		panic(fmt.Sprintf("registry: %s already registered", b.ID))
	}
	r.bodies[b.ID] = b
	r.n++
}

// Get returns the body for id, or nil if it has not been created yet.
func (r *Registry) Get(id ID) *Body {
	if !id.Valid() {
		return nil
	}
	return r.bodies[id]
}

// Len returns the number of registered bodies.
func (r *Registry) Len() int {
	return r.n
}

// Complete reports whether all nine bodies exist.
func (r *Registry) Complete() bool {
	return r.n == Count
}

// Each calls fn for every registered body in ID order.
func (r *Registry) Each(fn func(*Body)) {
	for _, b := range r.bodies {
		if b != nil {
			fn(b)
		}
	}
}
