package pool

// ComponentProvider is implemented by payloads that expose typed facets of
// themselves. target is a non-nil **C for the requested facet type C; the
// implementation stores a pointer to its facet and returns true, or returns
// false when it has no facet of that type.
//
//	func (n *Node) QueryComponent(target any) bool {
//		switch t := target.(type) {
//		case **Transform:
//			*t = &n.Transform
//			return true
//		}
//		return false
//	}
type ComponentProvider interface {
	QueryComponent(target any) bool
}

// Provider constrains the pointer type of a payload that implements
// ComponentProvider with a pointer receiver.
type Provider[T any] interface {
	*T
	ComponentProvider
}

// ComponentOf queries v for a facet of type C.
func ComponentOf[C any](v ComponentProvider) *C {
	var c *C
	if !v.QueryComponent(&c) {
		return nil
	}
	return c
}

// TryGetComponentOfType returns a copy of the facet C of the value at h. It
// returns false when h does not resolve or the value has no such facet.
func TryGetComponentOfType[C, T any, PT Provider[T]](p *Pool[T], h Handle[T]) (C, bool) {
	var zero C
	v := p.TryBorrowMut(h)
	if v == nil {
		return zero, false
	}
	c := ComponentOf[C](PT(v))
	if c == nil {
		return zero, false
	}
	return *c, true
}

// TryGetComponentOfTypeMut returns the facet C of the value at h in place, or
// nil.
func TryGetComponentOfTypeMut[C, T any, PT Provider[T]](p *Pool[T], h Handle[T]) *C {
	v := p.TryBorrowMut(h)
	if v == nil {
		return nil
	}
	return ComponentOf[C](PT(v))
}

// TryGetComponent takes a shared borrow of the facet C of the value at h.
// The borrow locks the whole record, not just the facet. It fails with
// ErrNoComponent when the value has no such facet.
func TryGetComponent[C, T any, PT Provider[T]](c *MultiBorrowContext[T], h Handle[T]) (*Ref[C], error) {
	rec, d := c.readable("try_get_component", h)
	if d != granted {
		return nil, d.sentinel()
	}
	facet := ComponentOf[C](PT(&rec.payload.value))
	if facet == nil {
		return nil, ErrNoComponent
	}
	return shared(c, rec, facet), nil
}

// TryGetComponentMut takes an exclusive borrow of the facet C of the value at
// h.
func TryGetComponentMut[C, T any, PT Provider[T]](c *MultiBorrowContext[T], h Handle[T]) (*RefMut[C], error) {
	rec, d := c.writable("try_get_component_mut", h)
	if d != granted {
		return nil, d.sentinel()
	}
	facet := ComponentOf[C](PT(&rec.payload.value))
	if facet == nil {
		return nil, ErrNoComponent
	}
	return exclusive(c, rec, facet), nil
}
