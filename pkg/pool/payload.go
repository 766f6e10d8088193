package pool

// PayloadContainer abstracts "a slot may or may not hold a value". Payload is
// the implementation the pool stores inline; alternative containers can be
// written against this interface without touching slot bookkeeping.
type PayloadContainer[T any] interface {
	// IsSome reports whether a value is present.
	IsSome() bool
	// Get returns the value without removing it.
	Get() (T, bool)
	// Ptr returns a pointer to the stored value, or nil when empty.
	Ptr() *T
	// Replace stores v and returns the previous value, if any.
	Replace(v T) (T, bool)
	// Take removes and returns the value, leaving the container empty.
	Take() (T, bool)
}

// Payload is the default PayloadContainer: an optional value. The zero Payload
// is empty.
type Payload[T any] struct {
	value T
	some  bool
}

var _ PayloadContainer[int] = (*Payload[int])(nil)

// Some returns an occupied Payload.
func Some[T any](v T) Payload[T] {
	return Payload[T]{value: v, some: true}
}

// Empty returns a vacant Payload.
func Empty[T any]() Payload[T] {
	return Payload[T]{}
}

// IsSome implements PayloadContainer.
func (o *Payload[T]) IsSome() bool { return o.some }

// Get returns the value and whether one is present.
func (o *Payload[T]) Get() (T, bool) {
	return o.value, o.some
}

// Ptr returns the value in place, or nil when empty.
func (o *Payload[T]) Ptr() *T {
	if !o.some {
		return nil
	}
	return &o.value
}

// Replace stores v and returns the previous value, if any.
func (o *Payload[T]) Replace(v T) (T, bool) {
	old, had := o.value, o.some
	o.value, o.some = v, true
	return old, had
}

// Take removes and returns the value. The slot is zeroed so the pool does not
// retain references held by the removed payload.
func (o *Payload[T]) Take() (T, bool) {
	var zero T
	old, had := o.value, o.some
	o.value, o.some = zero, false
	return old, had
}
