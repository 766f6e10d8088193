package pool

import (
	"github.com/ajitpratap0/genpool/pkg/errors"
)

// MultiBorrowContext hands out runtime-checked borrows of many distinct
// records at once. Each record carries its own readers/writer state: any
// number of Ref guards, or a single RefMut guard, may be live per record,
// while guards on different records never conflict. A denied borrow returns
// an error immediately; nothing blocks.
//
// While a context is open the pool itself is locked and every method that
// touches payloads panics. Values freed through the context are free-listed
// when the context ends.
//
//	ctx := p.BeginMultiBorrow()
//	defer ctx.End()
//	parent, err := ctx.TryGetMut(node.Parent)
//	...
//	defer parent.Release()
type MultiBorrowContext[T any] struct {
	pool  *Pool[T]
	freed []uint32
	s     *session
}

// session is shared between a context and its guards.
type session struct {
	live  int
	ended bool
}

// BeginMultiBorrow locks the pool and opens a borrow session. The caller must
// call End.
func (p *Pool[T]) BeginMultiBorrow() *MultiBorrowContext[T] {
	p.enter("begin_multi_borrow")
	p.state = lockedByContext
	return &MultiBorrowContext[T]{pool: p, s: &session{}}
}

// Ref is a shared borrow of a value or one of its components. Release it when
// done; the value must not be modified through it.
type Ref[C any] struct {
	value *C
	state *borrowState
	s     *session
	done  bool
}

// Get returns a copy of the borrowed value.
func (r *Ref[C]) Get() C {
	r.mustBeLive()
	return *r.value
}

// Ptr returns the borrowed value in place, for reading only.
func (r *Ref[C]) Ptr() *C {
	r.mustBeLive()
	return r.value
}

// Release ends the borrow. Releasing twice panics.
func (r *Ref[C]) Release() {
	if r.done {
		panic(usageError(errors.ErrorTypeLocked, "ref_release", "guard released twice"))
	}
	r.done = true
	if r.s.ended {
		return
	}
	r.state.readers--
	r.s.live--
}

func (r *Ref[C]) mustBeLive() {
	if r.done || r.s.ended {
		panic(usageError(errors.ErrorTypeLocked, "ref", "guard used after release"))
	}
}

// RefMut is an exclusive borrow of a value or one of its components.
type RefMut[C any] struct {
	value *C
	state *borrowState
	s     *session
	done  bool
}

// Get returns the borrowed value for modification.
func (r *RefMut[C]) Get() *C {
	if r.done || r.s.ended {
		panic(usageError(errors.ErrorTypeLocked, "ref_mut", "guard used after release"))
	}
	return r.value
}

// Release ends the borrow. Releasing twice panics.
func (r *RefMut[C]) Release() {
	if r.done {
		panic(usageError(errors.ErrorTypeLocked, "ref_mut_release", "guard released twice"))
	}
	r.done = true
	if r.s.ended {
		return
	}
	r.state.writing = false
	r.s.live--
}

func (c *MultiBorrowContext[T]) mustBeOpen(op string) {
	if c.s.ended {
		panic(usageError(errors.ErrorTypeLocked, op, "multi-borrow context already ended"))
	}
}

// denial says why a context refused a borrow.
type denial uint8

const (
	granted denial = iota
	deniedOutOfBounds
	deniedDangling
	deniedEmpty
	deniedMutably
	deniedImmutably
)

// sentinel maps d onto the shared error returned by the Try methods.
func (d denial) sentinel() error {
	switch d {
	case deniedOutOfBounds:
		return ErrOutOfBounds
	case deniedDangling:
		return ErrDanglingHandle
	case deniedEmpty:
		return ErrEmptySlot
	case deniedMutably:
		return ErrMutablyBorrowed
	case deniedImmutably:
		return ErrImmutablyBorrowed
	default:
		return nil
	}
}

// describe builds a detailed error for d. Panicking and freeing paths use it;
// the Try methods return sentinels instead.
func (c *MultiBorrowContext[T]) describe(op string, h Handle[T], rec *record[T], d denial) *errors.Error {
	p := c.pool
	switch d {
	case deniedOutOfBounds:
		return p.faultError(op, faultOutOfBounds, h.Erase(), nil, errors.ErrorTypeEmptySlot)
	case deniedDangling:
		return p.faultError(op, faultDangling, h.Erase(), rec, errors.ErrorTypeEmptySlot)
	case deniedEmpty:
		return p.faultError(op, faultEmpty, h.Erase(), rec, errors.ErrorTypeEmptySlot)
	}
	t, what := errors.ErrorTypeImmutablyBorrowed, "shared"
	if d == deniedMutably {
		t, what = errors.ErrorTypeMutablyBorrowed, "exclusive"
	}
	return usageError(t, op, "record of handle %#v is held by a %s borrow", h, what).
		WithDetail("index", h.index).
		WithDetail("generation", h.generation)
}

// lookup resolves h up to the generation check.
func (c *MultiBorrowContext[T]) lookup(op string, h Handle[T]) (*record[T], denial) {
	c.mustBeOpen(op)
	rec := c.pool.records.get(h.index)
	if rec == nil {
		return nil, deniedOutOfBounds
	}
	if rec.generation != h.generation {
		return rec, deniedDangling
	}
	return rec, granted
}

func (c *MultiBorrowContext[T]) conflict(d denial) denial {
	c.pool.emit(EventBorrowConflict)
	return d
}

// readable checks whether a shared borrow of h may be taken.
func (c *MultiBorrowContext[T]) readable(op string, h Handle[T]) (*record[T], denial) {
	rec, d := c.lookup(op, h)
	switch {
	case d != granted:
		return rec, d
	case rec.borrow.writing:
		return rec, c.conflict(deniedMutably)
	case !rec.alive():
		return rec, deniedEmpty
	}
	return rec, granted
}

// writable checks whether an exclusive borrow of h may be taken.
func (c *MultiBorrowContext[T]) writable(op string, h Handle[T]) (*record[T], denial) {
	rec, d := c.lookup(op, h)
	switch {
	case d != granted:
		return rec, d
	case rec.borrow.writing:
		return rec, c.conflict(deniedMutably)
	case rec.borrow.readers > 0:
		return rec, c.conflict(deniedImmutably)
	case !rec.alive():
		return rec, deniedEmpty
	}
	return rec, granted
}

func shared[C, T any](c *MultiBorrowContext[T], rec *record[T], value *C) *Ref[C] {
	rec.borrow.readers++
	c.s.live++
	return &Ref[C]{value: value, state: &rec.borrow, s: c.s}
}

func exclusive[C, T any](c *MultiBorrowContext[T], rec *record[T], value *C) *RefMut[C] {
	rec.borrow.writing = true
	c.s.live++
	return &RefMut[C]{value: value, state: &rec.borrow, s: c.s}
}

// TryGet takes a shared borrow of the value at h. It fails with
// ErrMutablyBorrowed while an exclusive guard on the record is live, and
// with ErrOutOfBounds, ErrDanglingHandle or ErrEmptySlot when h does not
// resolve. A refusal does not allocate.
func (c *MultiBorrowContext[T]) TryGet(h Handle[T]) (*Ref[T], error) {
	rec, d := c.readable("try_get", h)
	if d != granted {
		return nil, d.sentinel()
	}
	return shared(c, rec, &rec.payload.value), nil
}

// Get is TryGet that panics on failure with a detailed error.
func (c *MultiBorrowContext[T]) Get(h Handle[T]) *Ref[T] {
	rec, d := c.readable("get", h)
	if d != granted {
		panic(c.describe("get", h, rec, d))
	}
	return shared(c, rec, &rec.payload.value)
}

// TryGetMut takes an exclusive borrow of the value at h. It fails with
// ErrMutablyBorrowed or ErrImmutablyBorrowed while any guard on the record
// is live.
func (c *MultiBorrowContext[T]) TryGetMut(h Handle[T]) (*RefMut[T], error) {
	rec, d := c.writable("try_get_mut", h)
	if d != granted {
		return nil, d.sentinel()
	}
	return exclusive(c, rec, &rec.payload.value), nil
}

// GetMut is TryGetMut that panics on failure with a detailed error.
func (c *MultiBorrowContext[T]) GetMut(h Handle[T]) *RefMut[T] {
	rec, d := c.writable("get_mut", h)
	if d != granted {
		panic(c.describe("get_mut", h, rec, d))
	}
	return exclusive(c, rec, &rec.payload.value)
}

// Free removes the value at h. The record must not be borrowed. Its index
// joins the free-list when the context ends, so no spawn inside the session
// can reuse it.
func (c *MultiBorrowContext[T]) Free(h Handle[T]) (T, error) {
	var zero T
	rec, d := c.writable("free", h)
	if d != granted {
		return zero, c.describe("free", h, rec, d)
	}
	v, _ := rec.payload.Take()
	c.pool.alive--
	c.freed = append(c.freed, h.index)
	c.pool.emit(EventFree)
	return v, nil
}

// Live returns the number of unreleased guards.
func (c *MultiBorrowContext[T]) Live() int { return c.s.live }

// End closes the session, unlocks the pool and free-lists the values freed
// through the context. Calling End again does nothing. If guards are still
// live their records are reset and End panics after unlocking the pool.
func (c *MultiBorrowContext[T]) End() {
	if c.s.ended {
		return
	}
	c.s.ended = true
	p := c.pool
	p.state = unlocked
	p.free = append(p.free, c.freed...)
	c.freed = nil

	if live := c.s.live; live > 0 {
		for i := uint32(0); i < p.records.len(); i++ {
			p.records.at(i).borrow = borrowState{}
		}
		panic(usageError(errors.ErrorTypeLocked, "end_multi_borrow", "%d guards were still live", live))
	}
}
