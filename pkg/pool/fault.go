package pool

import (
	"github.com/ajitpratap0/genpool/pkg/errors"
)

// Errors returned by the MultiBorrowContext Try methods. They are shared
// values and must not be modified; classify them with errors.IsType or
// compare them directly.
var (
	ErrOutOfBounds       = &errors.Error{Type: errors.ErrorTypeOutOfBounds, Message: "pool: handle is out of bounds"}
	ErrDanglingHandle    = &errors.Error{Type: errors.ErrorTypeDanglingHandle, Message: "pool: handle generation does not match the record"}
	ErrEmptySlot         = &errors.Error{Type: errors.ErrorTypeEmptySlot, Message: "pool: record has no payload"}
	ErrMutablyBorrowed   = &errors.Error{Type: errors.ErrorTypeMutablyBorrowed, Message: "pool: record is held by an exclusive borrow"}
	ErrImmutablyBorrowed = &errors.Error{Type: errors.ErrorTypeImmutablyBorrowed, Message: "pool: record is held by a shared borrow"}
	ErrNoComponent       = &errors.Error{Type: errors.ErrorTypeNoComponent, Message: "pool: value has no such component"}
)

// fault classifies why a handle did not resolve to a live payload.
type fault uint8

const (
	faultNone fault = iota
	faultOutOfBounds
	faultDangling
	faultEmpty
)

// resolve looks up the record for index/generation without allocating.
func (p *Pool[T]) resolve(index, generation uint32) (*record[T], fault) {
	rec := p.records.get(index)
	switch {
	case rec == nil:
		return nil, faultOutOfBounds
	case rec.generation != generation:
		return rec, faultDangling
	case !rec.alive():
		return rec, faultEmpty
	default:
		return rec, faultNone
	}
}

// mustResolve returns the live record for h or panics with a diagnostic
// naming the handle and the record state.
func (p *Pool[T]) mustResolve(op string, h ErasedHandle) *record[T] {
	rec, f := p.resolve(h.index, h.generation)
	if f != faultNone {
		panic(p.faultError(op, f, h, rec, errors.ErrorTypeEmptySlot))
	}
	return rec
}

// faultError builds the error for f. emptyType selects how an empty slot is
// reported, since free and borrow name the same condition differently.
func (p *Pool[T]) faultError(op string, f fault, h ErasedHandle, rec *record[T], emptyType errors.ErrorType) *errors.Error {
	var err *errors.Error
	switch f {
	case faultOutOfBounds:
		err = errors.Newf(errors.ErrorTypeOutOfBounds,
			"pool: %s: out-of-bounds handle %#v, record count is %d", op, h, p.records.len())
	case faultDangling:
		err = errors.Newf(errors.ErrorTypeDanglingHandle,
			"pool: %s: dangling handle %#v, record generation is %d", op, h, rec.generation).
			WithDetail("record_generation", rec.generation)
	case faultEmpty:
		reason := "slot is vacant"
		if p.isReserved(h.index) {
			reason = "slot is reserved by an outstanding ticket"
		}
		err = errors.Newf(emptyType, "pool: %s: handle %#v has no payload, %s", op, h, reason).
			WithDetail("record_generation", rec.generation)
	default:
		err = errors.Newf(errors.ErrorTypeInternal, "pool: %s: handle %#v resolved", op, h)
	}
	return err.
		WithDetail("index", h.index).
		WithDetail("generation", h.generation).
		WithDetail("record_count", p.records.len())
}

func usageError(t errors.ErrorType, op, format string, args ...any) *errors.Error {
	return errors.Newf(t, "pool: "+op+": "+format, args...)
}

// lockState records who currently has exclusive use of the pool.
type lockState uint8

const (
	unlocked lockState = iota
	lockedByContext
	lockedByCallback
)

func (s lockState) String() string {
	switch s {
	case lockedByContext:
		return "an open multi-borrow context"
	case lockedByCallback:
		return "a running callback"
	default:
		return "nothing"
	}
}

// enter panics if the pool is held by a multi-borrow context or by a callback
// the pool is currently running.
func (p *Pool[T]) enter(op string) {
	if p.state != unlocked {
		panic(usageError(errors.ErrorTypeLocked, op, "pool is held by %s", p.state))
	}
}

// callback runs fn with the pool locked against reentrant use.
func (p *Pool[T]) callback(fn func()) {
	p.state = lockedByCallback
	defer func() { p.state = unlocked }()
	fn()
}
