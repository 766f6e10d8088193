package pool

import (
	"strconv"
	"sync/atomic"
)

// AtomicHandle is a handle that can be published to and read from several
// goroutines. Both halves live in one 64-bit word (index in the low half,
// generation in the high half), so a Load never observes a torn pair. Go
// guarantees 64-bit atomics on every platform, which covers the word-size
// requirement of the packing.
//
// An AtomicHandle grants no access to pool contents. It only identifies a slot.
// It must not be copied after first use.
type AtomicHandle struct {
	v atomic.Uint64
}

// NewAtomicHandle creates an AtomicHandle holding index and generation.
func NewAtomicHandle(index, generation uint32) *AtomicHandle {
	a := &AtomicHandle{}
	a.Set(index, generation)
	return a
}

// AtomicFrom creates an AtomicHandle holding h.
func AtomicFrom[T any](h Handle[T]) *AtomicHandle {
	return NewAtomicHandle(h.index, h.generation)
}

// HandleFromAtomic reads a typed handle from a.
func HandleFromAtomic[T any](a *AtomicHandle) Handle[T] {
	return Typed[T](a.Load())
}

func pack(index, generation uint32) uint64 {
	return uint64(index) | uint64(generation)<<32
}

// Set stores both halves in a single atomic write.
func (a *AtomicHandle) Set(index, generation uint32) {
	a.v.Store(pack(index, generation))
}

// Store replaces the handle.
func (a *AtomicHandle) Store(h ErasedHandle) {
	a.Set(h.index, h.generation)
}

// Load returns both halves from a single atomic read.
func (a *AtomicHandle) Load() ErasedHandle {
	v := a.v.Load()
	return ErasedHandle{index: uint32(v), generation: uint32(v >> 32)}
}

// CompareAndSwap replaces old with new if a currently holds old.
func (a *AtomicHandle) CompareAndSwap(old, new ErasedHandle) bool {
	return a.v.CompareAndSwap(pack(old.index, old.generation), pack(new.index, new.generation))
}

// Index returns the slot index.
func (a *AtomicHandle) Index() uint32 {
	return uint32(a.v.Load())
}

// Generation returns the generation.
func (a *AtomicHandle) Generation() uint32 {
	return uint32(a.v.Load() >> 32)
}

// IsNone reports whether the stored handle is the sentinel.
func (a *AtomicHandle) IsNone() bool {
	return a.v.Load() == 0
}

// IsSome reports whether the stored handle is not the sentinel.
func (a *AtomicHandle) IsSome() bool {
	return !a.IsNone()
}

func (a *AtomicHandle) String() string {
	h := a.Load()
	return "atomic " + strconv.FormatUint(uint64(h.index), 10) + ":" + strconv.FormatUint(uint64(h.generation), 10)
}
