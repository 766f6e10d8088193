package pool

import (
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/ajitpratap0/genpool/pkg/errors"
	"github.com/ajitpratap0/genpool/pkg/logger"
)

// Pool is a generational arena. It stores values of type T in records that
// are addressed by Handle[T]. Records are never removed, only emptied, so
// indices stay stable for the lifetime of the pool. A vacant record is
// reused by the next spawn, which bumps its generation so that handles to the
// previous occupant stop resolving.
//
// A record is in one of three states: alive (holds a payload), vacant (empty
// and on the free-list) or reserved (empty, pinned by a Ticket, not on the
// free-list).
//
// Usage errors such as dangling or out-of-bounds handles, double frees and
// overlapping exclusive borrows panic with an *errors.Error describing the
// handle and the record. The Try* methods are the non-panicking forms for
// call sites where absence is expected.
//
// A Pool is not safe for concurrent use and must not be copied.
type Pool[T any] struct {
	_ noCopy

	records  storage[T]
	free     []uint32
	alive    uint32
	reserved map[uint32]struct{}
	tickets  int
	epoch    uint64
	state    lockState
	opts     options
}

// New creates an empty pool.
func New[T any](opts ...Option) *Pool[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	p := &Pool[T]{
		records: newStorage[T](o.chunkSize),
		opts:    o,
	}
	if o.capacity > 0 {
		p.records.grow(o.capacity)
	}
	return p
}

// FromSlice creates a pool holding values in order. The i-th value gets the
// handle {i, 1}.
func FromSlice[T any](values []T, opts ...Option) *Pool[T] {
	p := New[T](append([]Option{WithCapacity(len(values))}, opts...)...)
	for _, v := range values {
		p.Spawn(v)
	}
	return p
}

// Name returns the label set with WithName.
func (p *Pool[T]) Name() string { return p.opts.name }

func (p *Pool[T]) log() *zap.Logger {
	if p.opts.logger != nil {
		return p.opts.logger
	}
	return logger.With(zap.String("pool", p.opts.name))
}

// Spawn stores v in a free record, or appends a new one, and returns its handle.
func (p *Pool[T]) Spawn(v T) Handle[T] {
	p.enter("spawn")
	index, generation, reuse := p.nextSlot("spawn")
	p.commitSpawn(index, generation, reuse, v)
	return Handle[T]{index: index, generation: generation}
}

// SpawnWith computes the handle of the new value first and then calls f with
// it, so the value may embed its own handle. f must not use the pool.
func (p *Pool[T]) SpawnWith(f func(Handle[T]) T) Handle[T] {
	p.enter("spawn_with")
	index, generation, reuse := p.nextSlot("spawn_with")
	h := Handle[T]{index: index, generation: generation}
	var v T
	p.callback(func() { v = f(h) })
	p.commitSpawn(index, generation, reuse, v)
	return h
}

// SpawnWithErr is SpawnWith for constructors that can fail. When f returns an
// error nothing is stored and the free-list is unchanged.
func (p *Pool[T]) SpawnWithErr(f func(Handle[T]) (T, error)) (Handle[T], error) {
	p.enter("spawn_with")
	index, generation, reuse := p.nextSlot("spawn_with")
	h := Handle[T]{index: index, generation: generation}
	var (
		v   T
		err error
	)
	p.callback(func() { v, err = f(h) })
	if err != nil {
		return Handle[T]{}, err
	}
	p.commitSpawn(index, generation, reuse, v)
	return h, nil
}

// nextSlot picks the record and generation the next spawn will use without
// mutating anything.
func (p *Pool[T]) nextSlot(op string) (index, generation uint32, reuse bool) {
	if n := len(p.free); n > 0 {
		index = p.free[n-1]
		rec := p.records.get(index)
		if rec == nil {
			panic(usageError(errors.ErrorTypeInternal, op, "free-list holds index %d beyond %d records", index, p.records.len()))
		}
		if rec.alive() {
			panic(usageError(errors.ErrorTypeInternal, op, "free-list holds index %d of a record with payload", index))
		}
		if rec.generation == math.MaxUint32 {
			panic(usageError(errors.ErrorTypeCapacity, op, "generation of record %d is exhausted", index))
		}
		return index, rec.generation + 1, true
	}
	if p.records.full() {
		panic(usageError(errors.ErrorTypeCapacity, op, "index space of %d records is exhausted", p.records.len()))
	}
	return p.records.len(), 1, false
}

func (p *Pool[T]) commitSpawn(index, generation uint32, reuse bool, v T) {
	if reuse {
		p.free = p.free[:len(p.free)-1]
		rec := p.records.at(index)
		rec.generation = generation
		rec.payload.Replace(v)
	} else {
		p.records.push(record[T]{generation: generation, payload: Some(v)})
	}
	p.alive++
	p.emit(EventSpawn)
}

// SpawnAt stores v at an explicit index. Missing records up to index are
// created vacant and free-listed. The new occupant gets generation 1 in a new
// record, or the next generation in a vacant one.
//
// If the record already holds a payload an occupied error is returned and v
// is not stored. Spawning into a reserved record panics.
func (p *Pool[T]) SpawnAt(index uint32, v T) (Handle[T], error) {
	p.enter("spawn_at")
	return p.spawnAt("spawn_at", index, InvalidGeneration, v)
}

// SpawnAtHandle is SpawnAt with an explicit generation. A zero generation
// behaves like SpawnAt.
func (p *Pool[T]) SpawnAtHandle(h Handle[T], v T) (Handle[T], error) {
	p.enter("spawn_at_handle")
	return p.spawnAt("spawn_at_handle", h.index, h.generation, v)
}

func (p *Pool[T]) spawnAt(op string, index, desired uint32, v T) (Handle[T], error) {
	if rec := p.records.get(index); rec != nil {
		if rec.alive() {
			return Handle[T]{}, usageError(errors.ErrorTypeOccupied, op, "record %d already holds a payload", index).
				WithDetail("index", index).
				WithDetail("record_generation", rec.generation)
		}

		pos := -1
		for i := len(p.free) - 1; i >= 0; i-- {
			if p.free[i] == index {
				pos = i
				break
			}
		}
		if pos < 0 {
			if p.isReserved(index) {
				panic(usageError(errors.ErrorTypeReservedSlot, op, "record %d is reserved by an outstanding ticket", index))
			}
			panic(usageError(errors.ErrorTypeInternal, op, "vacant record %d is missing from the free-list", index))
		}

		generation := desired
		if generation == InvalidGeneration {
			if rec.generation == math.MaxUint32 {
				panic(usageError(errors.ErrorTypeCapacity, op, "generation of record %d is exhausted", index))
			}
			generation = rec.generation + 1
		}

		p.free = slices.Delete(p.free, pos, pos+1)
		rec.generation = generation
		rec.payload.Replace(v)
		p.alive++
		p.emit(EventSpawn)
		return Handle[T]{index: index, generation: generation}, nil
	}

	if index == math.MaxUint32 {
		panic(usageError(errors.ErrorTypeCapacity, op, "index %d exceeds the index space", index))
	}

	p.records.grow(int(index - p.records.len() + 1))
	for i := p.records.len(); i < index; i++ {
		p.records.push(record[T]{generation: 1})
		p.free = append(p.free, i)
	}

	generation := desired
	if generation == InvalidGeneration {
		generation = 1
	}
	p.records.push(record[T]{generation: generation, payload: Some(v)})
	p.alive++
	p.emit(EventSpawn)
	return Handle[T]{index: index, generation: generation}, nil
}

// GenerateFreeHandles predicts the handles of the next amount spawns without
// mutating the pool: free-listed records first, with their next generation,
// then new trailing records with generation 1. Records whose generation is
// exhausted are skipped, since no spawn can reuse them. The result can be fed
// to SpawnAtHandle for bulk insertion.
func (p *Pool[T]) GenerateFreeHandles(amount int) []Handle[T] {
	p.enter("generate_free_handles")
	if amount <= 0 {
		return nil
	}
	handles := make([]Handle[T], 0, amount)
	for _, index := range p.free {
		if len(handles) == amount {
			break
		}
		gen := p.records.at(index).generation
		if gen == math.MaxUint32 {
			continue
		}
		handles = append(handles, Handle[T]{index: index, generation: gen + 1})
	}
	for next := p.records.len(); len(handles) < amount; next++ {
		handles = append(handles, Handle[T]{index: next, generation: 1})
	}
	return handles
}

// Borrow returns a copy of the value at h. It panics if h is out of bounds,
// dangling, or points to a vacant or reserved record.
func (p *Pool[T]) Borrow(h Handle[T]) T {
	p.enter("borrow")
	return p.mustResolve("borrow", h.Erase()).payload.value
}

// BorrowMut returns a pointer to the value at h. The pointer stays valid
// until the value is freed, taken or the pool is cleared. It panics like
// Borrow.
func (p *Pool[T]) BorrowMut(h Handle[T]) *T {
	p.enter("borrow_mut")
	return &p.mustResolve("borrow_mut", h.Erase()).payload.value
}

// TryBorrow returns the value at h, or false if h does not resolve.
func (p *Pool[T]) TryBorrow(h Handle[T]) (T, bool) {
	p.enter("try_borrow")
	rec, f := p.resolve(h.index, h.generation)
	if f != faultNone {
		var zero T
		return zero, false
	}
	return rec.payload.value, true
}

// TryBorrowMut returns a pointer to the value at h, or nil.
func (p *Pool[T]) TryBorrowMut(h Handle[T]) *T {
	p.enter("try_borrow_mut")
	rec, f := p.resolve(h.index, h.generation)
	if f != faultNone {
		return nil
	}
	return &rec.payload.value
}

// BorrowTwoMut returns pointers to two distinct values. It panics if the
// handles share an index.
func (p *Pool[T]) BorrowTwoMut(a, b Handle[T]) (*T, *T) {
	p.enter("borrow_two_mut")
	p.mustBeDisjoint("borrow_two_mut", a, b)
	return p.BorrowMut(a), p.BorrowMut(b)
}

// BorrowThreeMut returns pointers to three distinct values.
func (p *Pool[T]) BorrowThreeMut(a, b, c Handle[T]) (*T, *T, *T) {
	p.enter("borrow_three_mut")
	p.mustBeDisjoint("borrow_three_mut", a, b, c)
	return p.BorrowMut(a), p.BorrowMut(b), p.BorrowMut(c)
}

// BorrowFourMut returns pointers to four distinct values.
func (p *Pool[T]) BorrowFourMut(a, b, c, d Handle[T]) (*T, *T, *T, *T) {
	p.enter("borrow_four_mut")
	p.mustBeDisjoint("borrow_four_mut", a, b, c, d)
	return p.BorrowMut(a), p.BorrowMut(b), p.BorrowMut(c), p.BorrowMut(d)
}

func (p *Pool[T]) mustBeDisjoint(op string, handles ...Handle[T]) {
	for i := range handles {
		for j := i + 1; j < len(handles); j++ {
			if handles[i].index == handles[j].index {
				panic(usageError(errors.ErrorTypeOverlappingBorrow, op,
					"handles %#v and %#v share record %d", handles[i], handles[j], handles[i].index).
					WithDetail("index", handles[i].index))
			}
		}
	}
}

// TryBorrowDependantMut borrows the value at h, asks next for a second handle
// stored inside it and borrows that one too. The second result is nil when
// the second handle does not resolve or equals h. The pool is locked while
// next runs.
func (p *Pool[T]) TryBorrowDependantMut(h Handle[T], next func(*T) Handle[T]) (*T, *T) {
	first := p.TryBorrowMut(h)
	if first == nil {
		return nil, nil
	}
	var second Handle[T]
	p.callback(func() { second = next(first) })
	if second == h {
		return first, nil
	}
	return first, p.TryBorrowMut(second)
}

// Free removes the value at h and returns it. The record is free-listed but
// keeps its generation until the next spawn reuses it. Free panics on an
// out-of-bounds or dangling handle and on a double free, before changing
// anything.
func (p *Pool[T]) Free(h Handle[T]) T {
	p.enter("free")
	rec, f := p.resolve(h.index, h.generation)
	if f != faultNone {
		panic(p.faultError("free", f, h.Erase(), rec, errors.ErrorTypeDoubleFree))
	}
	return p.release(h.index, rec)
}

// TryFree is the non-panicking form of Free.
func (p *Pool[T]) TryFree(h Handle[T]) (T, bool) {
	p.enter("try_free")
	rec, f := p.resolve(h.index, h.generation)
	if f != faultNone {
		var zero T
		return zero, false
	}
	return p.release(h.index, rec), true
}

func (p *Pool[T]) release(index uint32, rec *record[T]) T {
	v, _ := rec.payload.Take()
	p.free = append(p.free, index)
	p.alive--
	p.emit(EventFree)
	return v
}

// Capacity returns the number of records, whatever their state.
func (p *Pool[T]) Capacity() uint32 {
	return p.records.len()
}

// AliveCount returns the number of records holding a payload. Reserved and
// vacant records are excluded. It scans every record.
func (p *Pool[T]) AliveCount() uint32 {
	var n uint32
	for i := uint32(0); i < p.records.len(); i++ {
		if p.records.at(i).alive() {
			n++
		}
	}
	return n
}

// TotalCount returns Capacity minus the free-list length. Reserved records
// are counted.
func (p *Pool[T]) TotalCount() uint32 {
	return p.records.len() - uint32(len(p.free))
}

// Clear drops every record and the free-list. Every handle issued so far
// stops resolving. Unresolved tickets are handled per the leak policy.
func (p *Pool[T]) Clear() {
	p.enter("clear")
	p.checkTickets("clear")
	p.records.detach()
	p.reset()
	p.emit(EventClear)
}

func (p *Pool[T]) reset() {
	p.free = nil
	p.alive = 0
	p.reserved = nil
	p.tickets = 0
	p.epoch++
}

// At returns the payload at index without any generation check.
func (p *Pool[T]) At(index uint32) (T, bool) {
	p.enter("at")
	if rec := p.records.get(index); rec != nil && rec.alive() {
		return rec.payload.value, true
	}
	var zero T
	return zero, false
}

// AtMut returns a pointer to the payload at index without any generation
// check, or nil.
func (p *Pool[T]) AtMut(index uint32) *T {
	p.enter("at_mut")
	if rec := p.records.get(index); rec != nil && rec.alive() {
		return &rec.payload.value
	}
	return nil
}

// HandleFromIndex returns the handle of whatever occupies index, or the none
// handle if the record does not exist or was never assigned a generation.
func (p *Pool[T]) HandleFromIndex(index uint32) Handle[T] {
	if rec := p.records.get(index); rec != nil && rec.generation != InvalidGeneration {
		return Handle[T]{index: index, generation: rec.generation}
	}
	return Handle[T]{}
}

// Replace stores v at h and returns the previous payload, if any. If the
// record was free-listed under the same generation it is removed from the
// free-list, which lets a loader resurrect a record at an exact generation.
// Replace returns false for an out-of-bounds handle and panics on a
// dangling one or on a record reserved by a ticket.
func (p *Pool[T]) Replace(h Handle[T], v T) (T, bool) {
	p.enter("replace")
	rec := p.records.get(h.index)
	if rec == nil {
		var zero T
		return zero, false
	}
	if rec.generation != h.generation {
		panic(p.faultError("replace", faultDangling, h.Erase(), rec, errors.ErrorTypeEmptySlot))
	}
	if p.isReserved(h.index) {
		panic(usageError(errors.ErrorTypeReservedSlot, "replace", "record %d is reserved by an outstanding ticket", h.index).
			WithDetail("index", h.index).
			WithDetail("generation", h.generation))
	}
	p.free = slices.DeleteFunc(p.free, func(i uint32) bool { return i == h.index })
	old, had := rec.payload.Replace(v)
	if !had {
		p.alive++
	}
	p.emit(EventReplace)
	return old, had
}

// IsValidHandle reports whether h resolves to a live payload.
func (p *Pool[T]) IsValidHandle(h Handle[T]) bool {
	_, f := p.resolve(h.index, h.generation)
	return f == faultNone
}

// FirstRef returns the first live value in index order.
func (p *Pool[T]) FirstRef() (T, bool) {
	for v := range p.Iter() {
		return v, true
	}
	var zero T
	return zero, false
}

// FirstMut returns a pointer to the first live value in index order.
func (p *Pool[T]) FirstMut() *T {
	for v := range p.IterMut() {
		return v
	}
	return nil
}

// Retain frees every live value for which keep returns false, in one pass.
// keep must not use the pool.
func (p *Pool[T]) Retain(keep func(*T) bool) {
	p.enter("retain")
	for i := uint32(0); i < p.records.len(); i++ {
		rec := p.records.at(i)
		if rec.generation == InvalidGeneration || !rec.alive() {
			continue
		}
		var retain bool
		p.callback(func() { retain = keep(&rec.payload.value) })
		if !retain {
			p.release(i, rec)
		}
	}
}

// HandleOf recovers the handle of a value from a pointer obtained through
// BorrowMut, AtMut or the mutable iterators. It returns the none handle when
// ptr does not point at a payload inside this pool.
func (p *Pool[T]) HandleOf(ptr *T) Handle[T] {
	p.enter("handle_of")
	index, ok := p.records.indexOf(ptr)
	if !ok {
		return Handle[T]{}
	}
	return p.HandleFromIndex(index)
}

// Clone returns a pool with the same layout. Payloads are copied by
// assignment. Borrow state and tickets are not carried over, so records
// reserved in p stay pinned in the clone.
func (p *Pool[T]) Clone() *Pool[T] {
	p.enter("clone")
	c := New[T](WithName(p.opts.name), WithChunkSize(p.records.chunkSize()),
		WithLeakPolicy(p.opts.leakPolicy), WithLogger(p.opts.logger), WithObserver(p.opts.observer))
	c.records.grow(int(p.records.len()))
	for i := uint32(0); i < p.records.len(); i++ {
		src := p.records.at(i)
		c.records.push(record[T]{generation: src.generation, payload: src.payload})
	}
	c.free = slices.Clone(p.free)
	c.alive = p.alive
	return c
}

type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
