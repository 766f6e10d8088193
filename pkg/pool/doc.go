// Package pool implements a generational arena: a growable sequence of
// records addressed by small, copyable handles that carry an index and a
// generation. It is the storage layer for handle-based object graphs such as
// scene trees, where nodes refer to each other by Handle instead of by
// pointer.
//
// # Handles and generations
//
// A Handle[T] is {index, generation}. Freeing a value pushes its record onto
// a LIFO free-list without touching the generation; the next spawn that
// reuses the record increments it. Any handle captured before the free
// therefore stops resolving once the record is reused, even though the index
// is the same. Generation 0 is never assigned to an occupied record, so the
// zero Handle is a safe "none" sentinel.
//
//	p := pool.New[string]()
//	a := p.Spawn("Foobar") // 0:1
//	b := p.Spawn("Baz")    // 1:1
//	p.Free(a)
//	c := p.Spawn("AtFoobarIndex") // 0:2
//	p.IsValidHandle(a)            // false
//	p.Borrow(c)                   // "AtFoobarIndex"
//
// # Record states
//
// Records are alive (hold a payload), vacant (empty and free-listed) or
// reserved. TakeReserve moves a value out while pinning its record: the
// record is neither alive nor available to spawns until the returned Ticket
// is resolved by PutBack, which restores the value under the same handle, or
// by ForgetTicket, which free-lists the record. Records are never removed, so
// indices stay stable until Clear or Drain.
//
// # Errors
//
// Using a dangling or out-of-bounds handle, freeing twice, requesting
// overlapping exclusive borrows or resolving a ticket twice are caller bugs.
// They panic with an *errors.Error from pkg/errors carrying the handle and
// record state in its Details. The Try* methods are total and report absence
// with a boolean or nil result.
//
// # Multi-borrow
//
// BeginMultiBorrow opens a MultiBorrowContext that hands out Ref and RefMut
// guards checked per record, for graph traversals that need several live
// borrows whose handles are only discovered at runtime. While a context is
// open the pool is locked against direct use. A refused TryGet returns one of
// the shared ErrMutablyBorrowed, ErrImmutablyBorrowed, ErrNoComponent or
// handle errors without allocating; Get and GetMut panic with a detailed
// error instead.
//
// # Memory
//
// Records are allocated in fixed-size chunks that never move, so pointers
// returned by BorrowMut and the mutable iterators stay valid while the pool
// grows, and HandleOf can map such a pointer back to its handle.
//
// # Concurrency
//
// A Pool is not safe for concurrent use. AtomicHandle is the only type meant
// to be shared between goroutines, and it only identifies a record.
package pool
