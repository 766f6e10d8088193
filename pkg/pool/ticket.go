package pool

import (
	"runtime"
	"slices"
	"strconv"

	"go.uber.org/zap"

	"github.com/ajitpratap0/genpool/pkg/errors"
	"github.com/ajitpratap0/genpool/pkg/logger"
)

// Ticket proves that a record was emptied by TakeReserve and is pinned: it is
// neither alive nor on the free-list. A ticket must be resolved exactly once,
// either by PutBack or by ForgetTicket. Resolving it twice panics.
//
// Unresolved tickets are reported when the pool is cleared or drained,
// according to the pool's LeakPolicy, and a ticket that is garbage collected
// while unresolved is logged.
type Ticket[T any] struct {
	pool  *Pool[T]
	index uint32
	epoch uint64
	open  bool
}

// Index returns the reserved record index.
func (t *Ticket[T]) Index() uint32 { return t.index }

// Pending reports whether the ticket still has to be resolved.
func (t *Ticket[T]) Pending() bool { return t.open }

func (t *Ticket[T]) String() string {
	state := "resolved"
	if t.open {
		state = "pending"
	}
	return "ticket " + strconv.FormatUint(uint64(t.index), 10) + " (" + state + ")"
}

func (t *Ticket[T]) close() {
	t.open = false
	runtime.SetFinalizer(t, nil)
}

// TakeReserve removes the value at h without free-listing its record. Every
// handle to the record stops resolving until PutBack restores a value, and no
// spawn can claim the record in the meantime. It panics like Free.
func (p *Pool[T]) TakeReserve(h Handle[T]) (*Ticket[T], T) {
	p.enter("take_reserve")
	rec, f := p.resolve(h.index, h.generation)
	if f != faultNone {
		panic(p.faultError("take_reserve", f, h.Erase(), rec, errors.ErrorTypeEmptySlot))
	}
	return p.reserve(h.index, rec)
}

// TryTakeReserve is the non-panicking form of TakeReserve.
func (p *Pool[T]) TryTakeReserve(h Handle[T]) (*Ticket[T], T, bool) {
	p.enter("try_take_reserve")
	rec, f := p.resolve(h.index, h.generation)
	if f != faultNone {
		var zero T
		return nil, zero, false
	}
	t, v := p.reserve(h.index, rec)
	return t, v, true
}

func (p *Pool[T]) reserve(index uint32, rec *record[T]) (*Ticket[T], T) {
	v, _ := rec.payload.Take()
	p.alive--
	if p.reserved == nil {
		p.reserved = make(map[uint32]struct{})
	}
	p.reserved[index] = struct{}{}
	p.tickets++

	t := &Ticket[T]{pool: p, index: index, epoch: p.epoch, open: true}
	log, name := p.opts.logger, p.opts.name
	runtime.SetFinalizer(t, func(t *Ticket[T]) {
		if !t.open {
			return
		}
		l := log
		if l == nil {
			l = logger.Get()
		}
		l.Warn("ticket was garbage collected without being resolved",
			zap.String("pool", name),
			zap.Uint32("index", t.index))
	})

	p.emit(EventReserve)
	return t, v
}

// PutBack restores a value into the reserved record and returns its handle.
// The generation is unchanged, so handles taken before the reservation
// resolve again.
func (p *Pool[T]) PutBack(t *Ticket[T], v T) Handle[T] {
	p.enter("put_back")
	rec := p.redeem("put_back", t)
	if rec.alive() {
		panic(usageError(errors.ErrorTypeReservedSlot, "put_back", "reserved record %d was filled before the ticket was resolved", t.index))
	}
	rec.payload.Replace(v)
	p.alive++
	p.settle(t)
	p.emit(EventPutBack)
	return Handle[T]{index: t.index, generation: rec.generation}
}

// ForgetTicket abandons a reservation and free-lists the record without
// restoring a value. The next spawn reusing it gets a new generation.
func (p *Pool[T]) ForgetTicket(t *Ticket[T]) {
	p.enter("forget_ticket")
	rec := p.redeem("forget_ticket", t)
	if rec.alive() {
		panic(usageError(errors.ErrorTypeReservedSlot, "forget_ticket", "reserved record %d was filled before the ticket was resolved", t.index))
	}
	p.free = append(p.free, t.index)
	p.settle(t)
	p.emit(EventForget)
}

// redeem validates t against p and returns its record.
func (p *Pool[T]) redeem(op string, t *Ticket[T]) *record[T] {
	switch {
	case t == nil:
		panic(usageError(errors.ErrorTypeTicket, op, "nil ticket"))
	case t.pool != p:
		panic(usageError(errors.ErrorTypeTicket, op, "ticket for record %d belongs to another pool", t.index))
	case !t.open:
		panic(usageError(errors.ErrorTypeTicket, op, "ticket for record %d was already resolved", t.index))
	case t.epoch != p.epoch:
		panic(usageError(errors.ErrorTypeTicket, op, "ticket for record %d predates the last clear, drain or load", t.index))
	}
	rec := p.records.get(t.index)
	if rec == nil {
		panic(usageError(errors.ErrorTypeInternal, op, "ticket index %d beyond %d records", t.index, p.records.len()))
	}
	return rec
}

func (p *Pool[T]) settle(t *Ticket[T]) {
	delete(p.reserved, t.index)
	p.tickets--
	t.close()
}

func (p *Pool[T]) isReserved(index uint32) bool {
	_, ok := p.reserved[index]
	return ok
}

// OutstandingTickets returns the number of unresolved tickets.
func (p *Pool[T]) OutstandingTickets() int { return p.tickets }

// VerifyTickets returns an unresolved_ticket error listing reserved indices,
// or nil when every ticket has been resolved. Call it at shutdown to turn
// forgotten reservations into a reportable error.
func (p *Pool[T]) VerifyTickets() error {
	if p.tickets == 0 {
		return nil
	}
	return usageError(errors.ErrorTypeUnresolvedTicket, "verify_tickets", "%d tickets are unresolved", p.tickets).
		WithDetail("indices", p.reservedIndices())
}

func (p *Pool[T]) reservedIndices() []uint32 {
	indices := make([]uint32, 0, len(p.reserved))
	for i := range p.reserved {
		indices = append(indices, i)
	}
	slices.Sort(indices)
	return indices
}

// checkTickets applies the leak policy before a teardown.
func (p *Pool[T]) checkTickets(op string) {
	if p.tickets == 0 {
		return
	}
	switch p.opts.leakPolicy {
	case LeakPanic:
		panic(usageError(errors.ErrorTypeUnresolvedTicket, op, "%d tickets are unresolved", p.tickets).
			WithDetail("indices", p.reservedIndices()))
	case LeakLog:
		p.log().Warn("tearing down pool with unresolved tickets",
			zap.String("op", op),
			zap.Int("tickets", p.tickets),
			zap.Uint32s("indices", p.reservedIndices()))
	}
}
