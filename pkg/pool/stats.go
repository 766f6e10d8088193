package pool

// Event identifies a pool lifecycle transition reported to an Observer.
type Event string

const (
	EventSpawn          Event = "spawn"
	EventFree           Event = "free"
	EventReserve        Event = "reserve"
	EventPutBack        Event = "put_back"
	EventForget         Event = "forget"
	EventReplace        Event = "replace"
	EventClear          Event = "clear"
	EventDrain          Event = "drain"
	EventLoad           Event = "load"
	EventBorrowConflict Event = "borrow_conflict"
)

// Stats is a point-in-time view of slot accounting.
type Stats struct {
	// Capacity is the number of records, whatever their state.
	Capacity uint32
	// Alive is the number of records holding a payload.
	Alive uint32
	// Total is Capacity minus free-listed records. It includes reserved slots.
	Total uint32
	// Free is the length of the free-list.
	Free uint32
	// Reserved is the number of unresolved tickets.
	Reserved uint32
}

// Observer receives pool events. Implementations are called synchronously
// from the goroutine driving the pool and must not call back into it.
type Observer interface {
	Observe(pool string, ev Event, stats Stats)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(pool string, ev Event, stats Stats)

func (f ObserverFunc) Observe(pool string, ev Event, stats Stats) { f(pool, ev, stats) }

// Stats returns slot counters in O(1). Alive is tracked incrementally and
// always agrees with AliveCount.
func (p *Pool[T]) Stats() Stats {
	free := uint32(len(p.free))
	return Stats{
		Capacity: p.records.len(),
		Alive:    p.alive,
		Total:    p.records.len() - free,
		Free:     free,
		Reserved: uint32(p.tickets),
	}
}

func (p *Pool[T]) emit(ev Event) {
	if p.opts.observer != nil {
		p.opts.observer.Observe(p.opts.name, ev, p.Stats())
	}
}
