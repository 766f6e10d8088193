package pool

import "iter"

// Iter yields a copy of every live value in index order. Vacant and reserved
// records are skipped. Each call returns a fresh single-pass sequence.
func (p *Pool[T]) Iter() iter.Seq[T] {
	return func(yield func(T) bool) {
		p.enter("iter")
		for i := uint32(0); i < p.records.len(); i++ {
			rec := p.records.at(i)
			if rec.alive() && !yield(rec.payload.value) {
				return
			}
		}
	}
}

// IterMut yields a pointer to every live value in index order.
func (p *Pool[T]) IterMut() iter.Seq[*T] {
	return func(yield func(*T) bool) {
		p.enter("iter_mut")
		for i := uint32(0); i < p.records.len(); i++ {
			rec := p.records.at(i)
			if rec.alive() && !yield(&rec.payload.value) {
				return
			}
		}
	}
}

// PairIter yields every live value together with its handle.
func (p *Pool[T]) PairIter() iter.Seq2[Handle[T], T] {
	return func(yield func(Handle[T], T) bool) {
		p.enter("pair_iter")
		for i := uint32(0); i < p.records.len(); i++ {
			rec := p.records.at(i)
			if rec.alive() && !yield(Handle[T]{index: i, generation: rec.generation}, rec.payload.value) {
				return
			}
		}
	}
}

// PairIterMut yields a pointer to every live value together with its handle.
func (p *Pool[T]) PairIterMut() iter.Seq2[Handle[T], *T] {
	return func(yield func(Handle[T], *T) bool) {
		p.enter("pair_iter_mut")
		for i := uint32(0); i < p.records.len(); i++ {
			rec := p.records.at(i)
			if rec.alive() && !yield(Handle[T]{index: i, generation: rec.generation}, &rec.payload.value) {
				return
			}
		}
	}
}

// Handles yields the handle of every live value.
func (p *Pool[T]) Handles() iter.Seq[Handle[T]] {
	return func(yield func(Handle[T]) bool) {
		for h := range p.PairIter() {
			if !yield(h) {
				return
			}
		}
	}
}

// Drain empties the pool immediately and returns a sequence of the values it
// held, in index order. Unlike Clear, ownership of the values passes to the
// caller. Unresolved tickets are handled per the leak policy.
//
// The pool can be used again right away; the returned sequence only walks the
// detached records.
func (p *Pool[T]) Drain() iter.Seq[T] {
	p.enter("drain")
	p.checkTickets("drain")
	chunks, length := p.records.detach()
	shift, mask := p.records.shift, p.records.mask
	p.reset()
	p.emit(EventDrain)

	return func(yield func(T) bool) {
		for i := uint32(0); i < length; i++ {
			rec := &chunks[i>>shift][i&mask]
			v, ok := rec.payload.Take()
			if ok && !yield(v) {
				return
			}
		}
	}
}
