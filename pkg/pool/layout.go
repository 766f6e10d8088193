package pool

import (
	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/genpool/pkg/errors"
)

// Layout is the persisted form of a pool: every record in index order with
// its generation and optional payload, followed by the free-list. Handles
// stored elsewhere refer to records by index and generation, so a loaded
// layout must reproduce both exactly.
type Layout[T any] struct {
	Records   []LayoutRecord[T] `json:"Records"`
	FreeStack []uint32          `json:"FreeStack"`
}

// LayoutRecord is one persisted record. A nil Payload is a vacant or
// reserved record.
type LayoutRecord[T any] struct {
	Generation uint32 `json:"Generation"`
	Payload    *T     `json:"Payload"`
}

// Layout captures the current records and free-list. Payloads are copied.
func (p *Pool[T]) Layout() Layout[T] {
	p.enter("layout")
	l := Layout[T]{
		Records:   make([]LayoutRecord[T], p.records.len()),
		FreeStack: append([]uint32(nil), p.free...),
	}
	for i := range l.Records {
		rec := p.records.at(uint32(i))
		l.Records[i].Generation = rec.generation
		if rec.alive() {
			v := rec.payload.value
			l.Records[i].Payload = &v
		}
	}
	if l.FreeStack == nil {
		l.FreeStack = []uint32{}
	}
	return l
}

// Validate checks that l can be loaded: free-list entries must be unique,
// in range and refer to records without payload, and occupied records must
// carry a generation.
func (l Layout[T]) Validate() error {
	n := uint64(len(l.Records))
	for i, r := range l.Records {
		if r.Payload != nil && r.Generation == InvalidGeneration {
			return errors.Newf(errors.ErrorTypeData, "record %d holds a payload with generation 0", i).
				WithDetail("index", i)
		}
	}
	seen := make(map[uint32]struct{}, len(l.FreeStack))
	for _, index := range l.FreeStack {
		if uint64(index) >= n {
			return errors.Newf(errors.ErrorTypeData, "free-list index %d beyond %d records", index, n).
				WithDetail("index", index)
		}
		if _, dup := seen[index]; dup {
			return errors.Newf(errors.ErrorTypeData, "free-list holds index %d twice", index).
				WithDetail("index", index)
		}
		seen[index] = struct{}{}
		if l.Records[index].Payload != nil {
			return errors.Newf(errors.ErrorTypeData, "free-list index %d refers to an occupied record", index).
				WithDetail("index", index)
		}
	}
	return nil
}

// FromLayout builds a pool from a validated layout. Empty records absent
// from the free-list load as reserved records without a ticket and stay
// pinned.
func FromLayout[T any](l Layout[T], opts ...Option) (*Pool[T], error) {
	p := New[T](opts...)
	if err := p.load(l); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pool[T]) load(l Layout[T]) error {
	if err := l.Validate(); err != nil {
		return err
	}
	if uint64(len(l.Records)) > uint64(^uint32(0)) {
		return errors.Newf(errors.ErrorTypeData, "layout holds %d records", len(l.Records))
	}
	p.checkTickets("load")
	p.records.detach()
	p.reset()

	p.records.grow(len(l.Records))
	for _, r := range l.Records {
		rec := record[T]{generation: r.Generation}
		if r.Payload != nil {
			rec.payload = Some(*r.Payload)
			p.alive++
		}
		p.records.push(rec)
	}
	p.free = append([]uint32(nil), l.FreeStack...)
	p.emit(EventLoad)
	return nil
}

// MarshalJSON encodes the pool's Layout.
func (p *Pool[T]) MarshalJSON() ([]byte, error) {
	return gojson.Marshal(p.Layout())
}

// UnmarshalJSON replaces the pool's contents with a decoded Layout. On error
// the pool is left unchanged.
func (p *Pool[T]) UnmarshalJSON(data []byte) error {
	p.enter("unmarshal")
	var l Layout[T]
	if err := gojson.Unmarshal(data, &l); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to decode pool layout")
	}
	return p.load(l)
}
