package pool

import (
	"fmt"
	"strconv"

	gojson "github.com/goccy/go-json"
)

// InvalidGeneration is never assigned to an occupied slot. A handle carrying
// it can never resolve, which is what makes the zero Handle a safe sentinel.
const InvalidGeneration uint32 = 0

// Handle names a slot of a Pool[T] without owning its content. It is a plain
// comparable value: equality uses both the index and the generation, so a
// Handle can be used directly as a map key.
//
// The type parameter only distinguishes handles of different pools at compile
// time. A Handle is valid only relative to a specific pool at a specific moment;
// constructing one never consults a pool.
//
// The zero value is the "none" handle.
type Handle[T any] struct {
	index      uint32
	generation uint32
}

// NewHandle encodes an index and a generation without any validation.
func NewHandle[T any](index, generation uint32) Handle[T] {
	return Handle[T]{index: index, generation: generation}
}

// None returns the sentinel handle {0, 0}.
func None[T any]() Handle[T] {
	return Handle[T]{}
}

// Index returns the slot position.
func (h Handle[T]) Index() uint32 { return h.index }

// Generation returns the occupancy counter the handle was issued for.
func (h Handle[T]) Generation() uint32 { return h.generation }

// IsNone reports whether h is the sentinel handle.
func (h Handle[T]) IsNone() bool {
	return h.index == 0 && h.generation == InvalidGeneration
}

// IsSome reports whether h differs from the sentinel handle.
func (h Handle[T]) IsSome() bool { return !h.IsNone() }

// Less orders handles by index only. Two handles to different generations of
// the same slot are neither less nor greater than each other.
func (h Handle[T]) Less(other Handle[T]) bool {
	return h.index < other.index
}

// Compare orders handles by index only, for use with slices.SortFunc.
func (h Handle[T]) Compare(other Handle[T]) int {
	switch {
	case h.index < other.index:
		return -1
	case h.index > other.index:
		return 1
	default:
		return 0
	}
}

// Erase drops the static type of the handle.
func (h Handle[T]) Erase() ErasedHandle {
	return ErasedHandle{index: h.index, generation: h.generation}
}

// Transmute reinterprets a handle as a handle to another element type. The
// index and generation are kept as is.
func Transmute[U, T any](h Handle[T]) Handle[U] {
	return Handle[U]{index: h.index, generation: h.generation}
}

// String renders the handle as "index:generation".
func (h Handle[T]) String() string {
	return strconv.FormatUint(uint64(h.index), 10) + ":" + strconv.FormatUint(uint64(h.generation), 10)
}

// GoString renders the handle for %#v and diagnostics.
func (h Handle[T]) GoString() string {
	return fmt.Sprintf("[Idx: %d; Gen: %d]", h.index, h.generation)
}

type handleJSON struct {
	Index      uint32 `json:"Index"`
	Generation uint32 `json:"Generation"`
}

// MarshalJSON stores the handle as {"Index":i,"Generation":g}. Handles embedded
// in other persisted data must survive a pool reload, so both fields are kept.
func (h Handle[T]) MarshalJSON() ([]byte, error) {
	return gojson.Marshal(handleJSON{Index: h.index, Generation: h.generation})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (h *Handle[T]) UnmarshalJSON(data []byte) error {
	var v handleJSON
	if err := gojson.Unmarshal(data, &v); err != nil {
		return err
	}
	h.index, h.generation = v.Index, v.Generation
	return nil
}

// EncodeToU128 packs the handle into a 128-bit integer: the index occupies
// bits 0..31 and the generation bits 32..63. The layout is fixed because
// handles stored this way cross foreign user-data fields.
func (h Handle[T]) EncodeToU128() Uint128 {
	return Uint128{Lo: h.EncodeToUint64()}
}

// DecodeFromU128 is the inverse of EncodeToU128. Bits above 63 are ignored.
func DecodeFromU128[T any](num Uint128) Handle[T] {
	return DecodeFromUint64[T](num.Lo)
}

// EncodeToUint64 packs the handle with the same layout as EncodeToU128.
func (h Handle[T]) EncodeToUint64() uint64 {
	return uint64(h.index) | uint64(h.generation)<<32
}

// DecodeFromUint64 is the inverse of EncodeToUint64.
func DecodeFromUint64[T any](num uint64) Handle[T] {
	return Handle[T]{index: uint32(num), generation: uint32(num >> 32)}
}

// Uint128 is an unsigned 128-bit integer split into two machine words.
type Uint128 struct {
	Hi uint64
	Lo uint64
}

// ErasedHandle is a Handle with its element type removed. It is freely
// convertible to and from any Handle[T] and is used where the target type is
// not known statically.
type ErasedHandle struct {
	index      uint32
	generation uint32
}

// NewErasedHandle encodes an index and a generation without validation.
func NewErasedHandle(index, generation uint32) ErasedHandle {
	return ErasedHandle{index: index, generation: generation}
}

// Index returns the slot position.
func (h ErasedHandle) Index() uint32 { return h.index }

// Generation returns the occupancy counter.
func (h ErasedHandle) Generation() uint32 { return h.generation }

// IsNone reports whether h is the sentinel handle.
func (h ErasedHandle) IsNone() bool {
	return h.index == 0 && h.generation == InvalidGeneration
}

// IsSome reports whether h differs from the sentinel handle.
func (h ErasedHandle) IsSome() bool { return !h.IsNone() }

// GoString renders h like Handle.GoString.
func (h ErasedHandle) GoString() string {
	return fmt.Sprintf("[Idx: %d; Gen: %d]", h.index, h.generation)
}

// String renders h as "index:generation".
func (h ErasedHandle) String() string {
	return strconv.FormatUint(uint64(h.index), 10) + ":" + strconv.FormatUint(uint64(h.generation), 10)
}

// MarshalJSON uses the same layout as Handle.
func (h ErasedHandle) MarshalJSON() ([]byte, error) {
	return gojson.Marshal(handleJSON{Index: h.index, Generation: h.generation})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (h *ErasedHandle) UnmarshalJSON(data []byte) error {
	var v handleJSON
	if err := gojson.Unmarshal(data, &v); err != nil {
		return err
	}
	h.index, h.generation = v.Index, v.Generation
	return nil
}

// Typed restores the static type of an erased handle.
func Typed[T any](h ErasedHandle) Handle[T] {
	return Handle[T]{index: h.index, generation: h.generation}
}
