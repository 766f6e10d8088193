package pool

import (
	"math"
	"math/bits"
	"unsafe"
)

const (
	// DefaultChunkSize is the number of records allocated together.
	DefaultChunkSize = 256
	minChunkSize     = 16
	maxChunkSize     = 1 << 20
)

// borrowState tracks guards handed out by a MultiBorrowContext. It is only
// touched while a context is open.
type borrowState struct {
	readers uint32
	writing bool
}

func (b borrowState) idle() bool {
	return b.readers == 0 && !b.writing
}

// record is one slot. A zero record has never been occupied.
type record[T any] struct {
	generation uint32
	borrow     borrowState
	payload    Payload[T]
}

func (r *record[T]) alive() bool { return r.payload.some }

// storage is the backing sequence of records. Records live in fixed-size
// chunks that are never reallocated, so a pointer into a payload remains
// valid for as long as the storage is not reset, even while it grows.
type storage[T any] struct {
	chunks [][]record[T]
	length uint32
	shift  uint
	mask   uint32
}

func newStorage[T any](chunkSize int) storage[T] {
	chunkSize = normalizeChunkSize(chunkSize)
	shift := uint(bits.TrailingZeros(uint(chunkSize)))
	return storage[T]{shift: shift, mask: uint32(chunkSize - 1)}
}

func normalizeChunkSize(n int) int {
	switch {
	case n <= 0:
		return DefaultChunkSize
	case n < minChunkSize:
		n = minChunkSize
	case n > maxChunkSize:
		n = maxChunkSize
	}
	return 1 << bits.Len(uint(n-1))
}

func (s *storage[T]) chunkSize() int { return int(s.mask) + 1 }

func (s *storage[T]) len() uint32 { return s.length }

// at returns the record at i without bounds checking against length.
func (s *storage[T]) at(i uint32) *record[T] {
	return &s.chunks[i>>s.shift][i&s.mask]
}

// get returns the record at i, or nil if i is out of bounds.
func (s *storage[T]) get(i uint32) *record[T] {
	if i >= s.length {
		return nil
	}
	return s.at(i)
}

// lazyInit gives a zero storage the default chunk size.
func (s *storage[T]) lazyInit() {
	if s.mask == 0 && len(s.chunks) == 0 {
		*s = newStorage[T](DefaultChunkSize)
	}
}

// grow makes room for n more records without changing length.
func (s *storage[T]) grow(n int) {
	s.lazyInit()
	need := (uint64(s.length) + uint64(n) + uint64(s.mask)) >> s.shift
	for uint64(len(s.chunks)) < need {
		s.chunks = append(s.chunks, make([]record[T], s.chunkSize()))
	}
}

// push appends r and returns its index. The caller checks that the index
// space is not exhausted.
func (s *storage[T]) push(r record[T]) uint32 {
	s.lazyInit()
	i := s.length
	if int(i>>s.shift) == len(s.chunks) {
		s.chunks = append(s.chunks, make([]record[T], s.chunkSize()))
	}
	*s.at(i) = r
	s.length++
	return i
}

func (s *storage[T]) full() bool {
	return s.length == math.MaxUint32
}

// detach hands the current chunks to the caller and leaves the storage empty.
func (s *storage[T]) detach() ([][]record[T], uint32) {
	chunks, length := s.chunks, s.length
	s.chunks, s.length = nil, 0
	return chunks, length
}

// indexOf resolves a pointer to a payload stored in s back to its record
// index. Addresses are only compared, never converted back into pointers.
func (s *storage[T]) indexOf(p *T) (uint32, bool) {
	if p == nil || s.length == 0 {
		return 0, false
	}
	var sample record[T]
	stride := unsafe.Sizeof(sample)
	offset := unsafe.Offsetof(sample.payload) + unsafe.Offsetof(sample.payload.value)
	addr := uintptr(unsafe.Pointer(p))

	for c, chunk := range s.chunks {
		base := uintptr(unsafe.Pointer(unsafe.SliceData(chunk)))
		end := base + stride*uintptr(len(chunk))
		if addr < base || addr >= end {
			continue
		}
		delta := addr - base
		if delta < offset || (delta-offset)%stride != 0 {
			return 0, false
		}
		i := uint32(c)<<s.shift | uint32((delta-offset)/stride)
		if i >= s.length {
			return 0, false
		}
		return i, true
	}
	return 0, false
}
