package pool

import (
	"fmt"
	"math"
	"sync"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name string
}

func TestHandleNone(t *testing.T) {
	var zero Handle[payload]
	assert.True(t, zero.IsNone())
	assert.False(t, zero.IsSome())
	assert.Equal(t, None[payload](), zero)

	assert.True(t, NewHandle[payload](0, 1).IsSome())
	assert.True(t, NewHandle[payload](1, 0).IsSome())
}

func TestHandleEqualityUsesBothFields(t *testing.T) {
	a := NewHandle[payload](3, 1)
	assert.Equal(t, a, NewHandle[payload](3, 1))
	assert.NotEqual(t, a, NewHandle[payload](3, 2))
	assert.NotEqual(t, a, NewHandle[payload](4, 1))

	seen := map[Handle[payload]]int{a: 1}
	seen[NewHandle[payload](3, 2)] = 2
	assert.Len(t, seen, 2)
}

func TestHandleOrderingByIndexOnly(t *testing.T) {
	a := NewHandle[payload](1, 9)
	b := NewHandle[payload](2, 1)
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 0, a.Compare(NewHandle[payload](1, 1)))
	assert.False(t, a.Less(NewHandle[payload](1, 10)))
}

func TestHandleFormatting(t *testing.T) {
	h := NewHandle[payload](7, 3)
	assert.Equal(t, "7:3", h.String())
	assert.Equal(t, "[Idx: 7; Gen: 3]", fmt.Sprintf("%#v", h))
	assert.Equal(t, "7:3", h.Erase().String())
}

func TestEncodeDecodeU128RoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		index      uint32
		generation uint32
	}{
		{"none", 0, 0},
		{"first", 0, 1},
		{"mixed", 12345, 678},
		{"max index", math.MaxUint32, 1},
		{"max generation", 1, math.MaxUint32},
		{"max both", math.MaxUint32, math.MaxUint32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandle[payload](tt.index, tt.generation)
			encoded := h.EncodeToU128()
			assert.Equal(t, uint64(0), encoded.Hi)
			assert.Equal(t, uint64(tt.index)|uint64(tt.generation)<<32, encoded.Lo)
			assert.Equal(t, h, DecodeFromU128[payload](encoded))
			assert.Equal(t, h, DecodeFromUint64[payload](h.EncodeToUint64()))
		})
	}
}

func TestDecodeFromU128IgnoresHighBits(t *testing.T) {
	h := DecodeFromU128[payload](Uint128{Hi: math.MaxUint64, Lo: 5 | 6<<32})
	assert.Equal(t, NewHandle[payload](5, 6), h)
}

func TestErasedHandleConversion(t *testing.T) {
	h := NewHandle[payload](4, 2)
	erased := h.Erase()
	assert.Equal(t, uint32(4), erased.Index())
	assert.Equal(t, uint32(2), erased.Generation())
	assert.Equal(t, h, Typed[payload](erased))

	other := Transmute[int](h)
	assert.Equal(t, uint32(4), other.Index())
	assert.Equal(t, uint32(2), other.Generation())
	assert.True(t, ErasedHandle{}.IsNone())
}

func TestHandleJSON(t *testing.T) {
	type holder struct {
		Parent Handle[payload] `json:"parent"`
		Any    ErasedHandle    `json:"any"`
	}
	in := holder{Parent: NewHandle[payload](2, 5), Any: NewErasedHandle(9, 1)}

	data, err := gojson.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"parent":{"Index":2,"Generation":5},"any":{"Index":9,"Generation":1}}`, string(data))

	var out holder
	require.NoError(t, gojson.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestAtomicHandle(t *testing.T) {
	a := NewAtomicHandle(3, 4)
	assert.Equal(t, uint32(3), a.Index())
	assert.Equal(t, uint32(4), a.Generation())
	assert.True(t, a.IsSome())

	a.Set(0, 0)
	assert.True(t, a.IsNone())

	h := NewHandle[payload](10, 11)
	b := AtomicFrom(h)
	assert.Equal(t, h, HandleFromAtomic[payload](b))

	assert.True(t, b.CompareAndSwap(h.Erase(), NewErasedHandle(12, 13)))
	assert.False(t, b.CompareAndSwap(h.Erase(), NewErasedHandle(14, 15)))
	assert.Equal(t, NewErasedHandle(12, 13), b.Load())
}

func TestAtomicHandleNeverTorn(t *testing.T) {
	a := NewAtomicHandle(1, 1)
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint32(1); i < 100000; i++ {
			a.Set(i, i)
		}
		close(stop)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				h := a.Load()
				if h.Index() != h.Generation() {
					t.Errorf("torn read %v", h)
					return
				}
			}
		}()
	}
	wg.Wait()
}
