package pool

import (
	"strconv"
	"testing"
)

// BenchmarkSpawnFree measures steady-state churn through the free-list
func BenchmarkSpawnFree(b *testing.B) {
	for _, chunk := range []int{16, DefaultChunkSize, 4096} {
		b.Run("chunk="+strconv.Itoa(chunk), func(b *testing.B) {
			p := New[payload](WithChunkSize(chunk))
			handles := make([]Handle[payload], 1024)
			for i := range handles {
				handles[i] = p.Spawn(payload{})
			}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				j := i % len(handles)
				p.Free(handles[j])
				handles[j] = p.Spawn(payload{Name: "x"})
			}
		})
	}
}

// BenchmarkBorrow compares the panicking and optional lookups
func BenchmarkBorrow(b *testing.B) {
	p := New[int]()
	handles := make([]Handle[int], 4096)
	for i := range handles {
		handles[i] = p.Spawn(i)
	}

	b.Run("Borrow", func(b *testing.B) {
		b.ReportAllocs()
		sum := 0
		for i := 0; i < b.N; i++ {
			sum += p.Borrow(handles[i%len(handles)])
		}
		_ = sum
	})
	b.Run("TryBorrow", func(b *testing.B) {
		b.ReportAllocs()
		sum := 0
		for i := 0; i < b.N; i++ {
			v, _ := p.TryBorrow(handles[i%len(handles)])
			sum += v
		}
		_ = sum
	})
	b.Run("MultiBorrow", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			ctx := p.BeginMultiBorrow()
			r := ctx.Get(handles[i%len(handles)])
			r.Release()
			ctx.End()
		}
	})
}

// BenchmarkIter walks a half-empty pool
func BenchmarkIter(b *testing.B) {
	p := New[int]()
	for i := 0; i < 1<<14; i++ {
		h := p.Spawn(i)
		if i%2 == 0 {
			p.Free(h)
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sum := 0
		for v := range p.Iter() {
			sum += v
		}
		_ = sum
	}
}
