// Package genpool provides generational-handle object pools: dense arenas
// addressed by small copyable handles whose generation counter detects use
// after free.
//
// A Handle[T] is an index into a pool plus the generation its record had when
// the value was spawned. Freeing a value bumps the record's generation, so
// every handle taken before the free stops resolving instead of silently
// reaching the slot's next occupant. Freed slots go onto a free-list and are
// reused by later spawns.
//
// # Architecture
//
// The pool core lives in pkg/pool and has no dependencies beyond the error
// package. Everything else is built around it:
//
//  1. Borrowing: plain borrows, checked Try variants, BorrowThreeMut for
//     disjoint mutable access, and MultiBorrowContext for graph traversals
//     that hold many references at once and defer frees until End.
//
//  2. Tickets: TakeReserve moves a value out while pinning its slot so the
//     slot cannot be reused until the ticket is put back or forgotten.
//
//  3. Handles: typed handles, ErasedHandle for heterogeneous storage and
//     AtomicHandle for sharing a handle between goroutines.
//
//  4. Persistence: Layout[T] captures every record, generation and the
//     free-list; pkg/snapshot writes it compressed and checksummed.
//
// # Quick Start
//
//	import "github.com/ajitpratap0/genpool/pkg/pool"
//
//	nodes := pool.New[Node](pool.WithName("nodes"))
//	h := nodes.Spawn(Node{Name: "root"})
//
//	nodes.BorrowMut(h).Name = "renamed"
//	nodes.Free(h)
//
//	if _, ok := nodes.TryBorrow(h); !ok {
//	    // h is stale
//	}
//
// # Key Packages
//
//	pkg/pool          - Handles, pools, tickets and multi-borrow contexts
//	pkg/snapshot      - Compressed, checksummed pool layout files
//	pkg/compression   - Compression algorithms used by snapshots
//	pkg/config        - YAML and environment configuration
//	pkg/errors        - Structured error handling
//	pkg/logger        - Structured logging
//	pkg/metrics       - Prometheus pool metrics
//	pkg/observability - OpenTelemetry tracing and operation logging
//	internal/scene    - A handle-linked scene graph built on the pool
//	internal/workload - Concurrent churn benchmark
//
// # Command Line
//
//	genpool bench --pools 8 --ops 1000000 --metrics
//	genpool scene --nodes 10000 --out scene.gps
//	genpool snapshot inspect scene.gps
//
// Run tests and benchmarks:
//
//	go test ./...
//	go test -bench=. ./pkg/pool/
package genpool
