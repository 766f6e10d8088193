package pool

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// LeakPolicy decides what happens when a pool is cleared or drained while
// tickets from TakeReserve are still unresolved.
type LeakPolicy int

const (
	// LeakPanic panics with an unresolved_ticket error.
	LeakPanic LeakPolicy = iota
	// LeakLog logs a warning and continues.
	LeakLog
	// LeakIgnore continues silently.
	LeakIgnore
)

func (p LeakPolicy) String() string {
	switch p {
	case LeakPanic:
		return "panic"
	case LeakLog:
		return "log"
	case LeakIgnore:
		return "ignore"
	default:
		return fmt.Sprintf("LeakPolicy(%d)", int(p))
	}
}

// ParseLeakPolicy parses "panic", "log" or "ignore".
func ParseLeakPolicy(s string) (LeakPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "panic":
		return LeakPanic, nil
	case "log":
		return LeakLog, nil
	case "ignore":
		return LeakIgnore, nil
	default:
		return LeakPanic, fmt.Errorf("unknown ticket leak policy %q", s)
	}
}

type options struct {
	name       string
	capacity   int
	chunkSize  int
	leakPolicy LeakPolicy
	logger     *zap.Logger
	observer   Observer
}

// Option configures a Pool.
type Option func(*options)

// WithName labels the pool in logs and observer events.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithCapacity preallocates room for n records. It does not create records,
// so Capacity still reports zero until values are spawned.
func WithCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

// WithChunkSize sets how many records are allocated together. The value is
// rounded up to a power of two and clamped to [16, 1<<20].
func WithChunkSize(n int) Option {
	return func(o *options) { o.chunkSize = n }
}

// WithLeakPolicy sets the unresolved ticket policy. The default is LeakPanic.
func WithLeakPolicy(p LeakPolicy) Option {
	return func(o *options) { o.leakPolicy = p }
}

// WithLogger sets the logger used for ticket leak reports.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver attaches an Observer that receives every lifecycle event.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}
