// Package metrics exports pool activity as Prometheus metrics.
//
// # Overview
//
// The metrics package provides:
//   - PoolCollector, a pool.Observer that counts lifecycle events and tracks
//     slot gauges per pool
//   - Throughput tracking for the churn workload
//   - A text dump of a registry for the CLI
//
// # Basic Usage
//
//	reg := prometheus.NewRegistry()
//	collector := metrics.NewPoolCollector(reg, "genpool")
//	nodes := pool.New[Node](pool.WithName("nodes"), pool.WithObserver(collector))
//
// One collector can observe any number of pools; each pool is a label value.
//
// # Metric Types
//
// Counter: events per pool and kind (spawn, free, reserve, ...)
// Gauge: alive, capacity, free and reserved slots at the last event
// Histogram: workload run durations
package metrics

import (
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"

	"github.com/ajitpratap0/genpool/pkg/pool"
)

// PoolCollector records pool events. It is safe for concurrent use, so
// pools driven from different goroutines may share one collector.
type PoolCollector struct {
	events      *prometheus.CounterVec   // Lifecycle events by pool and kind
	alive       *prometheus.GaugeVec     // Records holding a payload
	capacity    *prometheus.GaugeVec     // Records in any state
	free        *prometheus.GaugeVec     // Free-list length
	reserved    *prometheus.GaugeVec     // Unresolved tickets
	throughput  *prometheus.GaugeVec     // Operations per second
	runDuration *prometheus.HistogramVec // Workload run durations
}

var _ pool.Observer = (*PoolCollector)(nil)

// NewPoolCollector registers the pool metrics on reg under namespace.
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	c := metrics.NewPoolCollector(reg, "genpool")
//	p := pool.New[int](pool.WithName("ints"), pool.WithObserver(c))
func NewPoolCollector(reg prometheus.Registerer, namespace string) *PoolCollector {
	factory := promauto.With(reg)
	return &PoolCollector{
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pool_events_total",
				Help:      "Total number of pool lifecycle events",
			},
			[]string{"pool", "event"},
		),
		alive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pool_alive_records",
				Help:      "Number of records holding a payload",
			},
			[]string{"pool"},
		),
		capacity: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pool_capacity_records",
				Help:      "Number of records in any state",
			},
			[]string{"pool"},
		),
		free: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pool_free_records",
				Help:      "Number of free-listed records",
			},
			[]string{"pool"},
		),
		reserved: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pool_reserved_records",
				Help:      "Number of records pinned by unresolved tickets",
			},
			[]string{"pool"},
		),
		throughput: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pool_throughput_ops_per_second",
				Help:      "Current throughput in pool operations per second",
			},
			[]string{"pool"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "workload_run_duration_seconds",
				Help:      "Duration of a workload run against one pool",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
			},
			[]string{"pool"},
		),
	}
}

// Observe implements pool.Observer.
func (c *PoolCollector) Observe(name string, ev pool.Event, stats pool.Stats) {
	c.events.WithLabelValues(name, string(ev)).Inc()
	c.alive.WithLabelValues(name).Set(float64(stats.Alive))
	c.capacity.WithLabelValues(name).Set(float64(stats.Capacity))
	c.free.WithLabelValues(name).Set(float64(stats.Free))
	c.reserved.WithLabelValues(name).Set(float64(stats.Reserved))
}

// EventCounter returns the counter for one pool and event kind.
func (c *PoolCollector) EventCounter(name string, ev pool.Event) prometheus.Counter {
	return c.events.WithLabelValues(name, string(ev))
}

// ObserveRun records how long a workload run against a pool took.
func (c *PoolCollector) ObserveRun(name string, d time.Duration) {
	c.runDuration.WithLabelValues(name).Observe(d.Seconds())
}

// NewThroughputTracker creates a tracker that reports into this collector's
// throughput gauge for the named pool.
func (c *PoolCollector) NewThroughputTracker(name string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		gauge:     c.throughput.WithLabelValues(name),
	}
}

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the label given to NewTimer.
func (t *Timer) Name() string { return t.name }

// Stop returns the elapsed duration since creation. It can be called more
// than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks operations per second over time windows.
// Thread-safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64     // Operations since last reset
	lastReset time.Time // Time of last reset
	gauge     prometheus.Gauge
}

// Increment adds n to the operation count. Safe for concurrent use.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset calculates the current throughput (ops/second), updates the
// gauge, resets the counter, and returns the calculated throughput.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	// Reset for next period
	t.count = 0
	t.lastReset = time.Now()

	if t.gauge != nil {
		t.gauge.Set(throughput)
	}

	return throughput
}

// WriteText writes every metric family gathered from g in the Prometheus
// text exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
