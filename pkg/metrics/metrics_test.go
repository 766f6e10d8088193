package metrics

import (
	"bytes"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/genpool/pkg/pool"
)

func TestPoolCollectorObservesEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPoolCollector(reg, "test")

	p := pool.New[int](pool.WithName("ints"), pool.WithObserver(c))
	a := p.Spawn(1)
	p.Spawn(2)
	p.Free(a)
	ticket, _ := p.TakeReserve(pool.NewHandle[int](1, 1))

	assert.Equal(t, 2.0, testutil.ToFloat64(c.events.WithLabelValues("ints", "spawn")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.events.WithLabelValues("ints", "free")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.events.WithLabelValues("ints", "reserve")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.alive.WithLabelValues("ints")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.capacity.WithLabelValues("ints")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.free.WithLabelValues("ints")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.reserved.WithLabelValues("ints")))

	p.PutBack(ticket, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.alive.WithLabelValues("ints")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.reserved.WithLabelValues("ints")))
}

func TestPoolCollectorSeparatesPools(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPoolCollector(reg, "test")

	a := pool.New[int](pool.WithName("a"), pool.WithObserver(c))
	b := pool.New[int](pool.WithName("b"), pool.WithObserver(c))
	a.Spawn(1)
	b.Spawn(1)
	b.Spawn(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.alive.WithLabelValues("a")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.alive.WithLabelValues("b")))
}

func TestThroughputTracker(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPoolCollector(reg, "test")
	tracker := c.NewThroughputTracker("ints")

	tracker.Increment(500)
	time.Sleep(10 * time.Millisecond)
	rate := tracker.GetAndReset()
	assert.Greater(t, rate, 0.0)
	assert.Equal(t, rate, testutil.ToFloat64(c.throughput.WithLabelValues("ints")))
}

func TestWriteText(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPoolCollector(reg, "test")
	c.Observe("ints", pool.EventSpawn, pool.Stats{Capacity: 1, Alive: 1, Total: 1})
	c.ObserveRun("ints", 20*time.Millisecond)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, reg))
	out := buf.String()
	assert.Contains(t, out, `test_pool_events_total{event="spawn",pool="ints"} 1`)
	assert.Contains(t, out, `test_pool_alive_records{pool="ints"} 1`)
	assert.Contains(t, out, "test_workload_run_duration_seconds_count")
}

func TestTimer(t *testing.T) {
	timer := NewTimer("load")
	assert.Equal(t, "load", timer.Name())
	assert.GreaterOrEqual(t, timer.Stop(), time.Duration(0))
}
