// Package observability provides tracing and operation logging for genpool
// commands and workloads.
package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ajitpratap0/genpool"

var (
	// Global tracer instance
	tracer trace.Tracer = otel.Tracer(instrumentationName)

	tracerMu sync.RWMutex
)

// meter returns the meter from the globally registered otel provider. It is
// a no-op until a meter provider is installed.
func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// currentTracer returns the package tracer. Before InitTracing it delegates
// to whatever provider otel has registered, which is a no-op by default.
func currentTracer() trace.Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	return tracer
}

func setTracer(t trace.Tracer) {
	tracerMu.Lock()
	tracer = t
	tracerMu.Unlock()
}

// Span wraps a trace span and batches attributes until End.
type Span struct {
	span       trace.Span
	startTime  time.Time
	attributes []attribute.KeyValue
}

// NewSpan starts a span named operationName.
func NewSpan(ctx context.Context, operationName string) (context.Context, *Span) {
	ctx, span := currentTracer().Start(ctx, operationName)

	return ctx, &Span{
		span:      span,
		startTime: time.Now(),
	}
}

// SetAttribute adds an attribute to the span (batched for performance)
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case uint32:
		attr = attribute.Int64(key, int64(v))
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// RecordError marks the span failed. A nil err marks it ok.
func (s *Span) RecordError(err error) {
	if err == nil {
		s.span.SetStatus(codes.Ok, "")
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// Duration returns the time since the span started.
func (s *Span) Duration() time.Duration {
	return time.Since(s.startTime)
}

// End flushes batched attributes and ends the span.
func (s *Span) End() {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	s.span.End()
}

// PoolTracer names spans after the pool they operate on.
type PoolTracer struct {
	poolName string
	ops      metric.Int64Counter
}

// NewPoolTracer creates a tracer for the named pool.
func NewPoolTracer(poolName string) *PoolTracer {
	ops, err := meter().Int64Counter("genpool.pool.operations",
		metric.WithDescription("Pool operations completed inside traced batches"),
		metric.WithUnit("{operation}"))
	if err != nil {
		otel.Handle(err)
	}
	return &PoolTracer{poolName: poolName, ops: ops}
}

// StartSpan starts a span named "pool.<name>.<operation>".
func (pt *PoolTracer) StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	ctx, span := NewSpan(ctx, fmt.Sprintf("pool.%s.%s", pt.poolName, operation))

	span.SetAttribute("pool.name", pt.poolName)
	span.SetAttribute("pool.operation", operation)

	return ctx, span
}

// Trace runs fn inside a span and records its error.
func (pt *PoolTracer) Trace(ctx context.Context, operation string, fn func(context.Context) error) error {
	ctx, span := pt.StartSpan(ctx, operation)
	defer span.End()

	err := fn(ctx)
	span.RecordError(err)
	return err
}

// TraceBatch runs fn inside a span and annotates it with the batch size and
// resulting throughput.
func (pt *PoolTracer) TraceBatch(ctx context.Context, batchSize int, operation string, fn func(context.Context) error) error {
	ctx, span := pt.StartSpan(ctx, operation)
	defer span.End()

	span.SetAttribute("batch.size", batchSize)

	err := fn(ctx)
	if elapsed := span.Duration().Seconds(); elapsed > 0 {
		span.SetAttribute("batch.throughput", float64(batchSize)/elapsed)
	}
	if pt.ops != nil {
		pt.ops.Add(ctx, int64(batchSize), metric.WithAttributes(
			attribute.String("pool.name", pt.poolName),
			attribute.Bool("error", err != nil)))
	}
	span.RecordError(err)
	return err
}
