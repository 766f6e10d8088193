package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// WithTrace returns l annotated with the trace and span IDs carried by ctx.
func WithTrace(ctx context.Context, l *zap.Logger) *zap.Logger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return l
	}
	return l.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

// OperationLogger provides operation-specific logging
type OperationLogger struct {
	logger    *zap.Logger
	operation string
	startTime time.Time
}

// NewOperationLogger scopes l to a named operation and starts its clock.
func NewOperationLogger(l *zap.Logger, operation string) *OperationLogger {
	return &OperationLogger{
		logger:    l.With(zap.String("operation", operation)),
		operation: operation,
		startTime: time.Now(),
	}
}

// Logger returns the underlying scoped logger
func (ol *OperationLogger) Logger() *zap.Logger {
	return ol.logger
}

// LogStart logs the start of an operation
func (ol *OperationLogger) LogStart(msg string, fields ...zap.Field) {
	ol.logger.Info(msg, append(fields, zap.String("phase", "start"))...)
}

// LogProgress logs operation progress
func (ol *OperationLogger) LogProgress(msg string, progress float64, fields ...zap.Field) {
	ol.logger.Info(msg, append(fields,
		zap.String("phase", "progress"),
		zap.Float64("progress_percent", progress*100),
		zap.Duration("elapsed", time.Since(ol.startTime)),
	)...)
}

// LogComplete logs the completion of an operation
func (ol *OperationLogger) LogComplete(msg string, fields ...zap.Field) {
	ol.logger.Info(msg, append(fields,
		zap.String("phase", "complete"),
		zap.Duration("total_duration", time.Since(ol.startTime)),
	)...)
}

// LogError logs an operation error
func (ol *OperationLogger) LogError(msg string, err error, fields ...zap.Field) {
	ol.logger.Error(msg, append(fields,
		zap.String("phase", "error"),
		zap.Duration("duration_before_error", time.Since(ol.startTime)),
		zap.Error(err),
	)...)
}

// OpsProgress counts pool operations and logs progress at an interval.
// Safe for concurrent use.
type OpsProgress struct {
	mu          sync.Mutex
	logger      *OperationLogger
	total       int64
	expected    int64
	errorsTotal int64
	startTime   time.Time
	lastLogTime time.Time
	logInterval time.Duration
}

// NewOpsProgress creates a progress counter expecting the given number of
// operations (0 if unknown).
func NewOpsProgress(logger *OperationLogger, expected int64) *OpsProgress {
	now := time.Now()
	return &OpsProgress{
		logger:      logger,
		expected:    expected,
		startTime:   now,
		lastLogTime: now,
		logInterval: 10 * time.Second,
	}
}

// SetLogInterval sets the interval for progress logging
func (p *OpsProgress) SetLogInterval(interval time.Duration) {
	p.mu.Lock()
	p.logInterval = interval
	p.mu.Unlock()
}

// Add records n completed operations and logs if the interval has passed.
func (p *OpsProgress) Add(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total += n
	if time.Since(p.lastLogTime) >= p.logInterval {
		p.logProgressLocked()
		p.lastLogTime = time.Now()
	}
}

// RecordError records a failed operation
func (p *OpsProgress) RecordError() {
	p.mu.Lock()
	p.errorsTotal++
	p.mu.Unlock()
}

// Total returns the operations recorded so far
func (p *OpsProgress) Total() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

func (p *OpsProgress) logProgressLocked() {
	progress := 0.0
	if p.expected > 0 {
		progress = float64(p.total) / float64(p.expected)
	}
	p.logger.LogProgress("workload progress", progress,
		zap.Int64("ops", p.total),
		zap.Int64("errors", p.errorsTotal),
		zap.Float64("ops_per_second", rate(p.total, time.Since(p.startTime))),
	)
}

// LogFinal logs final statistics
func (p *OpsProgress) LogFinal() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger.LogComplete("workload completed",
		zap.Int64("total_ops", p.total),
		zap.Int64("total_errors", p.errorsTotal),
		zap.Float64("avg_ops_per_second", rate(p.total, time.Since(p.startTime))),
	)
}

func rate(n int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}
