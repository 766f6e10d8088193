// Package testutil provides testing utilities for genpool packages.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// ObservedLogger returns a logger whose entries at or above level can be
// inspected by the test.
func ObservedLogger(level zapcore.Level) (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core), logs
}

// TestContext creates a test context with a 30-second timeout that is
// cancelled when the test completes.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// AssertEventually asserts that a condition becomes true within the specified timeout.
// It checks the condition every 10ms until it succeeds or the timeout expires.
func AssertEventually(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()
	require.Eventually(t, condition, timeout, 10*time.Millisecond, msg)
}

// Counter is the counting surface shared by every pool instantiation.
type Counter interface {
	AliveCount() uint32
	TotalCount() uint32
	Capacity() uint32
}

// AssertCounts checks alive and total counts and the ordering
// alive <= total <= capacity.
func AssertCounts(t *testing.T, p Counter, alive, total uint32) {
	t.Helper()
	assert.Equal(t, alive, p.AliveCount(), "alive count")
	assert.Equal(t, total, p.TotalCount(), "total count")
	assert.LessOrEqual(t, p.AliveCount(), p.TotalCount())
	assert.LessOrEqual(t, p.TotalCount(), p.Capacity())
}
