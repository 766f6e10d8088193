package config

import (
	"runtime"
	"time"

	"github.com/ajitpratap0/genpool/pkg/errors"
	"github.com/ajitpratap0/genpool/pkg/logger"
	"github.com/ajitpratap0/genpool/pkg/pool"
)

// Config is the root configuration structure.
type Config struct {
	// Name identifies the process in logs and traces
	Name string `yaml:"name" json:"name"`
	// Version indicates the configuration version
	Version string `yaml:"version" json:"version"`

	// Pool settings apply to every pool created from this configuration
	Pool PoolConfig `yaml:"pool" json:"pool"`

	// Logging configures the global zap logger
	Logging logger.Config `yaml:"logging" json:"logging"`

	// Metrics configures the Prometheus pool collector
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Tracing configures OpenTelemetry
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`

	// Snapshot configures how pool layouts are persisted
	Snapshot SnapshotConfig `yaml:"snapshot" json:"snapshot"`

	// Workload configures the churn benchmark
	Workload WorkloadConfig `yaml:"workload" json:"workload"`
}

// PoolConfig maps onto pool.Option values.
type PoolConfig struct {
	// Name labels pools in logs and metrics
	Name string `yaml:"name" json:"name"`
	// InitialCapacity preallocates record storage
	InitialCapacity int `yaml:"initial_capacity" json:"initial_capacity"`
	// ChunkSize is the number of records allocated together (power of two)
	ChunkSize int `yaml:"chunk_size" json:"chunk_size"`
	// TicketLeakPolicy is one of panic, log or ignore
	TicketLeakPolicy string `yaml:"ticket_leak_policy" json:"ticket_leak_policy"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Enabled attaches a collector to every pool
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Namespace prefixes every metric name
	Namespace string `yaml:"namespace" json:"namespace"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	// Enabled activates span export
	Enabled bool `yaml:"enabled" json:"enabled"`
	// ServiceName is reported as the resource service name
	ServiceName string `yaml:"service_name" json:"service_name"`
	// SampleRate controls trace sampling (0.0-1.0)
	SampleRate float64 `yaml:"sample_rate" json:"sample_rate"`
}

// SnapshotConfig contains snapshot settings.
type SnapshotConfig struct {
	// Compression selects the algorithm (none, gzip, snappy, s2, zstd, lz4)
	Compression string `yaml:"compression" json:"compression"`
	// Level selects the compression level (1 fastest, 5 default, 7 better, 9 best)
	Level int `yaml:"level" json:"level"`
	// Timeout bounds a single save or load
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// WorkloadConfig contains the churn benchmark settings.
type WorkloadConfig struct {
	// Pools is the number of independent pools, one goroutine each
	Pools int `yaml:"pools" json:"pools"`
	// OpsPerPool is the number of operations applied to each pool
	OpsPerPool int `yaml:"ops_per_pool" json:"ops_per_pool"`
	// Seed makes runs reproducible
	Seed int64 `yaml:"seed" json:"seed"`
	// FreeRatio is the share of operations that free a live value
	FreeRatio float64 `yaml:"free_ratio" json:"free_ratio"`
	// ReserveRatio is the share of operations that take and later put back a value
	ReserveRatio float64 `yaml:"reserve_ratio" json:"reserve_ratio"`
	// RatePerSec throttles operations per pool (0 = unlimited)
	RatePerSec int `yaml:"rate_per_sec" json:"rate_per_sec"`
	// Timeout bounds the whole run
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Name:    "genpool",
		Version: "1.0.0",
		Pool: PoolConfig{
			Name:             "default",
			InitialCapacity:  0,
			ChunkSize:        pool.DefaultChunkSize,
			TicketLeakPolicy: pool.LeakPanic.String(),
		},
		Logging: logger.Config{
			Level:    "info",
			Encoding: "json",
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Namespace: "genpool",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "genpool",
			SampleRate:  0.1,
		},
		Snapshot: SnapshotConfig{
			Compression: "zstd",
			Level:       5,
			Timeout:     30 * time.Second,
		},
		Workload: WorkloadConfig{
			Pools:        runtime.NumCPU(),
			OpsPerPool:   100000,
			Seed:         1,
			FreeRatio:    0.3,
			ReserveRatio: 0.05,
			RatePerSec:   0,
			Timeout:      5 * time.Minute,
		},
	}
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Name == "" {
		return configError("name is required")
	}
	if err := c.Pool.Validate(); err != nil {
		return err
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return configError("tracing.sample_rate must be within [0, 1]")
	}
	if c.Snapshot.Level < 0 || c.Snapshot.Level > 9 {
		return configError("snapshot.level must be within [0, 9]")
	}
	if c.Snapshot.Timeout < 0 {
		return configError("snapshot.timeout cannot be negative")
	}
	return c.Workload.Validate()
}

// Validate checks the pool section.
func (p *PoolConfig) Validate() error {
	if p.InitialCapacity < 0 {
		return configError("pool.initial_capacity cannot be negative")
	}
	if p.ChunkSize < 0 {
		return configError("pool.chunk_size cannot be negative")
	}
	if p.ChunkSize > 0 && p.ChunkSize&(p.ChunkSize-1) != 0 {
		return configError("pool.chunk_size must be a power of two").WithDetail("chunk_size", p.ChunkSize)
	}
	if _, err := pool.ParseLeakPolicy(p.TicketLeakPolicy); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid pool.ticket_leak_policy")
	}
	return nil
}

// Options converts the section into pool options.
func (p *PoolConfig) Options() ([]pool.Option, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	policy, _ := pool.ParseLeakPolicy(p.TicketLeakPolicy)
	return []pool.Option{
		pool.WithName(p.Name),
		pool.WithCapacity(p.InitialCapacity),
		pool.WithChunkSize(p.ChunkSize),
		pool.WithLeakPolicy(policy),
	}, nil
}

// MustOptions is Options for configurations that were already validated.
func (p *PoolConfig) MustOptions() []pool.Option {
	opts, err := p.Options()
	if err != nil {
		panic(err)
	}
	return opts
}

// Validate checks the workload section.
func (w *WorkloadConfig) Validate() error {
	if w.Pools <= 0 {
		return configError("workload.pools must be positive")
	}
	if w.OpsPerPool < 0 {
		return configError("workload.ops_per_pool cannot be negative")
	}
	if w.FreeRatio < 0 || w.ReserveRatio < 0 || w.FreeRatio+w.ReserveRatio > 1 {
		return configError("workload.free_ratio and workload.reserve_ratio must be non-negative and sum to at most 1")
	}
	if w.RatePerSec < 0 {
		return configError("workload.rate_per_sec cannot be negative")
	}
	return nil
}

// IsRateLimited returns true if operations are throttled
func (w *WorkloadConfig) IsRateLimited() bool {
	return w.RatePerSec > 0
}

func configError(msg string) *errors.Error {
	return errors.New(errors.ErrorTypeConfig, msg)
}
