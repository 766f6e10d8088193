package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/genpool/pkg/errors"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty name", func(c *Config) { c.Name = "" }},
		{"negative capacity", func(c *Config) { c.Pool.InitialCapacity = -1 }},
		{"chunk size not a power of two", func(c *Config) { c.Pool.ChunkSize = 100 }},
		{"unknown leak policy", func(c *Config) { c.Pool.TicketLeakPolicy = "explode" }},
		{"sample rate above one", func(c *Config) { c.Tracing.SampleRate = 1.5 }},
		{"snapshot level", func(c *Config) { c.Snapshot.Level = 12 }},
		{"no pools", func(c *Config) { c.Workload.Pools = 0 }},
		{"ratios above one", func(c *Config) { c.Workload.FreeRatio, c.Workload.ReserveRatio = 0.8, 0.3 }},
		{"negative rate", func(c *Config) { c.Workload.RatePerSec = -5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig), "%v", err)
		})
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Setenv("GENPOOL_TEST_LEVEL", "debug")
	path := filepath.Join(t.TempDir(), "genpool.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: scene-server
pool:
  name: nodes
  chunk_size: 1024
  ticket_leak_policy: log
logging:
  level: ${GENPOOL_TEST_LEVEL}
snapshot:
  compression: lz4
  timeout: 10s
workload:
  pools: 3
`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "scene-server", cfg.Name)
	assert.Equal(t, "nodes", cfg.Pool.Name)
	assert.Equal(t, 1024, cfg.Pool.ChunkSize)
	assert.Equal(t, "log", cfg.Pool.TicketLeakPolicy)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "lz4", cfg.Snapshot.Compression)
	assert.Equal(t, 10*time.Second, cfg.Snapshot.Timeout)
	assert.Equal(t, 3, cfg.Workload.Pools)

	// Fields absent from the file keep their defaults.
	assert.Equal(t, 100000, cfg.Workload.OpsPerPool)
	assert.Equal(t, "json", cfg.Logging.Encoding)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("GENPOOL_POOL_CHUNK_SIZE", "64")
	t.Setenv("GENPOOL_POOL_TICKET_LEAK_POLICY", "ignore")
	t.Setenv("GENPOOL_WORKLOAD_POOLS", "7")
	t.Setenv("GENPOOL_WORKLOAD_SEED", "99")
	t.Setenv("GENPOOL_METRICS_ENABLED", "true")
	t.Setenv("GENPOOL_TRACING_SAMPLE_RATE", "0.5")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Pool.ChunkSize)
	assert.Equal(t, "ignore", cfg.Pool.TicketLeakPolicy)
	assert.Equal(t, 7, cfg.Workload.Pools)
	assert.Equal(t, int64(99), cfg.Workload.Seed)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 0.5, cfg.Tracing.SampleRate)
}

func TestLoadConfigInvalidEnv(t *testing.T) {
	t.Setenv("GENPOOL_POOL_CHUNK_SIZE", "100")
	_, err := LoadConfig("")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Pool.Name = "saved"
	cfg.Workload.Pools = 2
	cfg.Logging.OutputPaths = []string{"stderr"}
	require.NoError(t, Save(path, cfg))

	loaded := &Config{}
	require.NoError(t, Load(path, loaded))
	assert.Equal(t, cfg, loaded)
}

func TestPoolOptions(t *testing.T) {
	cfg := Default()
	cfg.Pool.ChunkSize = 3
	_, err := cfg.Pool.Options()
	assert.Error(t, err)
	assert.Panics(t, func() { cfg.Pool.MustOptions() })

	cfg.Pool.ChunkSize = 32
	opts, err := cfg.Pool.Options()
	require.NoError(t, err)
	assert.Len(t, opts, 4)
}
