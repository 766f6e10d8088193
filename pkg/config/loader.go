package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/genpool/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g. GENPOOL_POOL_CHUNK_SIZE.
const EnvPrefix = "GENPOOL"

// Load loads a configuration from a YAML file
func Load(filePath string, config interface{}) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: File path is controlled by caller
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to read config file").
			WithDetail("path", filePath)
	}

	// Substitute environment variables
	content := substituteEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(content), config); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse YAML").
			WithDetail("path", filePath)
	}

	return nil
}

// Save saves a configuration to a YAML file
func Save(filePath string, config interface{}) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to marshal YAML")
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil { //nolint:gosec
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write config file").
			WithDetail("path", filePath)
	}

	return nil
}

// LoadConfig builds a Config from defaults, the optional YAML file at
// filePath and GENPOOL_* environment overrides, in that order, and validates
// the result.
func LoadConfig(filePath string) (*Config, error) {
	cfg := Default()
	if filePath != "" {
		if err := Load(filePath, cfg); err != nil {
			return nil, err
		}
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envBinding applies one viper key to the config when its variable is set.
type envBinding struct {
	key   string
	apply func(v *viper.Viper, c *Config)
}

var envBindings = []envBinding{
	{"name", func(v *viper.Viper, c *Config) { c.Name = v.GetString("name") }},
	{"pool.name", func(v *viper.Viper, c *Config) { c.Pool.Name = v.GetString("pool.name") }},
	{"pool.initial_capacity", func(v *viper.Viper, c *Config) { c.Pool.InitialCapacity = v.GetInt("pool.initial_capacity") }},
	{"pool.chunk_size", func(v *viper.Viper, c *Config) { c.Pool.ChunkSize = v.GetInt("pool.chunk_size") }},
	{"pool.ticket_leak_policy", func(v *viper.Viper, c *Config) { c.Pool.TicketLeakPolicy = v.GetString("pool.ticket_leak_policy") }},
	{"logging.level", func(v *viper.Viper, c *Config) { c.Logging.Level = v.GetString("logging.level") }},
	{"logging.encoding", func(v *viper.Viper, c *Config) { c.Logging.Encoding = v.GetString("logging.encoding") }},
	{"metrics.enabled", func(v *viper.Viper, c *Config) { c.Metrics.Enabled = v.GetBool("metrics.enabled") }},
	{"tracing.enabled", func(v *viper.Viper, c *Config) { c.Tracing.Enabled = v.GetBool("tracing.enabled") }},
	{"tracing.sample_rate", func(v *viper.Viper, c *Config) { c.Tracing.SampleRate = v.GetFloat64("tracing.sample_rate") }},
	{"snapshot.compression", func(v *viper.Viper, c *Config) { c.Snapshot.Compression = v.GetString("snapshot.compression") }},
	{"snapshot.level", func(v *viper.Viper, c *Config) { c.Snapshot.Level = v.GetInt("snapshot.level") }},
	{"workload.pools", func(v *viper.Viper, c *Config) { c.Workload.Pools = v.GetInt("workload.pools") }},
	{"workload.ops_per_pool", func(v *viper.Viper, c *Config) { c.Workload.OpsPerPool = v.GetInt("workload.ops_per_pool") }},
	{"workload.seed", func(v *viper.Viper, c *Config) { c.Workload.Seed = v.GetInt64("workload.seed") }},
	{"workload.rate_per_sec", func(v *viper.Viper, c *Config) { c.Workload.RatePerSec = v.GetInt("workload.rate_per_sec") }},
	{"workload.timeout", func(v *viper.Viper, c *Config) { c.Workload.Timeout = v.GetDuration("workload.timeout") }},
}

// ApplyEnv overrides fields of cfg from GENPOOL_* environment variables.
// Nested keys use underscores: pool.chunk_size is GENPOOL_POOL_CHUNK_SIZE.
func ApplyEnv(cfg *Config) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, b := range envBindings {
		if err := v.BindEnv(b.key); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "failed to bind environment variable").
				WithDetail("key", b.key)
		}
		if v.IsSet(b.key) {
			b.apply(v, cfg)
		}
	}
	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
