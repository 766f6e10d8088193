// Package config provides configuration management for genpool.
//
// A single Config structure is shared by the CLI, the workload runner and the
// scene demo, so pool tuning, logging, metrics, tracing and snapshot settings
// are read the same way everywhere.
//
// # Sources
//
// LoadConfig layers three sources, later ones winning:
//
//  1. Default() values
//  2. a YAML file, with ${VAR_NAME} substituted from the environment
//  3. GENPOOL_* environment variables, resolved through viper
//
// Nested keys map onto variables by replacing dots with underscores:
// pool.chunk_size is GENPOOL_POOL_CHUNK_SIZE and workload.pools is
// GENPOOL_WORKLOAD_POOLS.
//
// # Usage
//
//	cfg, err := config.LoadConfig("genpool.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	opts, err := cfg.Pool.Options()
//	if err != nil {
//		log.Fatal(err)
//	}
//	nodes := pool.New[Node](opts...)
//
// # Example file
//
//	name: scene-server
//	pool:
//	  name: nodes
//	  chunk_size: 1024
//	  ticket_leak_policy: log
//	logging:
//	  level: ${LOG_LEVEL}
//	  encoding: console
//	snapshot:
//	  compression: zstd
//	  level: 7
//
// Validation errors are *errors.Error values of type config, so callers can
// tell a bad file from an I/O failure with errors.IsType.
package config
