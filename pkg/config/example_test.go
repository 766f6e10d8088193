package config_test

import (
	"fmt"
	"log"

	"github.com/ajitpratap0/genpool/pkg/config"
	"github.com/ajitpratap0/genpool/pkg/pool"
)

// ExampleDefault shows the built-in defaults.
func ExampleDefault() {
	cfg := config.Default()

	fmt.Printf("Chunk Size: %d\n", cfg.Pool.ChunkSize)
	fmt.Printf("Leak Policy: %s\n", cfg.Pool.TicketLeakPolicy)
	fmt.Printf("Compression: %s\n", cfg.Snapshot.Compression)

	// Output:
	// Chunk Size: 256
	// Leak Policy: panic
	// Compression: zstd
}

// ExamplePoolConfig_Options shows how a pool section becomes pool options.
func ExamplePoolConfig_Options() {
	cfg := config.Default()
	cfg.Pool.Name = "nodes"
	cfg.Pool.TicketLeakPolicy = "log"

	opts, err := cfg.Pool.Options()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	nodes := pool.New[string](opts...)
	fmt.Println(nodes.Name(), nodes.Spawn("root"))

	// Output:
	// nodes 0:1
}
