package config_test

import (
	"fmt"
	"log"
	"time"

	"github.com/ajitpratap0/pulse/pkg/config"
)

// ExampleNew demonstrates creating a new configuration with default values.
func ExampleNew() {
	// Create a new configuration for a demo host
	cfg := config.New("pulse-demo")

	// The configuration comes with sensible defaults
	fmt.Printf("Tick Interval: %s\n", cfg.Driver.TickInterval)
	fmt.Printf("Pool Max Size: %d\n", cfg.Pools.MaxSize)
	fmt.Printf("Log Level: %s\n", cfg.Logging.Level)

	// Output:
	// Tick Interval: 16ms
	// Pool Max Size: 256
	// Log Level: info
}

// ExampleConfig_Validate shows how to validate a configuration
// before using it.
func ExampleConfig_Validate() {
	cfg := config.New("pulse-demo")

	// Modify some values
	cfg.Driver.TickInterval = 5 * time.Millisecond
	cfg.Pools.InitialSize = 128
	cfg.Pools.MaxSize = 1024

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Println("Configuration is valid!")

	// Output:
	// Configuration is valid!
}

// ExampleLoad demonstrates loading configuration from a YAML file
// with environment variable substitution.
func ExampleLoad() {
	// In practice, you would load from a file:
	// var cfg config.Config
	// if err := config.Load("pulse.yaml", &cfg); err != nil {
	//     log.Fatal(err)
	// }

	// For this example, we'll create one manually
	cfg := config.New("pulse-demo")
	cfg.Workload.SpawnPerTick = 32

	fmt.Printf("Name: %s\n", cfg.Name)
	fmt.Printf("Spawn Per Tick: %d\n", cfg.Workload.SpawnPerTick)

	// Output:
	// Name: pulse-demo
	// Spawn Per Tick: 32
}

// ExampleConfig_pools shows how to size pools for a bursty workload.
func ExampleConfig_pools() {
	cfg := config.New("pulse-demo")

	// Start small but leave headroom for bursts
	cfg.Pools.InitialSize = 32
	cfg.Pools.MaxSize = 512
	cfg.Pools.ExpandBy = 32
	cfg.Pools.AutoExpand = true

	// Sweep expired handles every other tick
	cfg.Pools.ReclaimEvery = 2

	fmt.Printf("Initial: %d\n", cfg.Pools.InitialSize)
	fmt.Printf("Max: %d\n", cfg.Pools.MaxSize)
	fmt.Printf("Auto Expand: %v\n", cfg.Pools.AutoExpand)

	// Output:
	// Initial: 32
	// Max: 512
	// Auto Expand: true
}
