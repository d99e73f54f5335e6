// Package config provides the unified configuration system for Pulse.
// It defines a single Config structure shared by the library hosts and the
// CLI, ensuring consistent settings across the entire system.
//
// The configuration is organized into logical sections:
//   - Logging: Level, encoding and output destinations
//   - Driver: Tick cadence and run bounds
//   - Pools: Default sizing for registered pools and sweep cadence
//   - Events: Dispatch failure reporting
//   - Observability: Metrics endpoint and trace sampling
//   - Workload: Knobs for the built-in simulation
//
// Example usage:
//
//	cfg := config.New("pulse-demo")
//	cfg.Pools.MaxSize = 512
//	cfg.Driver.TickInterval = 10 * time.Millisecond
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"time"

	"github.com/ajitpratap0/pulse/pkg/errors"
)

// Config is the single configuration structure shared by library hosts and
// the CLI. Sections carry both yaml and json tags so files and stats
// snapshots use the same names.
type Config struct {
	// Name identifies this host instance in logs and metrics
	Name string `yaml:"name" json:"name"`
	// Version indicates the configuration version
	Version string `yaml:"version" json:"version"`

	// Logging controls the structured logger
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Driver controls the tick cadence
	Driver DriverConfig `yaml:"driver" json:"driver"`

	// Pools holds default sizing applied to registered pools
	Pools PoolsConfig `yaml:"pools" json:"pools"`

	// Events controls dispatch failure reporting
	Events EventsConfig `yaml:"events" json:"events"`

	// Observability settings for metrics and tracing
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`

	// Workload configures the built-in simulation used by run and bench
	Workload WorkloadConfig `yaml:"workload" json:"workload"`
}

// LoggingConfig controls the zap-backed structured logger.
type LoggingConfig struct {
	// Level sets logging verbosity (debug, info, warn, error)
	Level string `yaml:"level" json:"level"`
	// Development switches to a human-friendly console encoder
	Development bool `yaml:"development" json:"development"`
	// Encoding selects json or console output
	Encoding string `yaml:"encoding" json:"encoding"`
	// OutputPaths lists log sinks (defaults to stdout)
	OutputPaths []string `yaml:"output_paths" json:"output_paths"`
}

// DriverConfig controls the tick driver.
type DriverConfig struct {
	// TickInterval is the period between driver ticks
	TickInterval time.Duration `yaml:"tick_interval" json:"tick_interval"`
	// MaxTicks stops the run after this many ticks (0 = no tick bound)
	MaxTicks uint64 `yaml:"max_ticks" json:"max_ticks"`
	// RunFor stops the run after this wall-clock duration (0 = until cancelled)
	RunFor time.Duration `yaml:"run_for" json:"run_for"`
}

// PoolsConfig holds the default sizing for pools the host registers.
// Individual pools may still override these when they are created.
type PoolsConfig struct {
	// InitialSize is the number of handles built eagerly at registration
	InitialSize int `yaml:"initial_size" json:"initial_size"`
	// MaxSize bounds the total handles a pool may hold
	MaxSize int `yaml:"max_size" json:"max_size"`
	// ExpandBy is the growth step when a pool runs dry
	ExpandBy int `yaml:"expand_by" json:"expand_by"`
	// AutoExpand permits growth up to MaxSize instead of failing fast
	AutoExpand bool `yaml:"auto_expand" json:"auto_expand"`
	// ReclaimEvery runs the liveness sweep every N ticks (0 = every tick)
	ReclaimEvery int `yaml:"reclaim_every" json:"reclaim_every"`
}

// EventsConfig controls dispatch failure reporting.
type EventsConfig struct {
	// LogFailures emits a log entry for every subscriber error or panic
	LogFailures bool `yaml:"log_failures" json:"log_failures"`
	// TraceDispatch wraps publish passes in spans when tracing is enabled
	TraceDispatch bool `yaml:"trace_dispatch" json:"trace_dispatch"`
}

// ObservabilityConfig contains monitoring settings.
type ObservabilityConfig struct {
	// EnableMetrics activates the prometheus endpoint
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// MetricsAddr is the listen address for the prometheus endpoint
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
	// EnableTracing activates span export
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// TracingSampleRate controls trace sampling (0.0-1.0)
	TracingSampleRate float64 `yaml:"tracing_sample_rate" json:"tracing_sample_rate"`
}

// WorkloadConfig configures the built-in effects simulation.
type WorkloadConfig struct {
	// SpawnPerTick is the number of effects requested each tick
	SpawnPerTick int `yaml:"spawn_per_tick" json:"spawn_per_tick"`
	// BurstSize is the number of extra effects requested on burst events
	BurstSize int `yaml:"burst_size" json:"burst_size"`
	// EffectTTLTicks is how many ticks a spawned effect stays alive
	EffectTTLTicks int `yaml:"effect_ttl_ticks" json:"effect_ttl_ticks"`
	// EmitterScopes is the number of scoped emitters attached at start
	EmitterScopes int `yaml:"emitter_scopes" json:"emitter_scopes"`
	// ChainPhases is the length of the phase sequence run during the simulation
	ChainPhases int `yaml:"chain_phases" json:"chain_phases"`
	// Seed makes the simulation reproducible (0 = time-based)
	Seed int64 `yaml:"seed" json:"seed"`
}

// New creates a Config with sensible defaults. Hosts override individual
// fields as needed and call Validate before use.
//
// Example:
//
//	cfg := config.New("pulse-demo")
//	cfg.Workload.SpawnPerTick = 32 // Override default
func New(name string) *Config {
	return &Config{
		Name:    name,
		Version: "1.0.0",
		Logging: LoggingConfig{
			Level:       "info",
			Development: false,
			Encoding:    "json",
			OutputPaths: []string{"stdout"},
		},
		Driver: DriverConfig{
			TickInterval: 16 * time.Millisecond,
			MaxTicks:     0,
			RunFor:       0,
		},
		Pools: PoolsConfig{
			InitialSize:  64,
			MaxSize:      256,
			ExpandBy:     16,
			AutoExpand:   true,
			ReclaimEvery: 1,
		},
		Events: EventsConfig{
			LogFailures:   true,
			TraceDispatch: false,
		},
		Observability: ObservabilityConfig{
			EnableMetrics:     true,
			MetricsAddr:       ":9090",
			EnableTracing:     false,
			TracingSampleRate: 0.1,
		},
		Workload: WorkloadConfig{
			SpawnPerTick:   16,
			BurstSize:      48,
			EffectTTLTicks: 12,
			EmitterScopes:  4,
			ChainPhases:    3,
			Seed:           0,
		},
	}
}

// Validate validates the configuration for correctness.
// It checks required fields and ensures values are within acceptable ranges.
// Hosts should call this after loading configuration to catch errors early.
//
// Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "name is required")
	}
	if c.Driver.TickInterval <= 0 {
		return errors.New(errors.ErrorTypeConfig, "tick_interval must be positive")
	}
	if c.Pools.InitialSize < 0 {
		return errors.New(errors.ErrorTypeConfig, "initial_size cannot be negative")
	}
	if c.Pools.MaxSize < 1 {
		return errors.New(errors.ErrorTypeConfig, "max_size must be at least 1")
	}
	if c.Pools.InitialSize > c.Pools.MaxSize {
		return errors.New(errors.ErrorTypeConfig, "initial_size cannot exceed max_size")
	}
	if c.Pools.AutoExpand && c.Pools.ExpandBy < 1 {
		return errors.New(errors.ErrorTypeConfig, "expand_by must be at least 1 when auto_expand is set")
	}
	if c.Pools.ReclaimEvery < 0 {
		return errors.New(errors.ErrorTypeConfig, "reclaim_every cannot be negative")
	}
	if c.Observability.TracingSampleRate < 0 || c.Observability.TracingSampleRate > 1 {
		return errors.New(errors.ErrorTypeConfig, "tracing_sample_rate must be between 0 and 1")
	}
	if c.Workload.SpawnPerTick < 0 {
		return errors.New(errors.ErrorTypeConfig, "spawn_per_tick cannot be negative")
	}
	if c.Workload.EffectTTLTicks < 1 {
		return errors.New(errors.ErrorTypeConfig, "effect_ttl_ticks must be at least 1")
	}
	return nil
}

// Interval returns the tick interval, ensuring it is usable
func (d *DriverConfig) Interval() time.Duration {
	if d.TickInterval <= 0 {
		return 16 * time.Millisecond
	}
	return d.TickInterval
}

// Bounded returns true if the run stops on its own
func (d *DriverConfig) Bounded() bool {
	return d.MaxTicks > 0 || d.RunFor > 0
}

// MetricsEnabled returns true if the prometheus endpoint should be served
func (o *ObservabilityConfig) MetricsEnabled() bool {
	return o.EnableMetrics && o.MetricsAddr != ""
}
