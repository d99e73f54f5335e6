package config

import (
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/pulse/pkg/errors"
)

// EnvPrefix is the prefix for environment overrides, so driver.tick_interval
// becomes PULSE_DRIVER_TICK_INTERVAL.
const EnvPrefix = "PULSE"

// NewViper returns a viper instance prepared for Pulse configuration:
// defaults from New, plus automatic PULSE_* environment overrides.
// Callers may bind CLI flags onto it before resolving with LoadWithOverrides.
func NewViper(name string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, New(name))
	return v
}

// LoadWithOverrides resolves the effective configuration in precedence order:
// bound flags, then environment variables, then the optional YAML file, then
// defaults. The result is validated before being returned.
func LoadWithOverrides(v *viper.Viper, filePath string) (*Config, error) {
	if filePath != "" {
		v.SetConfigFile(filePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file")
		}
	}

	cfg := New(v.GetString("name"))
	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	}); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers every configuration key so environment and flag
// overrides resolve even without a config file.
func setDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("name", def.Name)
	v.SetDefault("version", def.Version)

	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.development", def.Logging.Development)
	v.SetDefault("logging.encoding", def.Logging.Encoding)
	v.SetDefault("logging.output_paths", def.Logging.OutputPaths)

	v.SetDefault("driver.tick_interval", def.Driver.TickInterval)
	v.SetDefault("driver.max_ticks", def.Driver.MaxTicks)
	v.SetDefault("driver.run_for", def.Driver.RunFor)

	v.SetDefault("pools.initial_size", def.Pools.InitialSize)
	v.SetDefault("pools.max_size", def.Pools.MaxSize)
	v.SetDefault("pools.expand_by", def.Pools.ExpandBy)
	v.SetDefault("pools.auto_expand", def.Pools.AutoExpand)
	v.SetDefault("pools.reclaim_every", def.Pools.ReclaimEvery)

	v.SetDefault("events.log_failures", def.Events.LogFailures)
	v.SetDefault("events.trace_dispatch", def.Events.TraceDispatch)

	v.SetDefault("observability.enable_metrics", def.Observability.EnableMetrics)
	v.SetDefault("observability.metrics_addr", def.Observability.MetricsAddr)
	v.SetDefault("observability.enable_tracing", def.Observability.EnableTracing)
	v.SetDefault("observability.tracing_sample_rate", def.Observability.TracingSampleRate)

	v.SetDefault("workload.spawn_per_tick", def.Workload.SpawnPerTick)
	v.SetDefault("workload.burst_size", def.Workload.BurstSize)
	v.SetDefault("workload.effect_ttl_ticks", def.Workload.EffectTTLTicks)
	v.SetDefault("workload.emitter_scopes", def.Workload.EmitterScopes)
	v.SetDefault("workload.chain_phases", def.Workload.ChainPhases)
	v.SetDefault("workload.seed", def.Workload.Seed)
}
