package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/pulse/internal/workload"
	"github.com/ajitpratap0/pulse/pkg/config"
	"github.com/ajitpratap0/pulse/pkg/driver"
	"github.com/ajitpratap0/pulse/pkg/logger"
	"github.com/ajitpratap0/pulse/pkg/observability"
	"github.com/ajitpratap0/pulse/pkg/performance"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "pulse",
		Short: "Pulse - pooled effects and prioritized event dispatch runtime",
		Long: `Pulse is a tick-driven runtime for pooled, reusable effect handles and
prioritized event dispatch. The CLI drives the built-in effects simulation,
which exercises the pools, the dispatcher and the phase sequencer under a
configurable load.`,
	}

	root.AddCommand(versionCmd(), runCmd(), benchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Pulse v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func runCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulated effects workload",
		Long: `Run the built-in effects simulation at the configured tick cadence until
the duration elapses, the tick bound is reached or the process is
interrupted. Prints a stats snapshot on exit.

Example:
  pulse run --config pulse.yaml --duration 30s --metrics-addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, configFile)
			if err != nil {
				return err
			}
			return runWorkload(cfg)
		},
	}

	addRunFlags(cmd, &configFile)
	return cmd
}

func benchCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Drive the workload at saturation and report timings",
		Long: `Run the same simulation as run, but tick back-to-back with no cadence so
every pass runs as fast as the machine allows. Reports tick latency
percentiles, process resource usage and the workload stats.

Example:
  pulse bench --duration 10s --log-level error`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, configFile)
			if err != nil {
				return err
			}
			return runBench(cfg)
		},
	}

	addRunFlags(cmd, &configFile)
	return cmd
}

// addRunFlags registers the flags shared by run and bench.
func addRunFlags(cmd *cobra.Command, configFile *string) {
	cmd.Flags().StringVarP(configFile, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().Duration("duration", 0, "How long to run (0 = until interrupted; bench falls back to 10s)")
	cmd.Flags().Uint64("ticks", 0, "Stop after this many ticks (0 = no tick bound)")
	cmd.Flags().Duration("tick-interval", 16*time.Millisecond, "Tick cadence")
	cmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().String("metrics-addr", ":9090", "Prometheus listen address (empty = disabled)")
	cmd.Flags().Int64("seed", 0, "Simulation seed (0 = time-based)")
}

// loadConfig resolves the effective configuration: explicitly set flags
// override environment variables, which override the optional YAML file,
// which overrides defaults. Only changed flags are bound so flag defaults
// never mask file values.
func loadConfig(cmd *cobra.Command, configFile string) (*config.Config, error) {
	v := config.NewViper("pulse")

	bindings := map[string]string{
		"driver.run_for":             "duration",
		"driver.max_ticks":           "ticks",
		"driver.tick_interval":       "tick-interval",
		"logging.level":              "log-level",
		"observability.metrics_addr": "metrics-addr",
		"workload.seed":              "seed",
	}
	for key, name := range bindings {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	return config.LoadWithOverrides(v, configFile)
}

// initLogging brings up the global logger from the resolved configuration.
func initLogging(cfg *config.Config) (*zap.Logger, error) {
	err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		Encoding:    cfg.Logging.Encoding,
		OutputPaths: cfg.Logging.OutputPaths,
	})
	if err != nil {
		return nil, err
	}
	return logger.Get().With(zap.String("component", "pulse-cli")), nil
}

// initTracing brings up span export when the configuration asks for it.
// The returned shutdown func is a no-op otherwise.
func initTracing(cfg *config.Config) (func(), error) {
	if !cfg.Observability.EnableTracing {
		return func() {}, nil
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.Tracing.ServiceName = cfg.Name
	obsCfg.Tracing.ServiceVersion = cfg.Version
	obsCfg.Tracing.SamplingRate = cfg.Observability.TracingSampleRate
	if err := observability.Initialize(obsCfg); err != nil {
		return nil, err
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = observability.Shutdown(ctx)
	}, nil
}

// runContext builds the context the workload runs under: interrupt-aware,
// deadline-bounded when the configuration sets a duration.
func runContext(cfg *config.Config) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if cfg.Driver.RunFor <= 0 {
		return ctx, stop
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Driver.RunFor)
	return ctx, func() {
		cancel()
		stop()
	}
}

// serveMetrics exposes the prometheus registry until ctx ends.
func serveMetrics(ctx context.Context, log *zap.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// runWorkload runs the simulation at the configured cadence and prints a
// stats snapshot when it stops.
func runWorkload(cfg *config.Config) error {
	log, err := initLogging(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	stopTracing, err := initTracing(cfg)
	if err != nil {
		return err
	}
	defer stopTracing()

	ctx, cancel := runContext(cfg)
	defer cancel()

	if cfg.Observability.MetricsEnabled() {
		serveMetrics(ctx, log, cfg.Observability.MetricsAddr)
	}

	w, err := workload.New(cfg)
	if err != nil {
		return err
	}
	defer w.Close()

	drv := driver.New(
		driver.WithLogger(log),
		driver.WithInterval(cfg.Driver.Interval()),
		driver.WithMaxTicks(cfg.Driver.MaxTicks),
	)
	if err := w.Attach(drv); err != nil {
		return err
	}

	start := time.Now()
	err = drv.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	log.Info("workload finished",
		zap.Duration("elapsed", time.Since(start)),
		zap.Uint64("ticks", drv.Ticks()))
	return printJSON(w.Snapshot())
}

// BenchReport is the bench command's machine-readable result.
type BenchReport struct {
	ElapsedSeconds float64                    `json:"elapsed_seconds"`
	Ticks          uint64                     `json:"ticks"`
	TicksPerSecond float64                    `json:"ticks_per_second"`
	TickLatency    performance.LatencySummary `json:"tick_latency"`
	Resources      performance.ResourceUsage  `json:"resources"`
	Workload       workload.Snapshot          `json:"workload"`
}

// runBench ticks the simulation back-to-back for the configured duration
// and prints a latency and resource report.
func runBench(cfg *config.Config) error {
	log, err := initLogging(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := runContext(cfg)
	defer cancel()

	w, err := workload.New(cfg)
	if err != nil {
		return err
	}
	defer w.Close()

	drv := driver.New(driver.WithLogger(log))
	if err := w.Attach(drv); err != nil {
		return err
	}

	monitor, err := performance.NewResourceMonitor()
	if err != nil {
		return err
	}
	latency := performance.NewLatencyTracker()

	runFor := cfg.Driver.RunFor
	if runFor <= 0 {
		runFor = 10 * time.Second
	}
	log.Info("bench started",
		zap.Duration("duration", runFor),
		zap.Uint64("max_ticks", cfg.Driver.MaxTicks))

	start := time.Now()
	deadline := start.Add(runFor)
	for time.Now().Before(deadline) && ctx.Err() == nil {
		if cfg.Driver.MaxTicks > 0 && drv.Ticks() >= cfg.Driver.MaxTicks {
			break
		}
		tickStart := time.Now()
		drv.Tick(ctx)
		latency.Record(time.Since(tickStart))
	}
	elapsed := time.Since(start)

	report := BenchReport{
		ElapsedSeconds: elapsed.Seconds(),
		Ticks:          drv.Ticks(),
		TicksPerSecond: float64(drv.Ticks()) / elapsed.Seconds(),
		TickLatency:    latency.Summary(),
		Resources:      monitor.Usage(),
		Workload:       w.Snapshot(),
	}
	return printJSON(report)
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
