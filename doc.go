// Package pulse provides a tick-driven runtime for pooled, reusable object
// handles and prioritized event dispatch.
//
// Pulse is built for hosts that run a frame or tick loop and want to avoid
// per-tick allocation churn: short-lived objects come from named pools and
// are recycled instead of garbage collected, components talk through a typed
// event bus with explicit priorities, and multi-phase behaviors are expressed
// as chained sequences that advance one step per tick.
//
// # Architecture
//
// Everything mutates on a single tick goroutine. The driver calls each
// attached component once per tick in registration order; pools, the
// dispatcher and the sequence runner each expose one per-tick entry point
// (Reclaim, Flush, Advance) that the host wires in. Handlers run inline
// during Publish, so by the time a publish returns every synchronous
// subscriber has seen the event.
//
// # Quick Start
//
// Wire the three subsystems onto a driver and run it:
//
//	import (
//	    "context"
//	    "github.com/ajitpratap0/pulse/pkg/driver"
//	    "github.com/ajitpratap0/pulse/pkg/events"
//	    "github.com/ajitpratap0/pulse/pkg/pool"
//	    "github.com/ajitpratap0/pulse/pkg/sequence"
//	)
//
//	registry := pool.NewRegistry[*Spark](pool.WithLogger(log))
//	dispatcher := events.New(events.WithLogger(log))
//	runner := sequence.NewRunner(sequence.WithLogger(log))
//
//	drv := driver.New(driver.WithInterval(16 * time.Millisecond))
//	drv.Attach("events", func(ctx context.Context) { dispatcher.Flush() })
//	drv.Attach("pools", func(ctx context.Context) { registry.Reclaim() })
//	drv.Attach("sequences", func(ctx context.Context) { runner.Advance(ctx) })
//	err := drv.Run(ctx)
//
// # Key Packages
//
//	pkg/pool          - Named, bounded pools of reusable handles
//	pkg/events        - Typed event bus with priorities, scopes and deferral
//	pkg/sequence      - Chained sequential steps advanced by the tick loop
//	pkg/driver        - The tick loop itself
//	pkg/config        - YAML + env + flag configuration
//	pkg/errors        - Structured error handling
//	pkg/logger        - Structured logging
//	pkg/metrics       - Prometheus metrics
//	pkg/observability - Tracing and unified telemetry setup
//	pkg/performance   - Latency and resource measurement helpers
//
// # The Built-in Workload
//
// internal/workload implements a complete effects simulation (spawn, burst,
// expire, drain) that exercises every public operation; the pulse CLI runs
// it:
//
//	pulse run --duration 30s --metrics-addr :9090
//	pulse bench --duration 10s --log-level error
//
// # Configuration
//
// Configuration loads from defaults, then an optional YAML file, then
// PULSE_-prefixed environment variables, then explicitly set CLI flags.
// YAML values support ${VAR_NAME} substitution.
package pulse
