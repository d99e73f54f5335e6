// Package driver provides the tick loop that hosts use to drive the
// pooling, dispatch and sequencing components. The core packages never
// self-drive: reclamation sweeps, deferred flushes and sequence passes
// all run inside a tick, in the order their components were attached.
//
// A host wires its components once and either calls Tick at its own
// cadence or hands control to Run:
//
//	drv := driver.New(driver.WithInterval(16 * time.Millisecond))
//	drv.Attach("events", func(ctx context.Context) { dispatcher.Flush() })
//	drv.Attach("pools", func(ctx context.Context) { registry.Reclaim() })
//	drv.Attach("sequences", func(ctx context.Context) { runner.Advance(ctx) })
//
//	err := drv.Run(ctx) // until ctx is cancelled
//
// Each tick is one synchronous pass: attached functions run in attach
// order, never concurrently, and a panicking component is isolated so
// the rest of the pass still runs.
package driver

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/pulse/pkg/errors"
	"github.com/ajitpratap0/pulse/pkg/logger"
	"github.com/ajitpratap0/pulse/pkg/metrics"
)

// DefaultInterval is the tick cadence used when none is configured,
// matching a 60Hz frame budget.
const DefaultInterval = 16 * time.Millisecond

// Func is one component's per-tick work. The context carries the current
// tick number under logger.TickKey; it is the same context given to Tick
// or Run, so cancellation reaches components mid-pass.
type Func func(ctx context.Context)

// component pairs an attached function with the name used in logs.
type component struct {
	name string
	fn   Func
}

// Driver runs attached components once per tick. Attach order is
// invocation order. Safe for concurrent use, though ticks themselves are
// strictly sequential: a tick finishes before the next begins.
type Driver struct {
	mu         sync.Mutex
	components []component

	log      *zap.Logger
	interval time.Duration
	maxTicks uint64

	ticks uint64
}

// Option configures a driver at construction time.
type Option func(*options)

type options struct {
	log      *zap.Logger
	interval time.Duration
	maxTicks uint64
}

// WithLogger routes driver events to the given logger instead of the
// package-level one.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithInterval sets the cadence used by Run. Non-positive values fall
// back to DefaultInterval.
func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithMaxTicks makes Run return after n ticks. Zero means unbounded.
func WithMaxTicks(n uint64) Option {
	return func(o *options) { o.maxTicks = n }
}

// New creates a driver with no attached components.
func New(opts ...Option) *Driver {
	o := options{log: logger.Get(), interval: DefaultInterval}
	for _, opt := range opts {
		opt(&o)
	}
	if o.interval <= 0 {
		o.interval = DefaultInterval
	}
	return &Driver{
		log:      o.log,
		interval: o.interval,
		maxTicks: o.maxTicks,
	}
}

// Attach registers a component to run every tick, after those already
// attached. Returns a validation error for empty names and nil funcs.
func (d *Driver) Attach(name string, fn Func) error {
	if name == "" {
		return errors.New(errors.ErrorTypeValidation, "component name cannot be empty")
	}
	if fn == nil {
		return errors.New(errors.ErrorTypeValidation, "component func cannot be nil").
			WithDetail("component", name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.components = append(d.components, component{name: name, fn: fn})

	d.log.Debug("component attached",
		zap.String("component", name),
		zap.Int("position", len(d.components)-1))
	return nil
}

// Tick runs one synchronous pass over the attached components in attach
// order. A component that panics is logged and skipped; the pass
// continues with the rest.
func (d *Driver) Tick(ctx context.Context) {
	tick := atomic.AddUint64(&d.ticks, 1)
	ctx = context.WithValue(ctx, logger.TickKey, tick)

	d.mu.Lock()
	comps := make([]component, len(d.components))
	copy(comps, d.components)
	d.mu.Unlock()

	start := time.Now()
	for _, c := range comps {
		d.runComponent(ctx, c, tick)
	}

	metrics.TickDuration.Observe(time.Since(start).Seconds())
	metrics.TicksTotal.Inc()
}

// runComponent isolates one component's panic from the rest of the pass.
func (d *Driver) runComponent(ctx context.Context, c component, tick uint64) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("tick component panicked",
				zap.String("component", c.name),
				zap.Uint64("tick", tick),
				zap.Any("panic", r))
		}
	}()
	c.fn(ctx)
}

// Run ticks at the configured interval until ctx is cancelled or the
// tick bound is reached. Returns nil when the bound stops the run and
// ctx.Err() when cancellation does. A pass that overruns the interval
// delays subsequent ticks; passes never run concurrently.
func (d *Driver) Run(ctx context.Context) error {
	d.mu.Lock()
	attached := len(d.components)
	d.mu.Unlock()

	d.log.Info("driver started",
		zap.Duration("interval", d.interval),
		zap.Uint64("max_ticks", d.maxTicks),
		zap.Int("components", attached))

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Info("driver stopped",
				zap.Uint64("ticks", d.Ticks()),
				zap.NamedError("reason", ctx.Err()))
			return ctx.Err()

		case <-ticker.C:
			d.Tick(ctx)
			if d.maxTicks > 0 && d.Ticks() >= d.maxTicks {
				d.log.Info("driver reached tick bound",
					zap.Uint64("ticks", d.Ticks()))
				return nil
			}
		}
	}
}

// Ticks returns the number of completed ticks.
func (d *Driver) Ticks() uint64 {
	return atomic.LoadUint64(&d.ticks)
}
