// Package workload implements the simulated effects system behind the
// run and bench commands. It exercises the whole library surface from
// one load: spark effects spawned off events every tick, scoped burst
// emitters firing into a deliberately undersized trail pool, a deferred
// expiry observer, and a warmup/storm/cooldown phase chain that cycles
// for as long as the driver ticks.
//
// The simulation is single-threaded: all mutation happens on the tick
// goroutine, either directly in a driver component or inside an event
// handler invoked from one. Snapshot may be called from any goroutine.
package workload

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/pulse/pkg/config"
	"github.com/ajitpratap0/pulse/pkg/driver"
	"github.com/ajitpratap0/pulse/pkg/errors"
	"github.com/ajitpratap0/pulse/pkg/events"
	"github.com/ajitpratap0/pulse/pkg/logger"
	"github.com/ajitpratap0/pulse/pkg/metrics"
	"github.com/ajitpratap0/pulse/pkg/observability"
	"github.com/ajitpratap0/pulse/pkg/pool"
	"github.com/ajitpratap0/pulse/pkg/sequence"
)

// Pool names used by the simulation.
const (
	// poolSparks serves the steady per-tick spawns and auto-expands.
	poolSparks = "sparks"
	// poolTrails serves bursts from a fixed allotment, so overlapping
	// bursts exhaust it.
	poolTrails = "trails"
)

// Workload wires a pool registry, an event dispatcher and a phase
// sequence into one self-driving simulation. Construct with New, mount
// on a driver with Attach.
type Workload struct {
	cfg *config.Config
	log *zap.Logger

	registry *pool.Registry[*Effect]
	bus      *events.Dispatcher
	runner   *sequence.Runner

	// rng is only touched from the tick goroutine.
	rng     *rand.Rand
	tracker *metrics.ThroughputTracker

	mu         sync.Mutex
	live       map[*pool.Handle[*Effect]]struct{}
	phase      string
	phaseStart uint64
	scopes     []string
	expiryObs  events.Subscription

	lastPhase string

	// Updated atomically; read by liveness predicates during sweeps and
	// by Snapshot from other goroutines.
	tick     uint64
	cycles   uint64
	spawned  uint64
	expired  uint64
	observed uint64
	released uint64
	denied   uint64
}

// Option configures a workload at construction time.
type Option func(*opts)

type opts struct {
	log *zap.Logger
}

// WithLogger routes workload events to the given logger instead of the
// package-level one.
func WithLogger(log *zap.Logger) Option {
	return func(o *opts) { o.log = log }
}

// New builds a workload from the given configuration: pools registered,
// static subscribers attached, emitters and expiry observer live, and
// the first phase chain queued. The configuration must already be
// validated.
func New(cfg *config.Config, options ...Option) (*Workload, error) {
	o := opts{log: logger.Get()}
	for _, opt := range options {
		opt(&o)
	}

	seed := cfg.Workload.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	w := &Workload{
		cfg:     cfg,
		log:     o.log,
		rng:     rand.New(rand.NewSource(seed)),
		tracker: metrics.NewThroughputTracker("workload"),
		live:    make(map[*pool.Handle[*Effect]]struct{}),
		phase:   "idle",
	}

	w.registry = pool.NewRegistry[*Effect](pool.WithLogger(o.log))

	busOpts := []events.Option{events.WithLogger(o.log)}
	if !cfg.Events.LogFailures {
		busOpts = append(busOpts, events.WithoutFailureLogs())
	}
	w.bus = events.New(busOpts...)

	w.runner = sequence.NewRunner(
		sequence.WithLogger(o.log),
		sequence.OnComplete(w.phaseDone),
		sequence.OnFail(func(u *sequence.Unit, err error) {
			w.log.Error("phase failed",
				zap.String("phase", u.Name()),
				zap.Error(err))
		}),
	)

	if err := w.createSparkPool(); err != nil {
		return nil, err
	}
	if err := w.ensureTrailPool(); err != nil {
		return nil, err
	}
	if err := w.subscribeStatic(); err != nil {
		return nil, err
	}
	if err := w.ensureEmitters(); err != nil {
		return nil, err
	}
	if err := w.ensureExpiryWatch(); err != nil {
		return nil, err
	}

	chain := w.buildChain()
	if err := w.runner.Enqueue(chain); err != nil {
		return nil, err
	}

	w.log.Info("workload ready",
		zap.Int64("seed", seed),
		zap.Int("spawn_per_tick", cfg.Workload.SpawnPerTick),
		zap.Int("burst_size", cfg.Workload.BurstSize),
		zap.Int("effect_ttl_ticks", cfg.Workload.EffectTTLTicks),
		zap.Int("emitter_scopes", cfg.Workload.EmitterScopes),
		zap.String("first_phase", chain.Name()),
		zap.String("last_phase", w.lastPhase))
	return w, nil
}

// Attach mounts the workload on a driver in canonical order: simulate,
// flush deferred deliveries, sweep the pools, advance the phase chain.
// Flushing before the sweep lets expiry observers see the tick's
// casualties before their handles return to the pools.
func (w *Workload) Attach(drv *driver.Driver) error {
	if err := drv.Attach("workload", w.step); err != nil {
		return err
	}
	if err := drv.Attach("events", w.flush()); err != nil {
		return err
	}
	if err := drv.Attach("pools", w.sweep); err != nil {
		return err
	}
	return drv.Attach("sequences", func(ctx context.Context) {
		w.runner.Advance(ctx)
	})
}

// flush builds the dispatch-flush component, traced when the
// configuration asks for it.
func (w *Workload) flush() driver.Func {
	if !w.cfg.Events.TraceDispatch {
		return func(ctx context.Context) { w.bus.Flush() }
	}

	tracer := observability.NewTickTracer("dispatcher")
	return func(ctx context.Context) {
		pending := w.bus.Stats().DeferredPending
		_ = tracer.TracePass(ctx, "flush", pending, func(ctx context.Context) error {
			w.bus.Flush()
			return nil
		})
	}
}

// sweep reclaims expired and dead handles on the ticks the config asks
// for.
func (w *Workload) sweep(ctx context.Context) {
	if every := w.cfg.Pools.ReclaimEvery; every > 1 {
		if tick, ok := ctx.Value(logger.TickKey).(uint64); ok && tick%uint64(every) != 0 {
			return
		}
	}
	timer := metrics.NewTimer("reclaim_sweep")
	if n := w.registry.Reclaim(); n > 0 {
		w.log.Debug("sweep done",
			zap.Int("reclaimed", n),
			zap.Duration("duration", timer.Stop()))
	}
}

// step is the per-tick simulation pass: advance the tick counter,
// publish the tick's demand and retire effects whose lifetime lapsed.
func (w *Workload) step(ctx context.Context) {
	tick := atomic.AddUint64(&w.tick, 1)
	phase := w.Phase()

	if phase == phaseWarmup || phase == phaseStorm {
		events.Publish(w.bus, SpawnRequest{Kind: "spark", Count: w.cfg.Workload.SpawnPerTick})
	}
	// Roughly one burst every four storm ticks, aimed at a random emitter.
	if phase == phaseStorm && w.rng.Intn(4) == 0 {
		if emitter := w.pickEmitter(); emitter != "" {
			events.Publish(w.bus, BurstTriggered{Emitter: emitter, Count: w.cfg.Workload.BurstSize})
		}
	}

	w.retireExpired(tick)
}

// retireExpired drops dead effects from the live set and publishes their
// expiry. The sweep later in the same tick returns the handles to their
// pools.
func (w *Workload) retireExpired(tick uint64) {
	w.mu.Lock()
	var dead []*pool.Handle[*Effect]
	for h := range w.live {
		if !h.Value().Alive(tick) {
			dead = append(dead, h)
			delete(w.live, h)
		}
	}
	w.mu.Unlock()

	for _, h := range dead {
		e := h.Value()
		events.Publish(w.bus, EffectExpired{Kind: e.Kind, Lifetime: tick - e.BornTick})
	}
	if len(dead) > 0 {
		atomic.AddUint64(&w.expired, uint64(len(dead)))
	}
}

// createSparkPool registers the steady-spawn pool using the configured
// default sizing.
func (w *Workload) createSparkPool() error {
	p := w.cfg.Pools
	return w.registry.Create(poolSparks, pool.Config[*Effect]{
		New:         func() *Effect { return &Effect{} },
		Reset:       func(e *Effect) { e.Reset() },
		Alive:       w.alive,
		InitialSize: p.InitialSize,
		MaxSize:     p.MaxSize,
		ExpandBy:    p.ExpandBy,
		AutoExpand:  p.AutoExpand,
	})
}

// ensureTrailPool registers the fixed-size burst pool. Cooldown clears
// it, so each warmup registers it again; an existing pool is left alone.
func (w *Workload) ensureTrailPool() error {
	burst := w.cfg.Workload.BurstSize
	if burst < 1 {
		burst = 1
	}
	err := w.registry.Create(poolTrails, pool.Config[*Effect]{
		New:   func() *Effect { return &Effect{} },
		Reset: func(e *Effect) { e.Reset() },
		Alive: w.alive,
		// Half a burst of headroom: two overlapping bursts exhaust it.
		InitialSize: burst,
		MaxSize:     burst + burst/2,
		AutoExpand:  false,
	})
	if err != nil && errors.IsType(err, errors.ErrorTypeDuplicateKey) {
		return nil
	}
	return err
}

// alive is the liveness predicate shared by both pools.
func (w *Workload) alive(e *Effect) bool {
	return e.Alive(atomic.LoadUint64(&w.tick))
}

// subscribeStatic attaches the subscribers that live for the whole run.
func (w *Workload) subscribeStatic() error {
	// Steady spawner services the per-tick demand at normal priority.
	if _, err := events.Subscribe(w.bus, w.onSpawnRequest); err != nil {
		return err
	}
	// The burst watcher runs before any emitter and flags saturation.
	if _, err := events.Subscribe(w.bus, w.onBurstWatch,
		events.WithPriority(events.PriorityCritical)); err != nil {
		return err
	}
	// The phase watcher trails everything else so it logs the state a
	// transition left behind.
	if _, err := events.Subscribe(w.bus, w.onPhaseChanged,
		events.WithPriority(events.PriorityBackground)); err != nil {
		return err
	}
	return nil
}

// onSpawnRequest fills the tick's spawn demand from the spark pool,
// backing off for the rest of the tick when the pool is saturated.
func (w *Workload) onSpawnRequest(req SpawnRequest) error {
	for i := 0; i < req.Count; i++ {
		h, err := w.registry.Acquire(poolSparks)
		if err != nil {
			if errors.IsRetryable(err) {
				atomic.AddUint64(&w.denied, uint64(req.Count-i))
				return nil
			}
			return err
		}
		w.activate(h, req.Kind)
	}
	return nil
}

// onBurstWatch runs at critical priority ahead of the emitters and flags
// bursts the trail pool cannot fully serve.
func (w *Workload) onBurstWatch(b BurstTriggered) error {
	stats, err := w.registry.Stats(poolTrails)
	if err != nil {
		return err
	}
	if stats.Idle < b.Count {
		w.log.Debug("burst will saturate trail pool",
			zap.String("emitter", b.Emitter),
			zap.Int("idle", stats.Idle),
			zap.Int("requested", b.Count))
	}
	return nil
}

// onBurst fires one emitter's burst from the trail pool, each trail
// carrying a wall-clock reclamation deadline on top of its tick
// lifetime. A trimmed burst is normal backpressure; an emitter that
// cannot fire at all reports the exhaustion.
func (w *Workload) onBurst(emitter string, b BurstTriggered) error {
	if b.Emitter != emitter {
		return nil
	}

	ttl := time.Duration(w.cfg.Workload.EffectTTLTicks+2) * w.cfg.Driver.Interval()
	for i := 0; i < b.Count; i++ {
		h, err := w.registry.AcquireFor(poolTrails, ttl)
		if err != nil {
			atomic.AddUint64(&w.denied, uint64(b.Count-i))
			if i > 0 && errors.IsRetryable(err) {
				return nil
			}
			return err
		}
		w.activate(h, "trail")
	}
	return nil
}

// onPhaseChanged logs transitions with the state every other subscriber
// left behind.
func (w *Workload) onPhaseChanged(pc PhaseChanged) error {
	w.log.Info("phase changed",
		zap.String("from", pc.From),
		zap.String("to", pc.To),
		zap.Uint64("tick", atomic.LoadUint64(&w.tick)),
		zap.Int("live_effects", w.liveCount()))
	return nil
}

// onEffectExpired consumes the deferred expiry batch.
func (w *Workload) onEffectExpired(EffectExpired) error {
	atomic.AddUint64(&w.observed, 1)
	return nil
}

// activate stamps a freshly acquired effect with a jittered lifetime and
// starts tracking its handle.
func (w *Workload) activate(h *pool.Handle[*Effect], kind string) {
	tick := atomic.LoadUint64(&w.tick)

	e := h.Value()
	e.Kind = kind
	e.Intensity = 1 + w.rng.Intn(100)
	e.BornTick = tick
	e.DiesTick = tick + 1 + uint64(w.rng.Intn(w.cfg.Workload.EffectTTLTicks))

	w.mu.Lock()
	w.live[h] = struct{}{}
	w.mu.Unlock()

	atomic.AddUint64(&w.spawned, 1)
	w.tracker.Increment(1)
}

// pickEmitter returns a random live emitter scope, or "" when cooldown
// already tore them down.
func (w *Workload) pickEmitter() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.scopes) == 0 {
		return ""
	}
	return w.scopes[w.rng.Intn(len(w.scopes))]
}

// Phase returns the name of the phase currently running.
func (w *Workload) Phase() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.phase
}

// liveCount returns the number of tracked effects.
func (w *Workload) liveCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.live)
}

// Snapshot is a point-in-time view of the simulation and its components.
type Snapshot struct {
	// Tick is the number of completed simulation steps.
	Tick uint64 `json:"tick"`
	// Phase is the phase currently running.
	Phase string `json:"phase"`
	// Cycles counts completed runs of the whole phase chain.
	Cycles uint64 `json:"cycles"`
	// Live is the number of effects currently tracked.
	Live int `json:"live_effects"`
	// Spawned counts effects activated, sparks and trails alike.
	Spawned uint64 `json:"spawned"`
	// Expired counts effects retired by lifetime.
	Expired uint64 `json:"expired"`
	// Observed counts expiries seen by the deferred observer; expiries
	// queued when cooldown dropped the observer are missing here.
	Observed uint64 `json:"expired_observed"`
	// Released counts effects drained explicitly during cooldown.
	Released uint64 `json:"released"`
	// Denied counts spawn and burst requests refused by saturated pools.
	Denied uint64 `json:"denied"`
	// Throughput is spawns per second since the last snapshot.
	Throughput float64 `json:"throughput_per_second"`

	Pools     map[string]pool.Stats `json:"pools"`
	Events    events.Stats          `json:"events"`
	Sequences sequence.Stats        `json:"sequences"`
}

// Snapshot collects current statistics from the simulation and every
// component under it. Safe to call from any goroutine.
func (w *Workload) Snapshot() Snapshot {
	w.mu.Lock()
	phase := w.phase
	live := len(w.live)
	w.mu.Unlock()

	return Snapshot{
		Tick:       atomic.LoadUint64(&w.tick),
		Phase:      phase,
		Cycles:     atomic.LoadUint64(&w.cycles),
		Live:       live,
		Spawned:    atomic.LoadUint64(&w.spawned),
		Expired:    atomic.LoadUint64(&w.expired),
		Observed:   atomic.LoadUint64(&w.observed),
		Released:   atomic.LoadUint64(&w.released),
		Denied:     atomic.LoadUint64(&w.denied),
		Throughput: w.tracker.GetAndReset(),
		Pools:      w.registry.StatsAll(),
		Events:     w.bus.Stats(),
		Sequences:  w.runner.Stats(),
	}
}

// Close tears down the dispatcher and destroys every pool. The workload
// must not be ticked afterwards.
func (w *Workload) Close() {
	w.mu.Lock()
	w.live = make(map[*pool.Handle[*Effect]]struct{})
	w.scopes = nil
	w.expiryObs = events.Subscription{}
	w.mu.Unlock()

	w.bus.Close()
	w.registry.Close()
	w.log.Info("workload closed",
		zap.Uint64("ticks", atomic.LoadUint64(&w.tick)),
		zap.Uint64("spawned", atomic.LoadUint64(&w.spawned)))
}
