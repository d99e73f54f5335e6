package workload

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ajitpratap0/pulse/pkg/errors"
	"github.com/ajitpratap0/pulse/pkg/events"
	"github.com/ajitpratap0/pulse/pkg/pool"
	"github.com/ajitpratap0/pulse/pkg/sequence"
)

// Phase names. Chains longer than three phases repeat the storm.
const (
	// phaseWarmup spawns steadily while the pools fill and recycle.
	phaseWarmup = "warmup"
	// phaseStorm adds bursts from the scoped emitters on top.
	phaseStorm = "storm"
	// phaseCooldown stops spawning, tears the emitters down and drains
	// the live set.
	phaseCooldown = "cooldown"
)

// buildChain assembles one cycle of the phase sequence and records its
// final phase, which is what triggers the next cycle.
func (w *Workload) buildChain() *sequence.Unit {
	n := w.cfg.Workload.ChainPhases
	if n < 1 {
		n = 1
	}

	var names []string
	switch n {
	case 1:
		names = []string{phaseStorm}
	case 2:
		names = []string{phaseWarmup, phaseCooldown}
	default:
		names = append(names, phaseWarmup)
		for i := 0; i < n-2; i++ {
			names = append(names, phaseStorm)
		}
		names = append(names, phaseCooldown)
	}
	w.lastPhase = names[len(names)-1]

	head := sequence.New(names[0], w.phaseStep(names[0]))
	tail := head
	for _, name := range names[1:] {
		tail = tail.Then(sequence.New(name, w.phaseStep(name)))
	}
	return head
}

// phaseStep builds the Step driving one phase. The first call announces
// the transition; completion is timed for warmup and storm and
// drain-based for cooldown.
func (w *Workload) phaseStep(name string) sequence.Step {
	entered := false
	return func(ctx context.Context) (bool, error) {
		if !entered {
			if err := w.enterPhase(name); err != nil {
				return false, err
			}
			entered = true
		}

		if name == phaseCooldown {
			return w.drainStep(), nil
		}
		return w.phaseTicks() >= w.phaseBudget(name), nil
	}
}

// phaseTicks is the number of ticks since the current phase began.
func (w *Workload) phaseTicks() uint64 {
	tick := atomic.LoadUint64(&w.tick)
	w.mu.Lock()
	start := w.phaseStart
	w.mu.Unlock()
	return tick - start
}

// phaseBudget is how long a timed phase runs: one effect lifetime of
// warmup, two of storm.
func (w *Workload) phaseBudget(name string) uint64 {
	ttl := uint64(w.cfg.Workload.EffectTTLTicks)
	if name == phaseStorm {
		return 2 * ttl
	}
	return ttl
}

// enterPhase runs the transition work for a phase and announces it.
func (w *Workload) enterPhase(name string) error {
	tick := atomic.LoadUint64(&w.tick)

	w.mu.Lock()
	from := w.phase
	w.phase = name
	w.phaseStart = tick
	w.mu.Unlock()

	switch name {
	case phaseWarmup:
		// Cooldown dismantled these on the previous cycle.
		if err := w.ensureTrailPool(); err != nil {
			return err
		}
		if err := w.ensureEmitters(); err != nil {
			return err
		}
		if err := w.ensureExpiryWatch(); err != nil {
			return err
		}
	case phaseCooldown:
		w.teardownEmitters()
		if err := w.registry.Clear(poolTrails); err != nil {
			return err
		}
	}

	events.Publish(w.bus, PhaseChanged{From: from, To: name})
	return nil
}

// ensureEmitters subscribes one scoped burst handler per configured
// emitter. Each handler acts only on bursts addressed to its emitter;
// cooldown removes a whole emitter with one scope call. No-op while
// emitters are live.
func (w *Workload) ensureEmitters() error {
	w.mu.Lock()
	n := len(w.scopes)
	w.mu.Unlock()
	if n > 0 {
		return nil
	}

	count := w.cfg.Workload.EmitterScopes
	scopes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		emitter := fmt.Sprintf("emitter-%d", i)
		handler := func(b BurstTriggered) error { return w.onBurst(emitter, b) }
		if _, err := events.Subscribe(w.bus, handler, events.WithScope(emitter)); err != nil {
			return err
		}
		scopes = append(scopes, emitter)
	}

	w.mu.Lock()
	w.scopes = scopes
	w.mu.Unlock()
	return nil
}

// ensureExpiryWatch subscribes the deferred expiry observer. No-op while
// one is live.
func (w *Workload) ensureExpiryWatch() error {
	w.mu.Lock()
	present := w.expiryObs != (events.Subscription{})
	w.mu.Unlock()
	if present {
		return nil
	}

	sub, err := events.Subscribe(w.bus, w.onEffectExpired,
		events.WithPriority(events.PriorityBackground), events.Deferred())
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.expiryObs = sub
	w.mu.Unlock()
	return nil
}

// teardownEmitters removes every emitter scope and drops the deferred
// expiry observer; whatever the observer still had queued dies with it.
func (w *Workload) teardownEmitters() {
	w.mu.Lock()
	scopes := w.scopes
	w.scopes = nil
	obs := w.expiryObs
	w.expiryObs = events.Subscription{}
	w.mu.Unlock()

	removed := 0
	for _, scope := range scopes {
		removed += w.bus.UnsubscribeScope(scope)
	}
	w.bus.Unsubscribe(obs)

	w.log.Debug("emitters torn down",
		zap.Int("scopes", len(scopes)),
		zap.Int("subscriptions", removed))
}

// drainStep explicitly releases a batch of live effects and reports done
// once none remain. Handles the sweep already took back release as
// no-ops.
func (w *Workload) drainStep() bool {
	batch := w.cfg.Workload.SpawnPerTick
	if batch < 1 {
		batch = 1
	}

	w.mu.Lock()
	victims := make([]*pool.Handle[*Effect], 0, batch)
	for h := range w.live {
		if len(victims) == batch {
			break
		}
		victims = append(victims, h)
		delete(w.live, h)
	}
	remaining := len(w.live)
	w.mu.Unlock()

	for _, h := range victims {
		if err := w.registry.Release(h); err != nil {
			if !errors.IsType(err, errors.ErrorTypeUnknownHandle) {
				w.log.Warn("drain release failed",
					zap.String("handle", h.ID()),
					zap.Error(err))
			}
			continue
		}
		atomic.AddUint64(&w.released, 1)
	}
	return remaining == 0
}

// phaseDone starts the next cycle when a chain's final phase completes.
func (w *Workload) phaseDone(u *sequence.Unit) {
	if u.Name() != w.lastPhase {
		return
	}

	cycle := atomic.AddUint64(&w.cycles, 1)
	w.log.Info("phase chain completed",
		zap.Uint64("cycle", cycle),
		zap.Uint64("tick", atomic.LoadUint64(&w.tick)))

	if err := w.runner.Enqueue(w.buildChain()); err != nil {
		w.log.Error("failed to queue next cycle", zap.Error(err))
	}
}
