package workload

// Effect is one pooled particle effect instance. Instances are reused
// across checkouts; Reset returns them to the zero state in between.
type Effect struct {
	// Kind labels the visual this effect stands in for.
	Kind string
	// Intensity scales the effect, in the 1-100 range.
	Intensity int
	// BornTick is the tick the effect was spawned on.
	BornTick uint64
	// DiesTick is the tick the effect stops being alive.
	DiesTick uint64
}

// Alive reports whether the effect survives a sweep at the given tick.
func (e *Effect) Alive(tick uint64) bool {
	return e.DiesTick == 0 || tick < e.DiesTick
}

// Reset clears the effect for reuse.
func (e *Effect) Reset() {
	e.Kind = ""
	e.Intensity = 0
	e.BornTick = 0
	e.DiesTick = 0
}

// SpawnRequest asks for count spark effects. Published once per tick
// while a spawning phase is active.
type SpawnRequest struct {
	Kind  string
	Count int
}

// BurstTriggered tells one emitter to fire a burst of trail effects.
// Every emitter sees it; only the addressed one acts.
type BurstTriggered struct {
	Emitter string
	Count   int
}

// EffectExpired reports an effect whose lifetime lapsed. Its observer
// subscribes deferred, so expirations arrive batched on the tick's flush.
type EffectExpired struct {
	Kind     string
	Lifetime uint64
}

// PhaseChanged announces a transition of the phase sequence.
type PhaseChanged struct {
	From string
	To   string
}
