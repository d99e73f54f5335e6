package pool

import (
	"time"

	"github.com/ajitpratap0/pulse/pkg/errors"
	"github.com/ajitpratap0/pulse/pkg/metrics"
)

// Config describes a named pool. New is the only required callback; the
// rest default to no-ops (Reset, Destroy) or always-alive (Alive).
type Config[T any] struct {
	// New constructs a fresh value. Called InitialSize times when the pool
	// is created and ExpandBy times per expansion.
	New func() T

	// Reset restores a value to a reusable state when its handle is
	// released. Optional.
	Reset func(T)

	// Destroy disposes of a value when the pool is cleared or closed.
	// Optional.
	Destroy func(T)

	// Alive reports whether a checked-out value is still usable. Handles
	// whose value fails this check are swept back by Reclaim. Optional;
	// nil means values never go dead on their own.
	Alive func(T) bool

	// InitialSize is the number of values built eagerly at Create time.
	InitialSize int

	// MaxSize caps the total number of values the pool may ever hold.
	MaxSize int

	// ExpandBy is the growth increment applied when an AutoExpand pool
	// runs out of idle handles. Clamped so the total never exceeds
	// MaxSize.
	ExpandBy int

	// AutoExpand enables growth past InitialSize up to MaxSize. When
	// false the pool never grows and an empty idle queue means immediate
	// exhaustion.
	AutoExpand bool
}

// Validate checks the configuration before a pool is built.
func (c *Config[T]) Validate() error {
	if c.New == nil {
		return errors.New(errors.ErrorTypeValidation, "pool config requires a New constructor")
	}
	if c.InitialSize < 0 {
		return errors.New(errors.ErrorTypeValidation, "initial size cannot be negative")
	}
	if c.MaxSize <= 0 {
		return errors.New(errors.ErrorTypeValidation, "max size must be positive")
	}
	if c.InitialSize > c.MaxSize {
		return errors.New(errors.ErrorTypeValidation, "initial size cannot exceed max size")
	}
	if c.AutoExpand && c.ExpandBy <= 0 {
		return errors.New(errors.ErrorTypeValidation, "expand increment must be positive when auto-expand is enabled")
	}
	return nil
}

// Stats is a point-in-time snapshot of one pool's counters.
type Stats struct {
	// Idle is the number of handles waiting in the queue.
	Idle int `json:"idle"`
	// Active is the number of handles currently checked out.
	Active int `json:"active"`
	// Capacity is the configured MaxSize.
	Capacity int `json:"capacity"`
	// Created is the total number of values ever constructed.
	Created uint64 `json:"created"`
	// Hits counts acquisitions served from the idle queue.
	Hits uint64 `json:"hits"`
	// Misses counts acquisitions that forced an expansion.
	Misses uint64 `json:"misses"`
	// Expansions counts growth events.
	Expansions uint64 `json:"expansions"`
	// Exhausted counts acquisitions rejected for lack of capacity.
	Exhausted uint64 `json:"exhausted"`
	// Released counts handles returned, by callers and by reclamation.
	Released uint64 `json:"released"`
	// Reclaimed counts handles swept back by Reclaim.
	Reclaimed uint64 `json:"reclaimed"`
	// HitRate is Hits over Hits+Misses.
	HitRate float64 `json:"hit_rate"`
}

// pool holds the idle queue and active set for one named pool. All fields
// are guarded by the owning registry's mutex.
type pool[T any] struct {
	key   string
	cfg   Config[T]
	owner *Registry[T]

	idle   []*Handle[T]
	active map[*Handle[T]]struct{}

	created    uint64
	hits       uint64
	misses     uint64
	expansions uint64
	exhausted  uint64
	released   uint64
	reclaimed  uint64
}

func newPool[T any](key string, cfg Config[T], owner *Registry[T]) *pool[T] {
	p := &pool[T]{
		key:    key,
		cfg:    cfg,
		owner:  owner,
		idle:   make([]*Handle[T], 0, cfg.InitialSize),
		active: make(map[*Handle[T]]struct{}),
	}
	p.buildLocked(cfg.InitialSize)
	p.syncGauges()
	return p
}

// buildLocked constructs n fresh values and appends their handles to the
// idle queue.
func (p *pool[T]) buildLocked(n int) {
	for i := 0; i < n; i++ {
		h := &Handle[T]{
			id:    nextHandleID(p.key),
			key:   p.key,
			value: p.cfg.New(),
			owner: p.owner,
			state: stateIdle,
		}
		p.idle = append(p.idle, h)
		p.created++
	}
}

// size is the total number of live handles, idle plus checked out.
func (p *pool[T]) size() int {
	return len(p.idle) + len(p.active)
}

// popIdleLocked removes and returns the oldest idle handle, or nil when
// the queue is empty.
func (p *pool[T]) popIdleLocked() *Handle[T] {
	if len(p.idle) == 0 {
		return nil
	}
	h := p.idle[0]
	p.idle[0] = nil
	p.idle = p.idle[1:]
	return h
}

// acquireLocked hands out the oldest idle handle, expanding the pool first
// when the queue is empty and growth is allowed.
func (p *pool[T]) acquireLocked(deadline time.Time) (*Handle[T], error) {
	outcome := "reuse"
	if len(p.idle) == 0 {
		if !p.cfg.AutoExpand || p.size() >= p.cfg.MaxSize {
			p.exhausted++
			metrics.PoolAcquires.WithLabelValues(p.key, "exhausted").Inc()
			return nil, errors.New(errors.ErrorTypePoolExhausted, "no idle handles available").
				WithDetail("pool", p.key).
				WithDetail("capacity", p.cfg.MaxSize)
		}
		grow := p.cfg.ExpandBy
		if remaining := p.cfg.MaxSize - p.size(); grow > remaining {
			grow = remaining
		}
		p.buildLocked(grow)
		p.expansions++
		p.misses++
		outcome = "expand"
	} else {
		p.hits++
	}

	h := p.popIdleLocked()
	h.state = stateActive
	h.deadline = deadline
	p.active[h] = struct{}{}
	p.syncGauges()
	metrics.PoolAcquires.WithLabelValues(p.key, outcome).Inc()
	return h, nil
}

// releaseLocked returns a checked-out handle to the tail of the idle
// queue. Counters and metrics beyond the released total are the caller's
// responsibility.
func (p *pool[T]) releaseLocked(h *Handle[T]) {
	delete(p.active, h)
	if p.cfg.Reset != nil {
		p.cfg.Reset(h.value)
	}
	h.state = stateIdle
	h.deadline = time.Time{}
	p.idle = append(p.idle, h)
	p.released++
	p.syncGauges()
}

// reclaimLocked sweeps the active set, releasing handles whose deadline
// has passed or whose value is no longer alive. Returns the number swept.
func (p *pool[T]) reclaimLocked(now time.Time) int {
	var victims []*Handle[T]
	var reasons []string
	for h := range p.active {
		switch {
		case !h.deadline.IsZero() && now.After(h.deadline):
			victims = append(victims, h)
			reasons = append(reasons, "expired")
		case p.cfg.Alive != nil && !p.cfg.Alive(h.value):
			victims = append(victims, h)
			reasons = append(reasons, "dead")
		}
	}
	for i, h := range victims {
		p.releaseLocked(h)
		p.reclaimed++
		metrics.PoolReclaims.WithLabelValues(p.key, reasons[i]).Inc()
	}
	return len(victims)
}

// destroyAllLocked disposes of every handle in the pool and marks them
// destroyed so stale releases become no-ops.
func (p *pool[T]) destroyAllLocked() {
	for _, h := range p.idle {
		if p.cfg.Destroy != nil {
			p.cfg.Destroy(h.value)
		}
		h.state = stateDestroyed
	}
	for h := range p.active {
		if p.cfg.Destroy != nil {
			p.cfg.Destroy(h.value)
		}
		h.state = stateDestroyed
	}
	p.idle = nil
	p.active = make(map[*Handle[T]]struct{})
}

func (p *pool[T]) syncGauges() {
	metrics.PoolIdle.WithLabelValues(p.key).Set(float64(len(p.idle)))
	metrics.PoolActive.WithLabelValues(p.key).Set(float64(len(p.active)))
	metrics.PoolCapacity.WithLabelValues(p.key).Set(float64(p.cfg.MaxSize))
}

func (p *pool[T]) snapshot() Stats {
	s := Stats{
		Idle:       len(p.idle),
		Active:     len(p.active),
		Capacity:   p.cfg.MaxSize,
		Created:    p.created,
		Hits:       p.hits,
		Misses:     p.misses,
		Expansions: p.expansions,
		Exhausted:  p.exhausted,
		Released:   p.released,
		Reclaimed:  p.reclaimed,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
