package pool

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/pulse/pkg/errors"
	"github.com/ajitpratap0/pulse/pkg/logger"
	"github.com/ajitpratap0/pulse/pkg/metrics"
)

// Registry owns a set of named pools sharing one value type. A single
// mutex guards every pool, so cross-pool operations like StatsAll and
// Close observe a consistent view. Safe for concurrent use.
type Registry[T any] struct {
	mu    sync.Mutex
	pools map[string]*pool[T]
	log   *zap.Logger
}

// Option configures a registry at construction time.
type Option func(*options)

type options struct {
	log *zap.Logger
}

// WithLogger routes registry events to the given logger instead of the
// package-level one.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// NewRegistry creates an empty registry.
func NewRegistry[T any](opts ...Option) *Registry[T] {
	o := options{log: logger.Get()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Registry[T]{
		pools: make(map[string]*pool[T]),
		log:   o.log,
	}
}

// Create registers a new named pool and eagerly builds InitialSize values.
// Returns ErrorTypeDuplicateKey when the key is already taken.
func (r *Registry[T]) Create(key string, cfg Config[T]) error {
	if key == "" {
		return errors.New(errors.ErrorTypeValidation, "pool key cannot be empty")
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeValidation, "invalid pool config").
			WithDetail("pool", key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.pools[key]; exists {
		return errors.New(errors.ErrorTypeDuplicateKey, "pool already exists").
			WithDetail("pool", key)
	}
	r.pools[key] = newPool(key, cfg, r)

	r.log.Debug("pool created",
		zap.String("pool", key),
		zap.Int("initial_size", cfg.InitialSize),
		zap.Int("max_size", cfg.MaxSize),
		zap.Bool("auto_expand", cfg.AutoExpand))
	return nil
}

// Acquire checks out the oldest idle handle from the named pool,
// expanding the pool when allowed. Returns ErrorTypeUnknownPool for
// absent keys and ErrorTypePoolExhausted when nothing can be handed out.
func (r *Registry[T]) Acquire(key string) (*Handle[T], error) {
	return r.acquire(key, time.Time{})
}

// AcquireFor is Acquire with a deadline: if the handle is still checked
// out after ttl, the next Reclaim sweep releases it automatically.
func (r *Registry[T]) AcquireFor(key string, ttl time.Duration) (*Handle[T], error) {
	if ttl <= 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "ttl must be positive").
			WithDetail("pool", key)
	}
	return r.acquire(key, time.Now().Add(ttl))
}

func (r *Registry[T]) acquire(key string, deadline time.Time) (*Handle[T], error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pools[key]
	if !ok {
		metrics.PoolAcquires.WithLabelValues(key, "unknown_pool").Inc()
		return nil, errors.New(errors.ErrorTypeUnknownPool, "no such pool").
			WithDetail("pool", key)
	}
	return p.acquireLocked(deadline)
}

// Release returns a checked-out handle to its pool's idle queue, calling
// the pool's Reset first. Releasing an already-idle handle or one whose
// pool was cleared while it was out is a no-op returning nil. Only nil
// handles and handles from another registry fail, with
// ErrorTypeUnknownHandle.
func (r *Registry[T]) Release(h *Handle[T]) error {
	if h == nil {
		return errors.New(errors.ErrorTypeUnknownHandle, "nil handle")
	}
	if h.owner != r {
		metrics.PoolReleases.WithLabelValues(h.key, "unknown_handle").Inc()
		return errors.New(errors.ErrorTypeUnknownHandle, "handle belongs to another registry").
			WithDetail("handle", h.id).
			WithDetail("pool", h.key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch h.state {
	case stateIdle:
		metrics.PoolReleases.WithLabelValues(h.key, "duplicate").Inc()
		return nil
	case stateDestroyed:
		metrics.PoolReleases.WithLabelValues(h.key, "destroyed").Inc()
		return nil
	}

	// An active handle always has a live pool; Clear marks its handles
	// destroyed before removing the mapping.
	r.pools[h.key].releaseLocked(h)
	metrics.PoolReleases.WithLabelValues(h.key, "ok").Inc()
	return nil
}

// Clear destroys every handle in the named pool, idle and active alike,
// and removes the pool. Returns ErrorTypeUnknownPool for absent keys.
func (r *Registry[T]) Clear(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pools[key]
	if !ok {
		return errors.New(errors.ErrorTypeUnknownPool, "no such pool").
			WithDetail("pool", key)
	}
	r.clearLocked(p)
	return nil
}

func (r *Registry[T]) clearLocked(p *pool[T]) {
	idle, active := len(p.idle), len(p.active)
	p.destroyAllLocked()
	delete(r.pools, p.key)

	metrics.PoolIdle.DeleteLabelValues(p.key)
	metrics.PoolActive.DeleteLabelValues(p.key)
	metrics.PoolCapacity.DeleteLabelValues(p.key)

	r.log.Debug("pool cleared",
		zap.String("pool", p.key),
		zap.Int("idle_destroyed", idle),
		zap.Int("active_destroyed", active))
}

// Stats returns a snapshot of the named pool's counters.
func (r *Registry[T]) Stats(key string) (Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pools[key]
	if !ok {
		return Stats{}, errors.New(errors.ErrorTypeUnknownPool, "no such pool").
			WithDetail("pool", key)
	}
	return p.snapshot(), nil
}

// StatsAll returns a snapshot of every pool keyed by pool name.
func (r *Registry[T]) StatsAll() map[string]Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Stats, len(r.pools))
	for key, p := range r.pools {
		out[key] = p.snapshot()
	}
	return out
}

// Keys returns the names of all registered pools.
func (r *Registry[T]) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.pools))
	for key := range r.pools {
		keys = append(keys, key)
	}
	return keys
}

// Close clears every pool. Idempotent; the registry remains usable and
// new pools may be created afterwards.
func (r *Registry[T]) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.pools {
		r.clearLocked(p)
	}
}
