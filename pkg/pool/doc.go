// Package pool implements a type-safe registry of named, bounded object
// pools. It provides explicit lifecycle management for reusable resources:
// every handle is either idle (available for acquisition) or active
// (borrowed), and the registry can sweep active handles back automatically
// once they report themselves finished.
//
// Architecture
//
// The package uses Go generics to provide type-safe pooling for any payload
// type. Unlike sync.Pool, pools here are bounded, never drained by the
// garbage collector, and track their borrowed handles so leaked resources
// can be reclaimed by liveness sweeps or deadlines.
//
// Core Types:
//
//   - Registry[T]: Owns named pools of T and serializes all operations
//   - Config[T]: Per-pool factory, reset, destroy and liveness callbacks plus sizing
//   - Handle[T]: One borrowed resource with identity and owning pool
//   - Stats: Occupancy and outcome counters per pool
//
// Lifecycle
//
// Pools are registered once, eagerly building their initial handles:
//
//	reg := pool.NewRegistry[*Spark]()
//	err := reg.Create("sparks", pool.Config[*Spark]{
//		New:         func() *Spark { return &Spark{} },
//		Reset:       func(s *Spark) { s.Reset() },
//		Alive:       func(s *Spark) bool { return s.TTL > 0 },
//		InitialSize: 64,
//		MaxSize:     256,
//		ExpandBy:    16,
//		AutoExpand:  true,
//	})
//
// Acquisition reuses the oldest idle handle first and grows the pool in
// ExpandBy steps while AutoExpand permits it; once MaxSize handles are
// active the pool fails fast with a pool_exhausted error instead of
// allocating further:
//
//	h, err := reg.Acquire("sparks")
//	if err != nil {
//		// pool_exhausted or unknown_pool
//	}
//	defer reg.Release(h)
//
//	h.Value().Ignite()
//
// Reclamation
//
// Hosts drive reclamation explicitly, typically once per tick. A sweep
// releases every active handle whose liveness callback reports false and
// every handle acquired with AcquireFor whose deadline has passed:
//
//	reclaimed := reg.Reclaim()
//
// Release is idempotent: releasing a handle that is already idle, or one
// whose pool has been cleared, is a no-op. Handles from a different
// registry are rejected with unknown_handle.
package pool
