package pool

import (
	"time"

	"go.uber.org/zap"
)

// Reclaim sweeps the active set of every pool in one pass, releasing
// handles whose TTL deadline has passed and handles whose value fails the
// pool's Alive predicate. Swept handles go through the same Reset path as
// an explicit Release, so a caller releasing a handle after the sweep
// took it back is a harmless no-op.
//
// Returns the total number of handles reclaimed. Intended to run once per
// tick; see pkg/driver.
func (r *Registry[T]) Reclaim() int {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	total := 0
	for _, p := range r.pools {
		total += p.reclaimLocked(now)
	}
	if total > 0 {
		r.log.Debug("reclaimed handles", zap.Int("count", total))
	}
	return total
}
