package pool

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

type handleState uint8

const (
	stateIdle handleState = iota
	stateActive
	stateDestroyed
)

// Handle is a checked-out slot in a named pool. It carries the pooled
// value plus the bookkeeping the registry needs to take it back: the
// owning registry, the pool key, the lifecycle state and an optional
// reclamation deadline.
//
// Handles are created by the registry and live for the lifetime of the
// pool. Callers must not retain the value after releasing the handle.
type Handle[T any] struct {
	id       string
	key      string
	value    T
	owner    *Registry[T]
	state    handleState
	deadline time.Time
}

// ID returns the handle's unique identifier, stable across checkouts.
func (h *Handle[T]) ID() string { return h.id }

// Key returns the name of the pool the handle belongs to.
func (h *Handle[T]) Key() string { return h.key }

// Value returns the pooled value. Only valid between Acquire and Release.
func (h *Handle[T]) Value() T { return h.value }

// Deadline returns the reclamation deadline set by AcquireFor, or the
// zero time when the checkout has no TTL.
func (h *Handle[T]) Deadline() time.Time { return h.deadline }

// handleIDCounter provides atomic unique ID generation.
var handleIDCounter uint64

// idBufPool recycles the scratch buffers used to build handle IDs.
var idBufPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, 0, 64)
		return &b
	},
}

// nextHandleID builds a "key-N" identifier using a pooled buffer and an
// atomic counter. Safe for concurrent use.
func nextHandleID(key string) string {
	bp := idBufPool.Get().(*[]byte)
	buf := (*bp)[:0]

	buf = append(buf, key...)
	buf = append(buf, '-')
	buf = strconv.AppendUint(buf, atomic.AddUint64(&handleIDCounter, 1), 10)
	id := string(buf)

	*bp = buf
	idBufPool.Put(bp)
	return id
}
