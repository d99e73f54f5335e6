package sequence

import (
	"context"
	"sync"
)

// Status is a unit's position in its lifecycle. Units move Pending →
// Running → Completed or Failed; terminal states never change.
type Status int

const (
	// StatusPending means the unit has not been stepped yet.
	StatusPending Status = iota
	// StatusRunning means the runner is stepping the unit once per pass.
	StatusRunning
	// StatusCompleted means the step reported done without an error.
	StatusCompleted
	// StatusFailed means the step returned an error or panicked.
	StatusFailed
)

// String returns the lowercase name used in logs and metric labels.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Step is one increment of a unit's work. The runner calls it once per
// pass until it reports done or returns an error. Steps must not block;
// work that spans time is expressed as state advanced across passes.
type Step func(ctx context.Context) (done bool, err error)

// Unit is one link in a chain of sequential work. Completing a unit
// enqueues its successor on the runner's next pass; failing one drops
// the rest of the chain.
type Unit struct {
	name string
	step Step
	next *Unit

	mu     sync.Mutex
	status Status
	err    error
	queued bool
}

// New creates a pending unit. The step runs once per pass after the unit
// is enqueued.
func New(name string, step Step) *Unit {
	return &Unit{
		name:   name,
		step:   step,
		status: StatusPending,
	}
}

// Then links next as this unit's successor and returns next, so chains
// read in execution order:
//
//	fadeIn := sequence.New("fade-in", fadeStep)
//	fadeIn.Then(sequence.New("hold", holdStep)).
//		Then(sequence.New("fade-out", fadeOutStep))
//
// Successors must be linked before the unit completes; a successor
// attached afterwards is never picked up.
func (u *Unit) Then(next *Unit) *Unit {
	u.next = next
	return next
}

// Name returns the unit's name.
func (u *Unit) Name() string { return u.name }

// Status returns the unit's current lifecycle state.
func (u *Unit) Status() Status {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.status
}

// Err returns the error that failed the unit, or nil.
func (u *Unit) Err() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.err
}

// markQueued flags the unit as owned by a runner. Reports false when the
// unit is not pending or is already queued.
func (u *Unit) markQueued() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.queued || u.status != StatusPending {
		return false
	}
	u.queued = true
	return true
}

// begin moves a freshly dequeued unit to Running.
func (u *Unit) begin() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.status == StatusPending {
		u.status = StatusRunning
	}
}

// finish records a terminal state and releases the queued flag.
func (u *Unit) finish(status Status, err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.status = status
	u.err = err
	u.queued = false
}
