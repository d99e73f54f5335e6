// Package sequence implements chained sequential work driven by an
// external tick. A Unit exposes a step function the runner polls once per
// pass; when a unit completes, its linked successor is enqueued for the
// next pass, and when one fails, the failure is recorded and the rest of
// the chain is dropped. This provides ordered multi-step workflows
// without blocking the driving loop.
//
// Basic usage:
//
//	r := sequence.NewRunner()
//
//	intro := sequence.New("fade-in", fadeStep)
//	intro.Then(sequence.New("dialogue", dialogueStep)).
//		Then(sequence.New("fade-out", fadeOutStep))
//
//	if err := r.Enqueue(intro); err != nil {
//		return err
//	}
//
//	// Host tick loop; see pkg/driver.
//	for r.Active() > 0 {
//		r.Advance(ctx)
//	}
package sequence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/pulse/pkg/errors"
	"github.com/ajitpratap0/pulse/pkg/logger"
	"github.com/ajitpratap0/pulse/pkg/metrics"
)

// Failure records one failed unit.
type Failure struct {
	// Unit is the failed unit's name.
	Unit string `json:"unit"`
	// Err is the step's error, wrapped as a sequence error.
	Err error `json:"-"`
	// At is when the failure was recorded.
	At time.Time `json:"at"`
}

// Runner polls enqueued units, one step per unit per pass. A single mutex
// guards the queue and the failure record; steps and hooks run outside
// it, so they may enqueue further units. Safe for concurrent use.
type Runner struct {
	mu       sync.Mutex
	queue    []*Unit
	failures []Failure

	log        *zap.Logger
	onComplete func(*Unit)
	onFail     func(*Unit, error)

	completed uint64
	failed    uint64
}

// Option configures a runner at construction time.
type Option func(*options)

type options struct {
	log        *zap.Logger
	onComplete func(*Unit)
	onFail     func(*Unit, error)
}

// WithLogger routes runner events to the given logger instead of the
// package-level one.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// OnComplete installs a hook invoked after a unit completes, before its
// successor is enqueued. The hook runs outside the runner's mutex.
func OnComplete(fn func(*Unit)) Option {
	return func(o *options) { o.onComplete = fn }
}

// OnFail installs a hook invoked after a unit fails. The hook runs
// outside the runner's mutex.
func OnFail(fn func(*Unit, error)) Option {
	return func(o *options) { o.onFail = fn }
}

// NewRunner creates an empty runner.
func NewRunner(opts ...Option) *Runner {
	o := options{log: logger.Get()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Runner{
		log:        o.log,
		onComplete: o.onComplete,
		onFail:     o.onFail,
	}
}

// Enqueue adds a pending unit to the next pass. Returns a validation
// error for nil units, units without a step, units already enqueued, and
// units that already reached a terminal state.
func (r *Runner) Enqueue(u *Unit) error {
	if u == nil {
		return errors.New(errors.ErrorTypeValidation, "cannot enqueue a nil unit")
	}
	if u.step == nil {
		return errors.New(errors.ErrorTypeValidation, "unit has no step").
			WithDetail("unit", u.name)
	}
	if !u.markQueued() {
		return errors.New(errors.ErrorTypeValidation, "unit is already enqueued or finished").
			WithDetail("unit", u.name).
			WithDetail("status", u.Status().String())
	}

	r.mu.Lock()
	r.queue = append(r.queue, u)
	r.mu.Unlock()

	r.log.Debug("unit enqueued", zap.String("unit", u.name))
	return nil
}

// Advance runs one poll pass: every unit enqueued before the call is
// stepped once. Units that complete enqueue their successor for the next
// pass; units that fail are recorded and their chain stops. Returns the
// number of units stepped.
//
// When ctx is cancelled mid-pass, the remaining units are left enqueued
// for a later pass.
func (r *Runner) Advance(ctx context.Context) int {
	r.mu.Lock()
	current := r.queue
	r.queue = nil
	r.mu.Unlock()

	stepped := 0
	var keep, spawned []*Unit

	for i, u := range current {
		if ctx.Err() != nil {
			keep = append(keep, current[i:]...)
			break
		}

		u.begin()
		done, err := r.stepSafely(ctx, u)
		stepped++

		switch {
		case err != nil:
			r.fail(u, err)
		case done:
			if next := r.complete(u); next != nil {
				spawned = append(spawned, next)
			}
		default:
			keep = append(keep, u)
		}
	}

	// Survivors lead the next pass, then successors spawned this pass,
	// then anything enqueued while the pass ran.
	r.mu.Lock()
	r.queue = append(append(keep, spawned...), r.queue...)
	r.mu.Unlock()

	return stepped
}

// stepSafely runs one step, converting a panic into a step error.
func (r *Runner) stepSafely(ctx context.Context, u *Unit) (done bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			done = false
			err = errors.Newf(errors.ErrorTypeSequence, "step panicked: %v", rec)
		}
	}()
	return u.step(ctx)
}

// complete finishes a unit and returns its successor when that successor
// is ready to enqueue.
func (r *Runner) complete(u *Unit) *Unit {
	u.finish(StatusCompleted, nil)

	r.mu.Lock()
	r.completed++
	r.mu.Unlock()
	metrics.SequenceUnits.WithLabelValues("completed").Inc()
	r.log.Debug("unit completed", zap.String("unit", u.name))

	if r.onComplete != nil {
		r.onComplete(u)
	}

	next := u.next
	if next == nil {
		return nil
	}
	if next.step == nil || !next.markQueued() {
		// A successor that already ran, or is queued elsewhere, would be
		// stepped twice; skip it rather than corrupt the queue.
		r.log.Warn("successor not enqueued",
			zap.String("unit", u.name),
			zap.String("successor", next.name),
			zap.String("successor_status", next.Status().String()))
		return nil
	}
	r.log.Debug("successor enqueued",
		zap.String("unit", u.name),
		zap.String("successor", next.name))
	return next
}

// fail finishes a unit with its wrapped error and records the failure.
// The successor is not enqueued.
func (r *Runner) fail(u *Unit, err error) {
	werr := errors.Wrap(err, errors.ErrorTypeSequence,
		fmt.Sprintf("unit %q failed", u.name))
	u.finish(StatusFailed, werr)

	r.mu.Lock()
	r.failed++
	r.failures = append(r.failures, Failure{Unit: u.name, Err: werr, At: time.Now()})
	r.mu.Unlock()
	metrics.SequenceUnits.WithLabelValues("failed").Inc()

	r.log.Warn("unit failed",
		zap.String("unit", u.name),
		zap.Error(err))

	if r.onFail != nil {
		r.onFail(u, werr)
	}
}

// Active returns the number of units waiting for the next pass.
func (r *Runner) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Failures returns a copy of the recorded failures, oldest first.
func (r *Runner) Failures() []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Failure, len(r.failures))
	copy(out, r.failures)
	return out
}

// Stats is a point-in-time snapshot of the runner's counters.
type Stats struct {
	// Active is the number of units waiting for the next pass.
	Active int `json:"active"`
	// Completed is the total number of units that completed.
	Completed uint64 `json:"completed"`
	// Failed is the total number of units that failed.
	Failed uint64 `json:"failed"`
}

// Stats returns a snapshot of the runner's counters.
func (r *Runner) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{
		Active:    len(r.queue),
		Completed: r.completed,
		Failed:    r.failed,
	}
}
