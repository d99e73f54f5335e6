package events

import (
	"reflect"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ajitpratap0/pulse/pkg/errors"
	"github.com/ajitpratap0/pulse/pkg/metrics"
)

// Publish delivers event to every subscriber of type T in priority order.
// The subscriber list is snapshotted before the first invocation, so
// handlers that subscribe or unsubscribe during dispatch affect later
// publishes only. Deferred subscribers are not invoked; their deliveries
// queue for the next Flush.
//
// Handler errors and panics are recorded and delivery continues; the
// publisher never observes them.
func Publish[T any](d *Dispatcher, event T) {
	typ := reflect.TypeOf((*T)(nil)).Elem()

	d.mu.Lock()
	list := d.subs[typ]
	var snapshot []*subscriber
	queued := 0
	for _, s := range list {
		if s.deferred {
			d.queue = append(d.queue, delivery{sub: s, event: event})
			queued++
			continue
		}
		snapshot = append(snapshot, s)
	}
	d.mu.Unlock()

	atomic.AddUint64(&d.published, 1)
	metrics.EventsPublished.WithLabelValues(typ.String()).Inc()
	if queued > 0 {
		metrics.DeferredPending.Add(float64(queued))
	}

	for _, s := range snapshot {
		d.deliver(s, event)
	}
}

// Flush runs the deferred deliveries queued before the call, in the order
// they were queued, and returns how many ran. Deliveries whose
// subscription was removed since being queued are dropped. Deliveries
// queued by handlers during the flush wait for the next one.
//
// Intended to run once per tick; see pkg/driver.
func (d *Dispatcher) Flush() int {
	d.mu.Lock()
	if len(d.queue) == 0 {
		d.mu.Unlock()
		return 0
	}
	pending := d.queue
	d.queue = nil

	live := pending[:0]
	for _, dl := range pending {
		if !dl.sub.removed {
			live = append(live, dl)
		}
	}
	d.mu.Unlock()

	metrics.DeferredPending.Sub(float64(len(pending)))

	for _, dl := range live {
		d.deliver(dl.sub, dl.event)
	}
	return len(live)
}

// deliver invokes one subscriber outside the dispatcher mutex, isolating
// errors and panics.
func (d *Dispatcher) deliver(s *subscriber, event any) {
	if err := d.safeInvoke(s, event); err != nil {
		d.recordFailure(s, err)
		return
	}
	atomic.AddUint64(&d.delivered, 1)
	metrics.EventsDelivered.WithLabelValues(s.typ.String(), s.priority.String()).Inc()
}

// safeInvoke runs the handler, converting a panic into a
// callback_failure error.
func (d *Dispatcher) safeInvoke(s *subscriber, event any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrorTypeCallbackFailure, "handler panicked: %v", r)
		}
	}()

	if herr := s.invoke(event); herr != nil {
		return errors.Wrap(herr, errors.ErrorTypeCallbackFailure, "handler returned error")
	}
	return nil
}

// recordFailure counts, logs and reports one callback failure. Exactly
// one record per failing invocation.
func (d *Dispatcher) recordFailure(s *subscriber, err error) {
	name := s.typ.String()

	atomic.AddUint64(&d.failures, 1)
	metrics.CallbackFailures.WithLabelValues(name, s.priority.String()).Inc()

	if d.logFailures {
		d.log.Error("subscriber callback failed",
			zap.String("event_type", name),
			zap.String("priority", s.priority.String()),
			zap.Uint64("subscription", s.id),
			zap.Error(err))
	}

	if d.onFailure != nil {
		d.onFailure(Failure{
			EventType:    name,
			Priority:     s.priority,
			Subscription: Subscription{id: s.id, typ: s.typ},
			Err:          err,
		})
	}
}
