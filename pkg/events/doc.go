// Package events implements a synchronous, priority-ordered, typed
// publish/subscribe dispatcher with scoped bulk removal and an optional
// deferred delivery queue.
//
// Architecture
//
// Subscriber lists are keyed by the static type of the event payload, so
// each payload type has an independent, priority-ordered list. Generics
// keep subscription and publication type-safe without a wire format or a
// central event enum: any value type can be an event.
//
// Core Types:
//
//   - Dispatcher: Owns the subscriber table and serializes all mutations
//   - Handler[T]: One subscriber callback; a returned error is a recorded
//     callback failure, never a dispatch abort
//   - Priority: Invocation rank; lower runs earlier, ties run in
//     subscription order
//   - Subscription: Opaque token identifying one subscription for removal
//
// Dispatch
//
// Publish snapshots the payload type's subscriber list before invoking
// anything, so handlers may subscribe and unsubscribe freely during
// dispatch; mutations apply to later publishes only. Handler errors and
// panics are isolated: they are recorded exactly once and delivery
// continues with the remaining subscribers.
//
//	d := events.New()
//
//	events.Subscribe(d, func(e Damaged) error {
//		return applyDamage(e.Amount)
//	}, events.WithPriority(events.PriorityCritical))
//
//	events.Publish(d, Damaged{Amount: 10})
//
// Scopes
//
// Subscriptions registered under a scope are removed together when the
// owning object is torn down. The scope value is only an identity; the
// dispatcher never inspects it:
//
//	events.Subscribe(d, onSpawn, events.WithScope(emitter))
//	events.Subscribe(d, onExpire, events.WithScope(emitter))
//	...
//	d.UnsubscribeScope(emitter) // removes both
//
// Deferred delivery
//
// Subscriptions created with Deferred are not invoked inside Publish.
// Their deliveries queue up until the host calls Flush, typically once
// per tick, which runs the deliveries queued at call time in FIFO order.
// Deliveries whose subscription was removed before the flush are dropped.
package events
