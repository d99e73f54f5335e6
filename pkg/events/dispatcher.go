package events

import (
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ajitpratap0/pulse/pkg/errors"
	"github.com/ajitpratap0/pulse/pkg/logger"
	"github.com/ajitpratap0/pulse/pkg/metrics"
)

// Handler is one subscriber callback for events of type T. A non-nil
// return is recorded as a callback failure; it never aborts the dispatch
// pass or reaches the publisher.
type Handler[T any] func(T) error

// Subscription identifies one subscription for later removal. The zero
// value is inert: unsubscribing it is a no-op.
type Subscription struct {
	id  uint64
	typ reflect.Type
}

// Failure describes one recorded callback failure. It is handed to the
// dispatcher's failure handler, if any, after logging and counting.
type Failure struct {
	// EventType is the payload type name the failing handler subscribed to.
	EventType string
	// Priority is the failing subscription's priority band.
	Priority Priority
	// Subscription identifies the failing entry; hosts may unsubscribe it.
	Subscription Subscription
	// Err is the handler's returned error, or the recovered panic wrapped
	// as a callback_failure.
	Err error
}

// subscriber is one entry in a payload type's ordered list. Everything
// except the invoke closure is guarded by the dispatcher's mutex; invoke
// itself is immutable after construction.
type subscriber struct {
	id       uint64
	typ      reflect.Type
	priority Priority
	scope    any
	scoped   bool
	deferred bool
	removed  bool
	invoke   func(event any) error
}

// delivery is one queued deferred invocation.
type delivery struct {
	sub   *subscriber
	event any
}

// Dispatcher routes typed events to priority-ordered subscribers. One
// mutex guards the subscriber table, the scope index and the deferred
// queue, so mutations observe a consistent view. Safe for concurrent use.
//
// Handlers run outside the mutex: subscribing, unsubscribing and
// publishing from inside a handler never deadlocks.
type Dispatcher struct {
	mu     sync.Mutex
	subs   map[reflect.Type][]*subscriber
	scopes map[any]map[uint64]reflect.Type
	queue  []delivery
	nextID uint64

	log         *zap.Logger
	logFailures bool
	onFailure   func(Failure)

	// Updated atomically: deliveries run outside the mutex.
	published uint64
	delivered uint64
	failures  uint64
}

// Option configures a dispatcher at construction time.
type Option func(*options)

type options struct {
	log         *zap.Logger
	logFailures bool
	onFailure   func(Failure)
}

// WithLogger routes dispatcher events to the given logger instead of the
// package-level one.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithFailureHandler installs a hook invoked once per recorded callback
// failure, after the failure has been logged and counted.
func WithFailureHandler(fn func(Failure)) Option {
	return func(o *options) { o.onFailure = fn }
}

// WithoutFailureLogs suppresses the per-failure log entry. Failures are
// still counted and still reach the failure handler.
func WithoutFailureLogs() Option {
	return func(o *options) { o.logFailures = false }
}

// New creates an empty dispatcher.
func New(opts ...Option) *Dispatcher {
	o := options{log: logger.Get(), logFailures: true}
	for _, opt := range opts {
		opt(&o)
	}
	return &Dispatcher{
		subs:        make(map[reflect.Type][]*subscriber),
		scopes:      make(map[any]map[uint64]reflect.Type),
		log:         o.log,
		logFailures: o.logFailures,
		onFailure:   o.onFailure,
	}
}

// SubscribeOption configures one subscription.
type SubscribeOption func(*subscribeOptions)

type subscribeOptions struct {
	priority Priority
	scope    any
	scoped   bool
	deferred bool
}

// WithPriority places the subscription in the given priority band instead
// of PriorityNormal.
func WithPriority(p Priority) SubscribeOption {
	return func(o *subscribeOptions) { o.priority = p }
}

// WithScope registers the subscription under an owner identity so
// UnsubscribeScope can remove all of the owner's subscriptions in one
// call. The scope value must be comparable.
func WithScope(scope any) SubscribeOption {
	return func(o *subscribeOptions) {
		o.scope = scope
		o.scoped = true
	}
}

// Deferred queues the subscription's deliveries during Publish instead of
// invoking inline; they run on the next Flush.
func Deferred() SubscribeOption {
	return func(o *subscribeOptions) { o.deferred = true }
}

// Subscribe registers fn for events of type T. Returns
// ErrorTypeNilHandler when fn is nil. Subscribing the same function twice
// creates two independent subscriptions; each delivery then invokes it
// twice and each token must be unsubscribed separately.
func Subscribe[T any](d *Dispatcher, fn Handler[T], opts ...SubscribeOption) (Subscription, error) {
	if fn == nil {
		return Subscription{}, errors.New(errors.ErrorTypeNilHandler, "subscribe requires a handler")
	}

	o := subscribeOptions{priority: PriorityNormal}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.priority.valid() {
		return Subscription{}, errors.New(errors.ErrorTypeValidation, "priority out of range").
			WithDetail("priority", int(o.priority))
	}

	typ := reflect.TypeOf((*T)(nil)).Elem()
	sub := &subscriber{
		typ:      typ,
		priority: o.priority,
		scope:    o.scope,
		scoped:   o.scoped,
		deferred: o.deferred,
		invoke:   func(event any) error { return fn(event.(T)) },
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	sub.id = d.nextID

	// Insert after every entry of the same or an earlier band: ascending
	// ids keep equal-priority subscribers in subscription order.
	list := d.subs[typ]
	idx := sort.Search(len(list), func(i int) bool { return list[i].priority > o.priority })
	list = append(list, nil)
	copy(list[idx+1:], list[idx:])
	list[idx] = sub
	d.subs[typ] = list

	if o.scoped {
		ids := d.scopes[o.scope]
		if ids == nil {
			ids = make(map[uint64]reflect.Type)
			d.scopes[o.scope] = ids
		}
		ids[sub.id] = typ
	}

	metrics.SubscriptionsActive.WithLabelValues(typ.String()).Inc()
	return Subscription{id: sub.id, typ: typ}, nil
}

// Unsubscribe removes the subscription identified by sub. Removing a
// zero token, a token already removed, or one swept away by
// UnsubscribeScope is a no-op.
func (d *Dispatcher) Unsubscribe(sub Subscription) {
	if sub.typ == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeLocked(sub.typ, sub.id)
}

// UnsubscribeScope removes every subscription registered under scope,
// across all event types, and returns how many were removed. Safe to call
// repeatedly and after some of the scope's subscriptions were already
// removed individually.
func (d *Dispatcher) UnsubscribeScope(scope any) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for id, typ := range d.scopes[scope] {
		if d.removeLocked(typ, id) {
			removed++
		}
	}
	if removed > 0 {
		d.log.Debug("scope unsubscribed", zap.Int("removed", removed))
	}
	return removed
}

// removeLocked unlinks one subscription from its type list and from the
// scope index. Reports whether anything was removed.
func (d *Dispatcher) removeLocked(typ reflect.Type, id uint64) bool {
	list := d.subs[typ]
	for i, s := range list {
		if s.id != id {
			continue
		}

		copy(list[i:], list[i+1:])
		list[len(list)-1] = nil
		list = list[:len(list)-1]
		if len(list) == 0 {
			delete(d.subs, typ)
		} else {
			d.subs[typ] = list
		}

		// Queued deferred deliveries check this flag at flush time.
		s.removed = true

		if s.scoped {
			if ids := d.scopes[s.scope]; ids != nil {
				delete(ids, id)
				if len(ids) == 0 {
					delete(d.scopes, s.scope)
				}
			}
		}

		metrics.SubscriptionsActive.WithLabelValues(typ.String()).Dec()
		return true
	}
	return false
}

// Close removes every subscription and drops any queued deferred
// deliveries. Idempotent; the dispatcher remains usable afterwards.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for typ, list := range d.subs {
		for _, s := range list {
			s.removed = true
		}
		metrics.SubscriptionsActive.DeleteLabelValues(typ.String())
	}
	d.subs = make(map[reflect.Type][]*subscriber)
	d.scopes = make(map[any]map[uint64]reflect.Type)

	if n := len(d.queue); n > 0 {
		d.queue = nil
		metrics.DeferredPending.Sub(float64(n))
	}
}

// Stats is a point-in-time snapshot of the dispatcher's counters.
type Stats struct {
	// EventTypes is the number of payload types with live subscribers.
	EventTypes int `json:"event_types"`
	// Subscriptions is the total number of live subscriptions.
	Subscriptions int `json:"subscriptions"`
	// DeferredPending is the number of queued deliveries awaiting Flush.
	DeferredPending int `json:"deferred_pending"`
	// Published is the total number of Publish calls.
	Published uint64 `json:"published"`
	// Delivered is the total number of successful handler invocations.
	Delivered uint64 `json:"delivered"`
	// Failures is the total number of recorded callback failures.
	Failures uint64 `json:"failures"`
}

// Stats returns a snapshot of the dispatcher's counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	subs := 0
	for _, list := range d.subs {
		subs += len(list)
	}
	return Stats{
		EventTypes:      len(d.subs),
		Subscriptions:   subs,
		DeferredPending: len(d.queue),
		Published:       atomic.LoadUint64(&d.published),
		Delivered:       atomic.LoadUint64(&d.delivered),
		Failures:        atomic.LoadUint64(&d.failures),
	}
}
