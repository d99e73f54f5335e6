// Package metrics provides performance tracking and observability for Pulse
// using Prometheus metrics. It offers collectors for pool occupancy, event
// dispatch outcomes, tick timing, and sequence progress.
//
// # Overview
//
// The metrics package provides:
//   - Prometheus-compatible metrics collection
//   - Pre-defined metrics for pool, dispatch and driver operations
//   - Throughput tracking utilities
//   - Thread-safe metric recording
//   - Automatic metric registration
//
// # Basic Usage
//
//	// Record an acquisition outcome
//	metrics.PoolAcquires.WithLabelValues("sparks", "reuse").Inc()
//
//	// Track tick latency
//	timer := metrics.NewTimer("tick")
//	driver.Tick(ctx)
//	metrics.TickDuration.Observe(timer.Stop().Seconds())
//
//	// Track dispatch throughput
//	tracker := metrics.NewThroughputTracker("dispatcher")
//	for _, ev := range events {
//	    publish(ev)
//	    tracker.Increment(1)
//	}
//	perSecond := tracker.GetAndReset()
//
// # Metric Types
//
// Counter: Monotonically increasing values (e.g., total events published)
// Gauge: Values that can go up or down (e.g., active handles)
// Histogram: Distribution of values (e.g., tick duration percentiles)
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PoolIdle tracks the number of idle handles per pool.
	PoolIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pulse_pool_idle_handles",
			Help: "Number of idle handles in the pool",
		},
		[]string{"pool"},
	)

	// PoolActive tracks the number of active (borrowed) handles per pool.
	PoolActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pulse_pool_active_handles",
			Help: "Number of active handles in the pool",
		},
		[]string{"pool"},
	)

	// PoolCapacity tracks the configured maximum size per pool.
	PoolCapacity = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pulse_pool_capacity",
			Help: "Configured maximum number of handles in the pool",
		},
		[]string{"pool"},
	)

	// PoolAcquires counts acquisition attempts by outcome.
	// Labels: pool, outcome (reuse/expand/exhausted/unknown_pool)
	//
	// Example:
	//	metrics.PoolAcquires.WithLabelValues("sparks", "reuse").Inc()
	PoolAcquires = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_pool_acquires_total",
			Help: "Total number of acquisition attempts",
		},
		[]string{"pool", "outcome"},
	)

	// PoolReleases counts release attempts by outcome.
	// Labels: pool, outcome (ok/duplicate/unknown_handle)
	PoolReleases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_pool_releases_total",
			Help: "Total number of release attempts",
		},
		[]string{"pool", "outcome"},
	)

	// PoolReclaims counts handles returned by reclamation sweeps.
	// Labels: pool, reason (dead/expired)
	PoolReclaims = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_pool_reclaims_total",
			Help: "Total number of handles reclaimed by sweeps",
		},
		[]string{"pool", "reason"},
	)

	// EventsPublished counts published events per payload type.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_events_published_total",
			Help: "Total number of events published",
		},
		[]string{"event_type"},
	)

	// EventsDelivered counts handler invocations per payload type and priority.
	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_events_delivered_total",
			Help: "Total number of handler deliveries",
		},
		[]string{"event_type", "priority"},
	)

	// CallbackFailures counts handler errors and recovered panics.
	CallbackFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_callback_failures_total",
			Help: "Total number of subscriber callback failures",
		},
		[]string{"event_type", "priority"},
	)

	// SubscriptionsActive tracks live subscriptions per payload type.
	SubscriptionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pulse_subscriptions_active",
			Help: "Number of active subscriptions",
		},
		[]string{"event_type"},
	)

	// DeferredPending tracks queued deferred deliveries awaiting a flush.
	DeferredPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulse_deferred_pending",
			Help: "Number of deferred deliveries awaiting flush",
		},
	)

	// TickDuration tracks the distribution of driver tick durations in seconds.
	// The buckets are optimized for sub-millisecond tick tracking.
	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "pulse_tick_duration_seconds",
			Help: "Duration of driver ticks in seconds",
			Buckets: []float64{
				0.000001, // 1μs - Empty ticks
				0.00001,  // 10μs - Light ticks
				0.0001,   // 100μs - Typical ticks
				0.001,    // 1ms - Busy ticks
				0.01,     // 10ms - Heavy ticks
				0.1,      // 100ms - Overloaded ticks
				1,        // 1s - Stalled ticks
			},
		},
	)

	// TicksTotal counts completed driver ticks.
	TicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_ticks_total",
			Help: "Total number of completed driver ticks",
		},
	)

	// SequenceUnits counts sequential units by terminal status.
	// Labels: status (completed/failed)
	SequenceUnits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_sequence_units_total",
			Help: "Total number of sequential units reaching a terminal status",
		},
		[]string{"status"},
	)

	// Throughput tracks operations per second per component.
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pulse_throughput_ops_per_second",
			Help: "Current throughput in operations per second",
		},
		[]string{"component"},
	)
)

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
// The name parameter is for identification in logs or metrics.
//
// Example:
//
//	timer := metrics.NewTimer("reclaim_sweep")
//	reclaimed := registry.Reclaim()
//	logger.Info("sweep done", zap.Duration("duration", timer.Stop()))
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Stop stops the timer and returns the elapsed duration since creation.
// The timer can be stopped multiple times, each returning the total
// elapsed time since creation.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks operations per second over time windows.
// It automatically updates the Throughput gauge when queried.
// Thread-safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64     // Operations since last reset
	lastReset time.Time // Time of last reset
	component string    // Component name used as the metric label
}

// NewThroughputTracker creates a new throughput tracker for a component.
//
// Example:
//
//	tracker := metrics.NewThroughputTracker("workload")
//	for range spawned {
//	    tracker.Increment(1)
//	}
//	perSecond := tracker.GetAndReset()
func NewThroughputTracker(component string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		component: component,
	}
}

// Increment adds n to the operation count. Safe for concurrent use.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset calculates the current throughput (operations/second),
// updates the Prometheus gauge, resets the counter, and returns
// the calculated throughput. Safe for concurrent use.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	// Reset for next period
	t.count = 0
	t.lastReset = time.Now()

	Throughput.WithLabelValues(t.component).Set(throughput)

	return throughput
}
