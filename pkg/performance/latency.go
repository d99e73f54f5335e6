package performance

import (
	"sort"
	"sync"
	"time"
)

// maxLatencySamples bounds tracker memory; the oldest samples are
// discarded once the window is full.
const maxLatencySamples = 10000

// LatencySummary reports latency statistics over the retained window.
// Durations marshal as integer nanoseconds.
type LatencySummary struct {
	// Count is the number of samples summarized.
	Count int `json:"count"`
	// Min and Max bound the retained samples.
	Min time.Duration `json:"min"`
	Max time.Duration `json:"max"`
	// Avg is the arithmetic mean.
	Avg time.Duration `json:"avg"`
	// P50, P95 and P99 are percentile latencies.
	P50 time.Duration `json:"p50"`
	P95 time.Duration `json:"p95"`
	P99 time.Duration `json:"p99"`
}

// LatencyTracker records operation latencies and summarizes them as
// percentiles over a sliding window of the most recent samples. Safe for
// concurrent use.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []time.Duration
}

// NewLatencyTracker creates an empty tracker.
func NewLatencyTracker() *LatencyTracker {
	return &LatencyTracker{
		samples: make([]time.Duration, 0, maxLatencySamples),
	}
}

// Record adds one latency sample.
func (t *LatencyTracker) Record(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.samples = append(t.samples, d)
	if len(t.samples) > maxLatencySamples {
		t.samples = t.samples[len(t.samples)-maxLatencySamples:]
	}
}

// Count returns the number of retained samples.
func (t *LatencyTracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.samples)
}

// Summary computes statistics over the retained samples. An empty
// tracker yields the zero summary.
func (t *LatencyTracker) Summary() LatencySummary {
	t.mu.Lock()
	sorted := make([]time.Duration, len(t.samples))
	copy(sorted, t.samples)
	t.mu.Unlock()

	if len(sorted) == 0 {
		return LatencySummary{}
	}

	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	for _, d := range sorted {
		total += d
	}

	return LatencySummary{
		Count: len(sorted),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Avg:   total / time.Duration(len(sorted)),
		P50:   sorted[len(sorted)*50/100],
		P95:   sorted[len(sorted)*95/100],
		P99:   sorted[len(sorted)*99/100],
	}
}
