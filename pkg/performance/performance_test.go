package performance_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/pulse/pkg/performance"
)

func TestLatencyTrackerEmpty(t *testing.T) {
	lt := performance.NewLatencyTracker()

	assert.Equal(t, 0, lt.Count())
	assert.Equal(t, performance.LatencySummary{}, lt.Summary())
}

func TestLatencyTrackerSummary(t *testing.T) {
	lt := performance.NewLatencyTracker()
	// Record in descending order so the summary has to sort.
	for i := 100; i >= 1; i-- {
		lt.Record(time.Duration(i) * time.Millisecond)
	}

	s := lt.Summary()
	assert.Equal(t, 100, s.Count)
	assert.Equal(t, 1*time.Millisecond, s.Min)
	assert.Equal(t, 100*time.Millisecond, s.Max)
	assert.Equal(t, 50500*time.Microsecond, s.Avg)
	assert.Equal(t, 51*time.Millisecond, s.P50)
	assert.Equal(t, 96*time.Millisecond, s.P95)
	assert.Equal(t, 100*time.Millisecond, s.P99)
}

func TestLatencyTrackerSingleSample(t *testing.T) {
	lt := performance.NewLatencyTracker()
	lt.Record(7 * time.Millisecond)

	s := lt.Summary()
	assert.Equal(t, 1, s.Count)
	assert.Equal(t, 7*time.Millisecond, s.Min)
	assert.Equal(t, 7*time.Millisecond, s.Max)
	assert.Equal(t, 7*time.Millisecond, s.P50)
	assert.Equal(t, 7*time.Millisecond, s.P99)
}

func TestLatencyTrackerWindowTrimsOldest(t *testing.T) {
	lt := performance.NewLatencyTracker()
	// One slow outlier, then enough fast samples to push it out.
	lt.Record(time.Second)
	for i := 0; i < 10000; i++ {
		lt.Record(time.Millisecond)
	}

	s := lt.Summary()
	assert.Equal(t, 10000, s.Count)
	assert.Equal(t, time.Millisecond, s.Max, "outlier should have been trimmed")
}

func TestResourceMonitorUsage(t *testing.T) {
	m, err := performance.NewResourceMonitor()
	require.NoError(t, err)

	usage := m.Usage()
	assert.Greater(t, usage.GoroutineCount, 0)
	assert.NotZero(t, usage.MemoryRSS)
}
