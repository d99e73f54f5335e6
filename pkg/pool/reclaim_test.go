package pool_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/pulse/pkg/pool"
)

func TestReclaimExpiredHandles(t *testing.T) {
	reg := pool.NewRegistry[*Spark]()
	defer reg.Close()

	require.NoError(t, reg.Create("sparks", sparkConfig(2, 2)))

	timed, err := reg.AcquireFor("sparks", time.Millisecond)
	require.NoError(t, err)
	assert.False(t, timed.Deadline().IsZero())

	untimed, err := reg.Acquire("sparks")
	require.NoError(t, err)
	assert.True(t, untimed.Deadline().IsZero())

	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, 1, reg.Reclaim(), "only the timed checkout expires")

	stats, err := reg.Stats("sparks")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Idle)
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, uint64(1), stats.Reclaimed)

	// The sweep already took the handle back; an explicit release must
	// not grow the idle queue.
	require.NoError(t, reg.Release(timed))
	stats, err = reg.Stats("sparks")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Idle)

	require.NoError(t, reg.Release(untimed))
}

func TestReclaimDeadHandles(t *testing.T) {
	reg := pool.NewRegistry[*Spark]()
	defer reg.Close()

	cfg := sparkConfig(3, 3)
	cfg.Alive = func(s *Spark) bool { return !s.Done }
	require.NoError(t, reg.Create("sparks", cfg))

	a, err := reg.Acquire("sparks")
	require.NoError(t, err)
	b, err := reg.Acquire("sparks")
	require.NoError(t, err)
	c, err := reg.Acquire("sparks")
	require.NoError(t, err)

	a.Value().Done = true
	c.Value().Done = true

	assert.Equal(t, 2, reg.Reclaim())

	stats, err := reg.Stats("sparks")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Idle)
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, uint64(2), stats.Reclaimed)

	require.NoError(t, reg.Release(b))
}

func TestReclaimRunsReset(t *testing.T) {
	reg := pool.NewRegistry[*Spark]()
	defer reg.Close()

	resets := 0
	cfg := sparkConfig(1, 1)
	cfg.Reset = func(s *Spark) { resets++; s.Done = false }
	cfg.Alive = func(s *Spark) bool { return !s.Done }
	require.NoError(t, reg.Create("sparks", cfg))

	h, err := reg.Acquire("sparks")
	require.NoError(t, err)
	h.Value().Done = true

	require.Equal(t, 1, reg.Reclaim())
	assert.Equal(t, 1, resets)

	// The recycled value comes back clean.
	again, err := reg.Acquire("sparks")
	require.NoError(t, err)
	assert.False(t, again.Value().Done)
	require.NoError(t, reg.Release(again))
}

func TestReclaimNothingToDo(t *testing.T) {
	reg := pool.NewRegistry[*Spark]()
	defer reg.Close()

	cfg := sparkConfig(2, 2)
	cfg.Alive = func(s *Spark) bool { return !s.Done }
	require.NoError(t, reg.Create("sparks", cfg))

	h, err := reg.Acquire("sparks")
	require.NoError(t, err)

	assert.Equal(t, 0, reg.Reclaim())

	require.NoError(t, reg.Release(h))
}

func TestReclaimSpansPools(t *testing.T) {
	reg := pool.NewRegistry[*Spark]()
	defer reg.Close()

	cfg := sparkConfig(1, 1)
	cfg.Alive = func(s *Spark) bool { return !s.Done }
	require.NoError(t, reg.Create("sparks", cfg))
	require.NoError(t, reg.Create("embers", cfg))

	a, err := reg.Acquire("sparks")
	require.NoError(t, err)
	b, err := reg.Acquire("embers")
	require.NoError(t, err)

	a.Value().Done = true
	b.Value().Done = true

	assert.Equal(t, 2, reg.Reclaim())

	for _, key := range []string{"sparks", "embers"} {
		stats, err := reg.Stats(key)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Idle, key)
		assert.Equal(t, 0, stats.Active, key)
	}
}
