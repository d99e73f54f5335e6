package pool_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/pulse/pkg/errors"
	"github.com/ajitpratap0/pulse/pkg/pool"
)

func sparkConfig(initial, max int) pool.Config[*Spark] {
	return pool.Config[*Spark]{
		New:         func() *Spark { return &Spark{} },
		Reset:       func(s *Spark) { s.Intensity = 0; s.Done = false },
		InitialSize: initial,
		MaxSize:     max,
	}
}

func TestCreateValidation(t *testing.T) {
	newSpark := func() *Spark { return &Spark{} }

	tests := []struct {
		name string
		key  string
		cfg  pool.Config[*Spark]
	}{
		{"empty key", "", sparkConfig(1, 1)},
		{"nil factory", "sparks", pool.Config[*Spark]{InitialSize: 1, MaxSize: 1}},
		{"negative initial size", "sparks", pool.Config[*Spark]{New: newSpark, InitialSize: -1, MaxSize: 4}},
		{"zero max size", "sparks", pool.Config[*Spark]{New: newSpark, InitialSize: 0, MaxSize: 0}},
		{"initial exceeds max", "sparks", pool.Config[*Spark]{New: newSpark, InitialSize: 8, MaxSize: 4}},
		{"auto-expand without increment", "sparks", pool.Config[*Spark]{New: newSpark, InitialSize: 1, MaxSize: 4, AutoExpand: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := pool.NewRegistry[*Spark]()
			defer reg.Close()

			err := reg.Create(tt.key, tt.cfg)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
		})
	}
}

func TestCreateDuplicateKey(t *testing.T) {
	reg := pool.NewRegistry[*Spark]()
	defer reg.Close()

	require.NoError(t, reg.Create("sparks", sparkConfig(1, 2)))

	err := reg.Create("sparks", sparkConfig(1, 2))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeDuplicateKey))
}

func TestCreateBuildsEagerly(t *testing.T) {
	reg := pool.NewRegistry[*Spark]()
	defer reg.Close()

	built := 0
	cfg := sparkConfig(5, 10)
	cfg.New = func() *Spark { built++; return &Spark{} }
	require.NoError(t, reg.Create("sparks", cfg))

	assert.Equal(t, 5, built)

	stats, err := reg.Stats("sparks")
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Idle)
	assert.Equal(t, 0, stats.Active)
	assert.Equal(t, uint64(5), stats.Created)
}

func TestAcquireUnknownPool(t *testing.T) {
	reg := pool.NewRegistry[*Spark]()
	defer reg.Close()

	_, err := reg.Acquire("missing")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnknownPool))
}

func TestAcquirePrefersReuse(t *testing.T) {
	reg := pool.NewRegistry[*Spark]()
	defer reg.Close()

	cfg := sparkConfig(2, 8)
	cfg.AutoExpand = true
	cfg.ExpandBy = 2
	require.NoError(t, reg.Create("sparks", cfg))

	h, err := reg.Acquire("sparks")
	require.NoError(t, err)
	assert.Equal(t, "sparks", h.Key())
	require.NoError(t, reg.Release(h))

	stats, err := reg.Stats("sparks")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(0), stats.Expansions)
	assert.Equal(t, uint64(2), stats.Created)
}

func TestAcquireExpandsWhenEmpty(t *testing.T) {
	reg := pool.NewRegistry[*Spark]()
	defer reg.Close()

	cfg := sparkConfig(1, 8)
	cfg.AutoExpand = true
	cfg.ExpandBy = 3
	require.NoError(t, reg.Create("sparks", cfg))

	first, err := reg.Acquire("sparks")
	require.NoError(t, err)
	second, err := reg.Acquire("sparks")
	require.NoError(t, err)

	stats, err := reg.Stats("sparks")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), stats.Created, "one initial plus one increment of three")
	assert.Equal(t, uint64(1), stats.Expansions)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 2, stats.Idle)

	require.NoError(t, reg.Release(first))
	require.NoError(t, reg.Release(second))
}

func TestExpansionClampedToMaxSize(t *testing.T) {
	reg := pool.NewRegistry[*Spark]()
	defer reg.Close()

	cfg := sparkConfig(1, 4)
	cfg.AutoExpand = true
	cfg.ExpandBy = 8
	require.NoError(t, reg.Create("sparks", cfg))

	held := make([]*pool.Handle[*Spark], 0, 4)
	for i := 0; i < 4; i++ {
		h, err := reg.Acquire("sparks")
		require.NoError(t, err)
		held = append(held, h)
	}

	_, err := reg.Acquire("sparks")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypePoolExhausted))
	assert.True(t, errors.IsRetryable(err))

	stats, err := reg.Stats("sparks")
	require.NoError(t, err)
	assert.Equal(t, uint64(4), stats.Created)
	assert.Equal(t, 4, stats.Active)
	assert.Equal(t, uint64(1), stats.Exhausted)

	for _, h := range held {
		require.NoError(t, reg.Release(h))
	}
}

func TestFixedPoolNeverGrows(t *testing.T) {
	reg := pool.NewRegistry[*Spark]()
	defer reg.Close()

	// MaxSize leaves headroom, but growth requires AutoExpand.
	require.NoError(t, reg.Create("embers", sparkConfig(2, 8)))

	a, err := reg.Acquire("embers")
	require.NoError(t, err)
	b, err := reg.Acquire("embers")
	require.NoError(t, err)

	_, err = reg.Acquire("embers")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypePoolExhausted))

	stats, err := reg.Stats("embers")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.Created)

	require.NoError(t, reg.Release(a))
	require.NoError(t, reg.Release(b))
}

func TestReleaseIdempotent(t *testing.T) {
	reg := pool.NewRegistry[*Spark]()
	defer reg.Close()

	require.NoError(t, reg.Create("sparks", sparkConfig(1, 1)))

	h, err := reg.Acquire("sparks")
	require.NoError(t, err)

	require.NoError(t, reg.Release(h))
	require.NoError(t, reg.Release(h))

	stats, err := reg.Stats("sparks")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Idle, "double release must not grow the idle queue")
	assert.Equal(t, uint64(1), stats.Released)
}

func TestReleaseResetsValue(t *testing.T) {
	reg := pool.NewRegistry[*Spark]()
	defer reg.Close()

	require.NoError(t, reg.Create("sparks", sparkConfig(1, 1)))

	h, err := reg.Acquire("sparks")
	require.NoError(t, err)
	h.Value().Intensity = 42
	require.NoError(t, reg.Release(h))

	again, err := reg.Acquire("sparks")
	require.NoError(t, err)
	assert.Equal(t, 0, again.Value().Intensity)
	require.NoError(t, reg.Release(again))
}

func TestReleaseRejectsNilAndForeignHandles(t *testing.T) {
	reg := pool.NewRegistry[*Spark]()
	defer reg.Close()
	other := pool.NewRegistry[*Spark]()
	defer other.Close()

	err := reg.Release(nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnknownHandle))

	require.NoError(t, other.Create("sparks", sparkConfig(1, 1)))
	h, err := other.Acquire("sparks")
	require.NoError(t, err)

	err = reg.Release(h)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnknownHandle))

	require.NoError(t, other.Release(h))
}

func TestClearDestroysAllHandles(t *testing.T) {
	reg := pool.NewRegistry[*Spark]()
	defer reg.Close()

	destroyed := 0
	cfg := sparkConfig(3, 3)
	cfg.Destroy = func(*Spark) { destroyed++ }
	require.NoError(t, reg.Create("sparks", cfg))

	h, err := reg.Acquire("sparks")
	require.NoError(t, err)

	require.NoError(t, reg.Clear("sparks"))
	assert.Equal(t, 3, destroyed, "two idle plus the active handle")

	_, err = reg.Acquire("sparks")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnknownPool))

	// The stale handle was destroyed with its pool; releasing it is
	// cleanup of already-cleaned state.
	require.NoError(t, reg.Release(h))
}

func TestClearUnknownPool(t *testing.T) {
	reg := pool.NewRegistry[*Spark]()
	defer reg.Close()

	err := reg.Clear("missing")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnknownPool))
}

func TestStatsUnknownPool(t *testing.T) {
	reg := pool.NewRegistry[*Spark]()
	defer reg.Close()

	_, err := reg.Stats("missing")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnknownPool))
}

func TestStatsAll(t *testing.T) {
	reg := pool.NewRegistry[*Spark]()
	defer reg.Close()

	require.NoError(t, reg.Create("sparks", sparkConfig(2, 4)))
	require.NoError(t, reg.Create("embers", sparkConfig(1, 2)))

	all := reg.StatsAll()
	require.Len(t, all, 2)
	assert.Equal(t, 2, all["sparks"].Idle)
	assert.Equal(t, 1, all["embers"].Idle)

	assert.ElementsMatch(t, []string{"sparks", "embers"}, reg.Keys())
}

func TestStatsHitRate(t *testing.T) {
	reg := pool.NewRegistry[*Spark]()
	defer reg.Close()

	cfg := sparkConfig(1, 4)
	cfg.AutoExpand = true
	cfg.ExpandBy = 1
	require.NoError(t, reg.Create("sparks", cfg))

	a, err := reg.Acquire("sparks")
	require.NoError(t, err)
	b, err := reg.Acquire("sparks")
	require.NoError(t, err)
	require.NoError(t, reg.Release(a))
	require.NoError(t, reg.Release(b))

	stats, err := reg.Stats("sparks")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
}

func TestHandleIDsUnique(t *testing.T) {
	reg := pool.NewRegistry[*Spark]()
	defer reg.Close()

	require.NoError(t, reg.Create("sparks", sparkConfig(64, 64)))

	seen := make(map[string]struct{}, 64)
	held := make([]*pool.Handle[*Spark], 0, 64)
	for i := 0; i < 64; i++ {
		h, err := reg.Acquire("sparks")
		require.NoError(t, err)
		_, dup := seen[h.ID()]
		assert.False(t, dup, "duplicate handle id %s", h.ID())
		seen[h.ID()] = struct{}{}
		held = append(held, h)
	}

	for _, h := range held {
		require.NoError(t, reg.Release(h))
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	reg := pool.NewRegistry[*Spark]()

	require.NoError(t, reg.Create("sparks", sparkConfig(2, 2)))

	reg.Close()
	reg.Close()

	assert.Empty(t, reg.StatsAll())

	// A closed registry accepts new pools.
	require.NoError(t, reg.Create("sparks", sparkConfig(1, 1)))
	reg.Close()
}

func TestConcurrentAcquireRelease(t *testing.T) {
	reg := pool.NewRegistry[*Spark]()
	defer reg.Close()

	cfg := sparkConfig(4, 32)
	cfg.AutoExpand = true
	cfg.ExpandBy = 4
	require.NoError(t, reg.Create("sparks", cfg))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h, err := reg.Acquire("sparks")
				if err != nil {
					// Exhaustion under contention is expected.
					continue
				}
				h.Value().Intensity++
				if err := reg.Release(h); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	stats, err := reg.Stats("sparks")
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Active)
	assert.LessOrEqual(t, int(stats.Created), 32)
	assert.Equal(t, int(stats.Created), stats.Idle)
}
