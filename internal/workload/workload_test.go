package workload_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/pulse/internal/workload"
	"github.com/ajitpratap0/pulse/pkg/config"
	"github.com/ajitpratap0/pulse/pkg/driver"
	"github.com/ajitpratap0/pulse/pkg/testutil"
)

// testConfig shrinks the simulation so phases turn over within a few
// dozen ticks. EffectTTLTicks of 4 gives a warmup budget of 4 ticks and
// a storm budget of 8.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.New("workload-test")
	cfg.Pools.InitialSize = 16
	cfg.Pools.MaxSize = 64
	cfg.Pools.ExpandBy = 8
	cfg.Pools.AutoExpand = true
	cfg.Pools.ReclaimEvery = 1
	cfg.Workload.SpawnPerTick = 8
	cfg.Workload.BurstSize = 6
	cfg.Workload.EffectTTLTicks = 4
	cfg.Workload.EmitterScopes = 2
	cfg.Workload.ChainPhases = 3
	cfg.Workload.Seed = 7
	require.NoError(t, cfg.Validate())
	return cfg
}

func newHarness(t *testing.T, cfg *config.Config) (*workload.Workload, *driver.Driver) {
	t.Helper()
	w, err := workload.New(cfg, workload.WithLogger(testutil.TestLogger(t)))
	require.NoError(t, err)
	t.Cleanup(w.Close)

	drv := driver.New(driver.WithLogger(testutil.TestLogger(t)))
	require.NoError(t, w.Attach(drv))
	return w, drv
}

func tickN(ctx context.Context, drv *driver.Driver, n int) {
	for i := 0; i < n; i++ {
		drv.Tick(ctx)
	}
}

// accounted checks that every spawned effect is either still live,
// expired, or drained; nothing leaks and nothing double-counts.
func accounted(t *testing.T, s workload.Snapshot) {
	t.Helper()
	assert.Equal(t, s.Spawned, s.Expired+s.Released+uint64(s.Live),
		"spawned must equal expired+released+live (snapshot: %+v)", s)
}

func TestWorkloadPhaseTimeline(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	w, drv := newHarness(t, testConfig(t))

	// Warmup enters on the first tick's advance and runs its 4-tick
	// budget; storm is stepped for the first time on tick 6.
	tickN(ctx, drv, 6)
	assert.Equal(t, "storm", w.Phase())

	// Storm's budget is 8 ticks from its start at tick 6.
	tickN(ctx, drv, 9)
	assert.Equal(t, "cooldown", w.Phase())

	s := w.Snapshot()
	assert.NotZero(t, s.Spawned)
	assert.NotZero(t, s.Expired, "TTLs shorter than the run must have expired effects")
	accounted(t, s)
}

func TestWorkloadCompletesCycles(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	w, drv := newHarness(t, testConfig(t))

	var s workload.Snapshot
	for i := 0; i < 200; i++ {
		drv.Tick(ctx)
		if s = w.Snapshot(); s.Cycles >= 1 {
			break
		}
	}
	require.GreaterOrEqual(t, s.Cycles, uint64(1), "chain never completed a cycle")

	assert.NotZero(t, s.Released, "cooldown must drain explicitly")
	assert.Zero(t, s.Sequences.Failed)
	accounted(t, s)

	// The next cycle rebuilds what cooldown tore down: emitter scopes,
	// the deferred expiry observer and the trail pool.
	for i := 0; i < 20 && w.Phase() != "storm"; i++ {
		drv.Tick(ctx)
	}
	require.Equal(t, "storm", w.Phase())

	s = w.Snapshot()
	assert.Contains(t, s.Pools, "trails")
	assert.Contains(t, s.Pools, "sparks")
	// 3 static subscriptions + one per emitter scope + the expiry observer.
	assert.Equal(t, 3+2+1, s.Events.Subscriptions)
}

func TestWorkloadDrainOnlyChain(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	cfg := testConfig(t)
	cfg.Workload.ChainPhases = 2 // warmup straight into cooldown
	w, drv := newHarness(t, cfg)

	var s workload.Snapshot
	for i := 0; i < 200; i++ {
		drv.Tick(ctx)
		if s = w.Snapshot(); s.Cycles >= 1 {
			break
		}
	}
	require.GreaterOrEqual(t, s.Cycles, uint64(1))

	assert.Zero(t, s.Denied, "no bursts were fired, nothing should be denied")
	accounted(t, s)
}

func TestWorkloadDeterministicWithSeed(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	w1, drv1 := newHarness(t, testConfig(t))
	w2, drv2 := newHarness(t, testConfig(t))

	tickN(ctx, drv1, 30)
	tickN(ctx, drv2, 30)

	s1, s2 := w1.Snapshot(), w2.Snapshot()
	assert.Equal(t, s1.Spawned, s2.Spawned)
	assert.Equal(t, s1.Expired, s2.Expired)
	assert.Equal(t, s1.Denied, s2.Denied)
	assert.Equal(t, s1.Phase, s2.Phase)
	assert.Equal(t, s1.Cycles, s2.Cycles)
}

func TestWorkloadExpiryObserverMissesCooldownBatch(t *testing.T) {
	testutil.IntegrationTest(t)

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	w, drv := newHarness(t, testConfig(t))

	var s workload.Snapshot
	for i := 0; i < 400; i++ {
		drv.Tick(ctx)
		if s = w.Snapshot(); s.Cycles >= 2 {
			break
		}
	}
	require.GreaterOrEqual(t, s.Cycles, uint64(2))

	// The observer is dropped when cooldown starts, so expiries retired
	// during cooldown are published but never observed.
	assert.NotZero(t, s.Observed)
	assert.Less(t, s.Observed, s.Expired)
	accounted(t, s)
}

func TestWorkloadClose(t *testing.T) {
	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	w, drv := newHarness(t, testConfig(t))
	tickN(ctx, drv, 10)

	w.Close()

	s := w.Snapshot()
	assert.Empty(t, s.Pools)
	assert.Zero(t, s.Events.Subscriptions)
}
