package driver_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajitpratap0/pulse/pkg/driver"
	"github.com/ajitpratap0/pulse/pkg/errors"
	"github.com/ajitpratap0/pulse/pkg/logger"
)

func TestAttachValidation(t *testing.T) {
	d := driver.New(driver.WithLogger(zap.NewNop()))

	err := d.Attach("", func(ctx context.Context) {})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	err = d.Attach("pools", nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	require.NoError(t, d.Attach("pools", func(ctx context.Context) {}))
}

func TestTickRunsComponentsInAttachOrder(t *testing.T) {
	d := driver.New(driver.WithLogger(zap.NewNop()))

	var order []string
	for _, name := range []string{"events", "pools", "sequences"} {
		name := name
		require.NoError(t, d.Attach(name, func(ctx context.Context) {
			order = append(order, name)
		}))
	}

	d.Tick(context.Background())
	d.Tick(context.Background())

	assert.Equal(t, []string{
		"events", "pools", "sequences",
		"events", "pools", "sequences",
	}, order)
	assert.Equal(t, uint64(2), d.Ticks())
}

func TestTickNumberReachesComponents(t *testing.T) {
	d := driver.New(driver.WithLogger(zap.NewNop()))

	var seen []uint64
	require.NoError(t, d.Attach("observer", func(ctx context.Context) {
		tick, ok := ctx.Value(logger.TickKey).(uint64)
		require.True(t, ok, "tick number missing from context")
		seen = append(seen, tick)
	}))

	d.Tick(context.Background())
	d.Tick(context.Background())
	d.Tick(context.Background())

	assert.Equal(t, []uint64{1, 2, 3}, seen)
}

func TestTickIsolatesPanickingComponent(t *testing.T) {
	d := driver.New(driver.WithLogger(zap.NewNop()))

	var after int
	require.NoError(t, d.Attach("faulty", func(ctx context.Context) {
		panic("component blew up")
	}))
	require.NoError(t, d.Attach("steady", func(ctx context.Context) {
		after++
	}))

	require.NotPanics(t, func() {
		d.Tick(context.Background())
		d.Tick(context.Background())
	})

	assert.Equal(t, 2, after, "components after a panic must still run")
	assert.Equal(t, uint64(2), d.Ticks())
}

func TestTickWithNoComponents(t *testing.T) {
	d := driver.New(driver.WithLogger(zap.NewNop()))

	d.Tick(context.Background())

	assert.Equal(t, uint64(1), d.Ticks())
}

func TestRunStopsAtTickBound(t *testing.T) {
	d := driver.New(
		driver.WithLogger(zap.NewNop()),
		driver.WithInterval(time.Millisecond),
		driver.WithMaxTicks(5),
	)

	var ran uint64
	require.NoError(t, d.Attach("counter", func(ctx context.Context) {
		ran++
	}))

	err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(5), d.Ticks())
	assert.Equal(t, uint64(5), ran)
}

func TestRunStopsOnCancellation(t *testing.T) {
	d := driver.New(
		driver.WithLogger(zap.NewNop()),
		driver.WithInterval(time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Attach("canceller", func(ctx context.Context) {
		if d.Ticks() >= 3 {
			cancel()
		}
	}))

	err := d.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.GreaterOrEqual(t, d.Ticks(), uint64(3))
}

func TestAttachDuringTicksIsSafe(t *testing.T) {
	d := driver.New(driver.WithLogger(zap.NewNop()))
	require.NoError(t, d.Attach("base", func(ctx context.Context) {}))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			d.Tick(context.Background())
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_ = d.Attach("extra", func(ctx context.Context) {})
		}
	}()
	wg.Wait()

	assert.Equal(t, uint64(100), d.Ticks())
}
