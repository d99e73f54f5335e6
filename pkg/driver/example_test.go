package driver_test

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/pulse/pkg/driver"
)

// Example wires a miniature frame loop: a spawner queues work each tick
// and a drainer consumes it in the same pass, in attach order.
func Example() {
	drv := driver.New(
		driver.WithLogger(zap.NewNop()),
		driver.WithInterval(time.Millisecond),
		driver.WithMaxTicks(3),
	)

	var pending int
	_ = drv.Attach("spawner", func(ctx context.Context) { pending += 2 })
	_ = drv.Attach("drainer", func(ctx context.Context) {
		fmt.Printf("tick %d: drained %d\n", drv.Ticks(), pending)
		pending = 0
	})

	if err := drv.Run(context.Background()); err != nil {
		fmt.Println("run failed:", err)
	}
	fmt.Println("total ticks:", drv.Ticks())

	// Output:
	// tick 1: drained 2
	// tick 2: drained 2
	// tick 3: drained 2
	// total ticks: 3
}
