package sequence_test

import (
	"context"
	"fmt"

	"github.com/ajitpratap0/pulse/pkg/sequence"
)

// Example chains three phases and drives them with a poll loop. Each
// pass advances every queued unit by one step; successors join the pass
// after their predecessor completes.
func Example() {
	r := sequence.NewRunner()

	phase := func(name string, steps int) *sequence.Unit {
		remaining := steps
		return sequence.New(name, func(context.Context) (bool, error) {
			remaining--
			fmt.Printf("%s: %d left\n", name, remaining)
			return remaining == 0, nil
		})
	}

	intro := phase("intro", 2)
	intro.Then(phase("battle", 1)).Then(phase("outro", 1))

	if err := r.Enqueue(intro); err != nil {
		fmt.Println(err)
		return
	}

	ctx := context.Background()
	for r.Active() > 0 {
		r.Advance(ctx)
	}

	// Output:
	// intro: 1 left
	// intro: 0 left
	// battle: 0 left
	// outro: 0 left
}

// Example_failure shows a chain stopping at the failed unit.
func Example_failure() {
	r := sequence.NewRunner()

	load := sequence.New("load", func(context.Context) (bool, error) {
		return false, fmt.Errorf("bundle not found")
	})
	load.Then(sequence.New("play", func(context.Context) (bool, error) {
		fmt.Println("never reached")
		return true, nil
	}))

	_ = r.Enqueue(load)
	r.Advance(context.Background())

	for _, f := range r.Failures() {
		fmt.Printf("failed unit: %s\n", f.Unit)
	}
	fmt.Println("active:", r.Active())

	// Output:
	// failed unit: load
	// active: 0
}
