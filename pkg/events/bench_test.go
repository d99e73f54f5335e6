package events_test

import (
	"testing"

	"github.com/ajitpratap0/pulse/pkg/events"
)

func BenchmarkPublish(b *testing.B) {
	d := events.New()
	defer d.Close()

	for i := 0; i < 8; i++ {
		_, err := events.Subscribe(d, func(Damaged) error { return nil })
		if err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		events.Publish(d, Damaged{Amount: i})
	}
}

func BenchmarkPublishAcrossPriorities(b *testing.B) {
	d := events.New()
	defer d.Close()

	priorities := []events.Priority{
		events.PriorityCritical,
		events.PriorityHigh,
		events.PriorityNormal,
		events.PriorityLow,
		events.PriorityBackground,
	}
	for _, p := range priorities {
		_, err := events.Subscribe(d, func(Damaged) error { return nil },
			events.WithPriority(p))
		if err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		events.Publish(d, Damaged{Amount: i})
	}
}

func BenchmarkDeferredPublishFlush(b *testing.B) {
	d := events.New()
	defer d.Close()

	_, err := events.Subscribe(d, func(Damaged) error { return nil },
		events.Deferred())
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		events.Publish(d, Damaged{Amount: i})
		d.Flush()
	}
}

func BenchmarkSubscribeUnsubscribe(b *testing.B) {
	d := events.New()
	defer d.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sub, err := events.Subscribe(d, func(Damaged) error { return nil })
		if err != nil {
			b.Fatal(err)
		}
		d.Unsubscribe(sub)
	}
}
