package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
)

func TestObservabilityFramework(t *testing.T) {
	// Initialize observability with test config
	config := ObservabilityConfig{
		Tracing: TracingConfig{
			ServiceName:    "test-pulse",
			ServiceVersion: "1.0.0-test",
			Environment:    "test",
			SamplingRate:   1.0, // Sample everything for tests
			ExporterType:   "stdout",
			BatchTimeout:   1 * time.Second,
			MaxExportBatch: 100,
			MaxQueueSize:   1000,
		},
		Metrics: MetricsConfig{
			Namespace: "test_pulse",
			Subsystem: "test",
		},
		Logging: LoggingConfig{
			Level:       zapcore.DebugLevel,
			Format:      "json",
			Development: true,
		},
	}

	err := Initialize(config)
	if err != nil {
		t.Fatalf("Failed to initialize observability: %v", err)
	}

	// Test basic components are available
	if GetTracer() == nil {
		t.Error("Tracer should not be nil after initialization")
	}

	if GetMeter() == nil {
		t.Error("Meter should not be nil after initialization")
	}

	if GetLogger() == nil {
		t.Error("Logger should not be nil after initialization")
	}
}

func TestTickTracer(t *testing.T) {
	// Initialize with minimal config
	config := DefaultConfig()
	config.Logging.Level = zapcore.DebugLevel

	err := Initialize(config)
	if err != nil {
		t.Fatalf("Failed to initialize observability: %v", err)
	}

	tracer := NewTickTracer("workload")

	ctx := context.Background()

	testError := errors.New("test error")

	// Tick tracing passes errors through unchanged
	err = tracer.TraceTick(ctx, 7, func(ctx context.Context) error {
		time.Sleep(time.Millisecond)
		return nil
	})
	if err != nil {
		t.Errorf("TraceTick should not return error for successful pass: %v", err)
	}

	err = tracer.TraceTick(ctx, 8, func(ctx context.Context) error {
		return testError
	})
	if !errors.Is(err, testError) {
		t.Errorf("TraceTick should return the original error: got %v, want %v", err, testError)
	}

	// Batch pass tracing
	err = tracer.TracePass(ctx, "spawn_burst", 48, func(ctx context.Context) error {
		time.Sleep(time.Millisecond)
		return nil
	})
	if err != nil {
		t.Errorf("TracePass should not return error for successful pass: %v", err)
	}
}

func TestSpanAttributes(t *testing.T) {
	config := DefaultConfig()
	err := Initialize(config)
	if err != nil {
		t.Fatalf("Failed to initialize observability: %v", err)
	}

	ctx, span := NewSpan(context.Background(), "test.operation")
	span.SetAttribute("pool", "sparks")
	span.SetAttribute("count", 12)
	span.SetAttribute("tick", uint64(99))
	span.SetAttribute("ratio", 0.5)
	span.SetAttribute("active", true)
	span.AddEvent("reclaimed")
	span.End()

	// Trace fields resolve from the span context
	fields := TraceFields(ctx)
	if len(fields) != 2 {
		t.Errorf("Expected trace_id and span_id fields, got %d fields", len(fields))
	}
}

func TestShutdown(t *testing.T) {
	// Initialize observability
	config := DefaultConfig()
	err := Initialize(config)
	if err != nil {
		t.Fatalf("Failed to initialize observability: %v", err)
	}

	// Test graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = Shutdown(ctx)
	if err != nil {
		t.Errorf("Shutdown should not return error: %v", err)
	}
}
