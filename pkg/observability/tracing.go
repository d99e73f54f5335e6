package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var spanDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "pulse",
		Subsystem: "observability",
		Name:      "span_duration_seconds",
		Help:      "Duration of traced operations in seconds",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	},
	[]string{"operation"},
)

// Span represents a tracing span with batched attribute recording
type Span struct {
	span       trace.Span
	name       string
	startTime  time.Time
	attributes []attribute.KeyValue
}

// NewSpan creates a new span under the global tracer
func NewSpan(ctx context.Context, operationName string) (context.Context, *Span) {
	ctx, span := tracer.Start(ctx, operationName)

	return ctx, &Span{
		span:      span,
		name:      operationName,
		startTime: time.Now(),
	}
}

// SetAttribute adds an attribute to the span (batched until End)
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case uint64:
		attr = attribute.Int64(key, int64(v))
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// AddEvent adds an event to the span
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetStatus sets the span status
func (s *Span) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

// End ends the span and records its duration
func (s *Span) End() {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}

	spanDuration.WithLabelValues(s.name).Observe(time.Since(s.startTime).Seconds())

	s.span.End()
}

// TickTracer provides tracing utilities for tick-driven components.
// Spans are named component.operation so traces from the pool registry,
// the dispatcher and the workload stay distinguishable.
type TickTracer struct {
	component string
}

// NewTickTracer creates a tracer for one component
func NewTickTracer(component string) *TickTracer {
	return &TickTracer{component: component}
}

// StartSpan starts a component-scoped span
func (tt *TickTracer) StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	ctx, span := NewSpan(ctx, fmt.Sprintf("%s.%s", tt.component, operation))

	span.SetAttribute("component", tt.component)
	span.SetAttribute("operation", operation)

	return ctx, span
}

// TraceTick traces one tick pass of the component
func (tt *TickTracer) TraceTick(ctx context.Context, tick uint64, fn func(ctx context.Context) error) error {
	ctx, span := tt.StartSpan(ctx, "tick")
	defer span.End()

	span.SetAttribute("tick", tick)

	err := fn(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttribute("error", true)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return err
}

// TracePass traces a batch pass such as a spawn burst or a dispatch flush
func (tt *TickTracer) TracePass(ctx context.Context, operation string, size int, fn func(ctx context.Context) error) error {
	ctx, span := tt.StartSpan(ctx, operation)
	defer span.End()

	span.SetAttribute("pass.size", size)

	err := fn(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttribute("error", true)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return err
}

// TraceFields returns zap fields carrying the trace identity from ctx,
// so log lines can be joined with exported spans.
func TraceFields(ctx context.Context) []zap.Field {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}

	return []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	}
}
