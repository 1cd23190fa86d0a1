package observability

import (
	"context"
	"fmt"
	"time"

	"github.com/ajitpratap0/tabula/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of every tabula span.
const TracerName = "github.com/ajitpratap0/tabula"

// Tracer returns the tabula tracer from the current global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// Span wraps an OpenTelemetry span and batches its attributes until End.
type Span struct {
	span       trace.Span
	name       string
	startTime  time.Time
	attributes []attribute.KeyValue
}

// NewSpan starts a span named operationName.
func NewSpan(ctx context.Context, operationName string) (context.Context, *Span) {
	ctx, span := Tracer().Start(ctx, operationName)
	return ctx, &Span{
		span:      span,
		name:      operationName,
		startTime: time.Now(),
	}
}

// SetAttribute adds an attribute to the span
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	case []string:
		attr = attribute.StringSlice(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// AddEvent adds an event to the span
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Fail marks the span as failed with err.
func (s *Span) Fail(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// End flushes attributes, records the operation latency and ends the span.
func (s *Span) End() {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	metrics.OperationLatency.WithLabelValues(s.name).Observe(time.Since(s.startTime).Seconds())
	s.span.End()
}

// ComponentTracer names spans after a component, for example
// "catalog.import_sources".
type ComponentTracer struct {
	component string
}

// NewComponentTracer creates a tracer for component.
func NewComponentTracer(component string) *ComponentTracer {
	return &ComponentTracer{component: component}
}

// StartSpan starts a component span for operation.
func (ct *ComponentTracer) StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	ctx, span := NewSpan(ctx, ct.component+"."+operation)
	span.SetAttribute("tabula.component", ct.component)
	span.SetAttribute("tabula.operation", operation)
	return ctx, span
}

// Trace runs fn inside a component span and records its error.
func (ct *ComponentTracer) Trace(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	ctx, span := ct.StartSpan(ctx, operation)
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.Fail(err)
	} else {
		span.span.SetStatus(codes.Ok, "")
	}
	return err
}
