package apm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// scope prefixes every instrumentation name so exported spans group by module path.
const scope = "github.com/fd1az/pair-arbitrage/"

type Tracer interface {
	StartSpanFromContext(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, Span)
}

type openTracer struct {
	tracer trace.Tracer
	attrs  []attribute.KeyValue
}

// NewTracer returns a tracer bound to the global provider. attrs are stamped
// on every span it starts, e.g. the pool pair or the engine's input asset.
func NewTracer(component string, attrs ...attribute.KeyValue) Tracer {
	return &openTracer{
		tracer: otel.Tracer(scope + component),
		attrs:  append([]attribute.KeyValue{attribute.String("component", component)}, attrs...),
	}
}

func (t *openTracer) StartSpanFromContext(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	opts = append(opts, trace.WithAttributes(t.attrs...))
	ctx, span := t.tracer.Start(ctx, name, opts...)
	return ctx, NewSpan(span)
}
