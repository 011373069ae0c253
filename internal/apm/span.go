package apm

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/pair-arbitrage/internal/apperror"
)

// Span is the subset of trace.Span the services use.
type Span interface {
	SetAttributes(values ...attribute.KeyValue)
	AddEvent(name string, attrs ...attribute.KeyValue)
	NoticeError(err error)
	End()
	SpanContext() trace.SpanContext
}

type traceSpan struct {
	span trace.Span
}

func NewSpan(span trace.Span) Span {
	return &traceSpan{span: span}
}

func (t *traceSpan) SetAttributes(values ...attribute.KeyValue) {
	t.span.SetAttributes(values...)
}

func (t *traceSpan) AddEvent(name string, attrs ...attribute.KeyValue) {
	t.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// NoticeError records err and marks the span failed, tagging the error code when present.
func (t *traceSpan) NoticeError(err error) {
	if err == nil {
		return
	}
	t.span.RecordError(err)
	t.span.SetAttributes(attribute.String("error.code", string(apperror.GetCode(err))))
	t.span.SetStatus(codes.Error, err.Error())
}

func (t *traceSpan) End() {
	t.span.End()
}

func (t *traceSpan) SpanContext() trace.SpanContext {
	return t.span.SpanContext()
}
