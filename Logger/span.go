package Logger

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "slack-thread-summarizer"

// SpanContext wraps one pipeline stage's span.
//
//	sc := Logger.StartSpan(ctx, "pipeline.fetch")
//	defer sc.End()
//	ctx = sc.Context()
type SpanContext struct {
	ctx  context.Context
	span trace.Span
}

func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) *SpanContext {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
	return &SpanContext{ctx: ctx, span: span}
}

func (sc *SpanContext) Context() context.Context {
	return sc.ctx
}

func (sc *SpanContext) SetAttributes(attrs ...attribute.KeyValue) {
	sc.span.SetAttributes(attrs...)
}

// Fail marks the span as failed with a short description.
func (sc *SpanContext) Fail(description string) {
	sc.span.SetStatus(codes.Error, description)
}

func (sc *SpanContext) End() {
	sc.span.End()
}
