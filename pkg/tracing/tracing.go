// Package tracing holds the process tracer. Until SetTracer is called every helper is a no-op.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer

// SetTracer installs t. nil switches tracing off again.
func SetTracer(t trace.Tracer) {
	tracer = t
}

// StartSpan opens a child span of whatever span ctx carries
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// EndSpan marks the span failed when err is set, then ends it
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func spanContext(ctx context.Context) (trace.SpanContext, bool) {
	if tracer == nil {
		return trace.SpanContext{}, false
	}
	sc := trace.SpanContextFromContext(ctx)
	return sc, sc.IsValid()
}

// GetTraceID is the hex trace id of the span in ctx, or ""
func GetTraceID(ctx context.Context) string {
	if sc, ok := spanContext(ctx); ok {
		return sc.TraceID().String()
	}
	return ""
}

// GetSpanID is the hex span id of the span in ctx, or ""
func GetSpanID(ctx context.Context) string {
	if sc, ok := spanContext(ctx); ok {
		return sc.SpanID().String()
	}
	return ""
}

// GetTraceParent renders the span in ctx as a W3C traceparent value, or ""
func GetTraceParent(ctx context.Context) string {
	if _, ok := spanContext(ctx); !ok {
		return ""
	}
	carrier := propagation.HeaderCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)
	return carrier.Get("traceparent")
}
