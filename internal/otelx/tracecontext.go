package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	traceparentKey = "traceparent"
	tracestateKey  = "tracestate"
)

// TraceContextStrings serializes the current span context as W3C header
// values. The outbox stores them with each event so the publisher can
// resume the booking trace when the row is picked up later.
func TraceContextStrings(ctx context.Context) (traceparent, tracestate string) {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier[traceparentKey], carrier[tracestateKey]
}

// ContextWithTraceContext rebuilds a context from stored header values.
// Empty values return ctx unchanged rather than an empty remote span.
func ContextWithTraceContext(ctx context.Context, traceparent, tracestate string) context.Context {
	if traceparent == "" && tracestate == "" {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier{
		traceparentKey: traceparent,
		tracestateKey:  tracestate,
	})
}
