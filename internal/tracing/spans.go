package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Span attribute keys.
const (
	AttrSessionID   = "session.id"
	AttrProcessPID  = "process.pid"
	AttrProcessPath = "process.path"
	AttrState       = "supervisor.state"
	AttrPayloadSize = "submit.bytes"

	AttrErrorMessage = "error.message"
)

// Span names.
const (
	SpanStart  = "supervisor.start"
	SpanSubmit = "supervisor.submit"
	SpanStop   = "supervisor.stop"
)

// Span event names.
const (
	EventSpawned        = "process.spawned"
	EventDirectivesSent = "directives.sent"
	EventKillScheduled  = "kill.scheduled"
	EventImplicitStart  = "implicit.start"
	EventErrorOccurred  = "error.occurred"
)

// Noop returns a tracer that records nothing.
func Noop() trace.Tracer {
	return noop.NewTracerProvider().Tracer("noop")
}

// Start opens an internal span. A nil tracer yields a no-op span.
func Start(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		tracer = Noop()
	}
	return tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// RecordError marks span as failed with err. It is a no-op for nil err.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent(EventErrorOccurred, trace.WithAttributes(
		attribute.String(AttrErrorMessage, err.Error()),
	))
}
