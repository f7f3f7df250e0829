package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the default tracer name for the dropforward package.
const TracerName = "github.com/lcoppola/dropforward"

// Span attribute keys for intake operations.
const (
	// SpanAttrOperation is the remote storage operation attribute.
	SpanAttrOperation = "dropbox.operation"

	// SpanAttrPath is the remote path attribute.
	SpanAttrPath = "dropbox.path"

	// SpanAttrEntry is the entry name attribute.
	SpanAttrEntry = "intake.entry"

	// SpanAttrOutcome is the per-entry outcome attribute.
	SpanAttrOutcome = "intake.outcome"

	// SpanAttrTrigger is the poll trigger attribute (schedule or webhook).
	SpanAttrTrigger = "intake.trigger"
)

// StartSpan starts a new span with the given name and attributes.
// The caller is responsible for ending the span with defer span.End().
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartRemoteSpan starts a span for a remote storage API operation.
func StartRemoteSpan(ctx context.Context, operation, path string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := make([]attribute.KeyValue, 0, len(attrs)+2)
	allAttrs = append(allAttrs,
		attribute.String(SpanAttrOperation, operation),
	)
	if path != "" {
		allAttrs = append(allAttrs, attribute.String(SpanAttrPath, path))
	}
	allAttrs = append(allAttrs, attrs...)

	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "dropbox."+operation,
		trace.WithAttributes(allAttrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// StartPollSpan starts a span for a full poll run.
func StartPollSpan(ctx context.Context, trigger string) (context.Context, trace.Span) {
	tracer := otel.GetTracerProvider().Tracer(TracerName)
	return tracer.Start(ctx, "intake.poll",
		trace.WithAttributes(attribute.String(SpanAttrTrigger, trigger)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// SetSpanError records an error on the span and sets the status to error.
func SetSpanError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanSuccess sets the span status to OK.
func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// GetTraceID returns the trace ID from the current span in context.
// Returns empty string if no valid span is present.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
