// Trace context extraction for log correlation and turn linking.
//
// GetTraceContext captures the identity of the span in a context so it can
// be written into self-log fields, or kept by a caller and handed back on
// the next turn of a conversation:
//
//	tc := telemetry.GetTraceContext(op.Context())
//	logger.Warn("Skipping content block", map[string]interface{}{
//	    "trace_id": tc.TraceID,
//	    "span_id":  tc.SpanID,
//	})

package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TraceContext holds trace and span identifiers for log correlation.
type TraceContext struct {
	// TraceID is the 32-character hex trace identifier (e.g., "ad941a390c5c6d4d0f878eec73bdc478")
	TraceID string

	// SpanID is the 16-character hex span identifier (e.g., "84834e2917631e82")
	SpanID string

	// Sampled indicates whether this trace is being sampled (recorded)
	Sampled bool
}

// GetTraceContext extracts OpenTelemetry trace context from the context.
// Returns empty strings if no valid trace context exists.
func GetTraceContext(ctx context.Context) TraceContext {
	if ctx == nil {
		return TraceContext{}
	}

	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return TraceContext{}
	}

	return TraceContext{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
		Sampled: sc.IsSampled(),
	}
}

// HasTraceContext returns true if the context contains valid trace information.
func HasTraceContext(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	return trace.SpanFromContext(ctx).SpanContext().IsValid()
}

// IsValid reports whether tc names a span.
func (tc TraceContext) IsValid() bool {
	return tc.SpanContext().IsValid()
}

// SpanContext rebuilds the remote span context described by tc. The result
// is invalid when either identifier is missing or malformed.
func (tc TraceContext) SpanContext() trace.SpanContext {
	if tc.TraceID == "" || tc.SpanID == "" {
		return trace.SpanContext{}
	}
	tid, err := trace.TraceIDFromHex(tc.TraceID)
	if err != nil {
		return trace.SpanContext{}
	}
	sid, err := trace.SpanIDFromHex(tc.SpanID)
	if err != nil {
		return trace.SpanContext{}
	}

	var flags trace.TraceFlags
	if tc.Sampled {
		flags = trace.FlagsSampled
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: flags,
		Remote:     true,
	})
}

// LinkTo builds a span link to the span described by tc, tagged with
// link.type. ok is false when tc is not a valid span identity, in which case
// the caller should start its span without the link.
func LinkTo(tc TraceContext, linkType string, attrs ...attribute.KeyValue) (link trace.Link, ok bool) {
	sc := tc.SpanContext()
	if !sc.IsValid() {
		return trace.Link{}, false
	}
	linkAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
	linkAttrs = append(linkAttrs, attribute.String("link.type", linkType))
	linkAttrs = append(linkAttrs, attrs...)
	return trace.Link{SpanContext: sc, Attributes: linkAttrs}, true
}

// RecordSpanError records err on the span in ctx and marks it failed.
// Safe to call when no span exists in the context.
func RecordSpanError(ctx context.Context, err error, attrs ...attribute.KeyValue) {
	if ctx == nil || err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.RecordError(err, trace.WithAttributes(attrs...))
		span.SetStatus(codes.Error, err.Error())
	}
}
