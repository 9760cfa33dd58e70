package instrumentation

import (
	"context"

	"github.com/itsneelabh/gomind-genai/genai"
	"github.com/itsneelabh/gomind-genai/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// LinkTypePreviousTurn tags the link from a chat span to the span of the
// call that produced the tool calls it answers.
const LinkTypePreviousTurn = "genai.previous_turn"

type previousTurnKey struct{}

// WithPreviousTurn marks ctx as continuing the exchange whose last call had
// the span identity tc. The next operation started from ctx links its span
// to that call. An invalid tc is ignored.
//
// Usage:
//
//	op, _ := inst.OnRequest(ctx, first)
//	...
//	prev := op.TraceContext()
//	op2, _ := inst.OnRequest(instrumentation.WithPreviousTurn(ctx, prev), second)
func WithPreviousTurn(ctx context.Context, tc telemetry.TraceContext) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, previousTurnKey{}, tc)
}

// PreviousTurn returns the trace context stored by WithPreviousTurn.
func PreviousTurn(ctx context.Context) (telemetry.TraceContext, bool) {
	if ctx == nil {
		return telemetry.TraceContext{}, false
	}
	tc, ok := ctx.Value(previousTurnKey{}).(telemetry.TraceContext)
	return tc, ok
}

// spanBuilder owns the span half of an Operation's lifecycle.
type spanBuilder struct {
	tracer trace.Tracer
}

// start opens the client span for op as a child of any span already in ctx
// and moves op to Recording.
func (b spanBuilder) start(ctx context.Context, op *Operation, attrs []attribute.KeyValue) {
	opts := []trace.SpanStartOption{
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithTimestamp(op.start),
		trace.WithAttributes(attrs...),
	}
	if tc, ok := PreviousTurn(ctx); ok {
		if link, ok := telemetry.LinkTo(tc, LinkTypePreviousTurn); ok {
			opts = append(opts, trace.WithLinks(link))
		}
	}

	// Recorded before the span exists so they are only set once, at start.
	op.recordAttributes(attrs...)
	op.ctx, op.span = b.tracer.Start(ctx, genai.SpanName(op.model), opts...)
	op.state = StateRecording
}

// end closes the span with success when cause is nil and failure otherwise.
// The caller has already checked op is Recording.
func (b spanBuilder) end(op *Operation, cause error) {
	if cause != nil {
		telemetry.RecordSpanError(op.ctx, cause)
	} else {
		op.span.SetStatus(codes.Unset, "")
	}
	op.span.End(trace.WithTimestamp(op.end))
	op.state = StateEnded
}
