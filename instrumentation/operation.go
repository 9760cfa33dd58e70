package instrumentation

import (
	"context"
	"time"

	"github.com/itsneelabh/gomind-genai/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// State is the lifecycle position of an Operation.
type State int

const (
	StatePending State = iota
	StateRecording
	StateEnded
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRecording:
		return "recording"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Operation is the correlation context of one chat call. It is created by
// OnRequest and finished by exactly one of OnResponse or OnError.
//
// An Operation is driven by the goroutine that issued the call and is not
// safe for concurrent use. Operations never share state with each other.
type Operation struct {
	id    string
	model string
	state State

	ctx  context.Context
	span trace.Span

	// accumulated span attributes, last write wins per key
	attrs []attribute.KeyValue
	index map[attribute.Key]int

	// sequence number of the next log event and the timestamp given to
	// the last one; event timestamps strictly increase within an operation
	seq       int64
	lastEvent time.Time

	start time.Time
	end   time.Time
}

func newOperation(id, model string) *Operation {
	return &Operation{
		id:    id,
		model: model,
		state: StatePending,
		index: make(map[attribute.Key]int),
	}
}

// ID is the opaque identity of the operation.
func (op *Operation) ID() string { return op.id }

// Model is the requested model id.
func (op *Operation) Model() string { return op.model }

// State returns the lifecycle state.
func (op *Operation) State() State { return op.state }

// Context returns the caller's context with the operation span attached.
// Pass it to the wrapped call so transport spans nest under the chat span.
func (op *Operation) Context() context.Context { return op.ctx }

// SpanContext returns the identity shared by the span and every log record
// of the operation.
func (op *Operation) SpanContext() trace.SpanContext {
	if op.span == nil {
		return trace.SpanContext{}
	}
	return op.span.SpanContext()
}

// TraceContext returns the span identity in string form. Hand it to
// WithPreviousTurn when issuing the next call of a tool-calling exchange.
func (op *Operation) TraceContext() telemetry.TraceContext {
	return telemetry.GetTraceContext(op.ctx)
}

// StartTime returns when OnRequest started the operation.
func (op *Operation) StartTime() time.Time { return op.start }

// EndTime returns when the operation ended, or the zero time.
func (op *Operation) EndTime() time.Time { return op.end }

// Duration is EndTime minus StartTime, or zero while not ended.
func (op *Operation) Duration() time.Duration {
	if op.state != StateEnded {
		return 0
	}
	return op.end.Sub(op.start)
}

// Attributes returns a copy of the span attributes recorded so far, in
// first-write order.
func (op *Operation) Attributes() []attribute.KeyValue {
	out := make([]attribute.KeyValue, len(op.attrs))
	copy(out, op.attrs)
	return out
}

// recordAttributes merges attrs into the accumulated set and onto the span.
func (op *Operation) recordAttributes(attrs ...attribute.KeyValue) {
	if len(attrs) == 0 {
		return
	}
	for _, kv := range attrs {
		if i, ok := op.index[kv.Key]; ok {
			op.attrs[i] = kv
			continue
		}
		op.index[kv.Key] = len(op.attrs)
		op.attrs = append(op.attrs, kv)
	}
	if op.span != nil {
		op.span.SetAttributes(attrs...)
	}
}

func (op *Operation) nextSeq() int64 {
	n := op.seq
	op.seq++
	return n
}

// eventTime stamps the next log event. Records emitted at the same instant
// are spread one nanosecond apart by sequence, so ordering by timestamp
// restores emission order.
func (op *Operation) eventTime(now time.Time) time.Time {
	ts := now.Add(time.Duration(op.nextSeq()))
	if !ts.After(op.lastEvent) {
		ts = op.lastEvent.Add(time.Nanosecond)
	}
	op.lastEvent = ts
	return ts
}

// logFields identifies the operation in self-log records.
func (op *Operation) logFields() map[string]interface{} {
	tc := op.TraceContext()
	return map[string]interface{}{
		"operation_id": op.id,
		"model":        op.model,
		"trace_id":     tc.TraceID,
		"span_id":      tc.SpanID,
	}
}
