package instrumentation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/itsneelabh/gomind-genai/core"
	"github.com/itsneelabh/gomind-genai/genai"
	"github.com/itsneelabh/gomind-genai/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Instrumenter turns chat calls into correlated spans, metrics and log
// events. One Instrumenter is shared by all calls of a client and is safe for
// concurrent use; each call gets its own Operation.
//
// A call is driven as:
//
//	op, err := inst.OnRequest(ctx, req)
//	if err != nil {
//		return err
//	}
//	out, callErr := call(op.Context())
//	if callErr != nil {
//		_ = inst.OnError(op, callErr)
//		return callErr
//	}
//	_ = inst.OnResponse(op, resp)
type Instrumenter struct {
	spans    spanBuilder
	recorder *metricRecorder
	events   *eventEmitter
	now      func() time.Time
}

// New creates an Instrumenter. Without options it uses the OpenTelemetry
// globals installed by telemetry.Initialize.
func New(opts ...Option) (*Instrumenter, error) {
	o := options{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		loggerProvider: global.GetLoggerProvider(),
		logger:         telemetry.GetLogger().WithComponent("genai/instrumentation"),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	capture := telemetry.CaptureMessageContent()
	if o.captureContent != nil {
		capture = *o.captureContent
	}

	recorder, err := newMetricRecorder(o.meterProvider.Meter(ScopeName, metric.WithInstrumentationVersion(Version)))
	if err != nil {
		return nil, core.NewOperationError("instrumentation.New", core.KindConfig, err)
	}

	return &Instrumenter{
		spans:    spanBuilder{tracer: o.tracerProvider.Tracer(ScopeName, trace.WithInstrumentationVersion(Version))},
		recorder: recorder,
		events: &eventEmitter{
			logger:         o.loggerProvider.Logger(ScopeName, log.WithInstrumentationVersion(Version)),
			self:           o.logger,
			captureContent: capture,
			now:            o.now,
		},
		now:      o.now,
	}, nil
}

// OnRequest starts the operation for req: it opens the chat span as a child
// of any span in ctx and emits the request-side log events.
//
// A request without a model id is rejected with core.ErrRequiredFieldMissing
// and no telemetry is produced.
func (i *Instrumenter) OnRequest(ctx context.Context, req genai.Request) (*Operation, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	attrs, err := genai.MapRequest(req)
	if err != nil {
		return nil, err
	}

	op := newOperation(uuid.NewString(), req.Model)
	op.start = i.now()
	i.spans.start(ctx, op, attrs)
	i.events.emitRequest(op, req.Messages)
	return op, nil
}

// OnResponse ends op successfully: it records the response attributes,
// emits the choice event, records the token pair (when usage is present)
// and the duration, and closes the span.
func (i *Instrumenter) OnResponse(op *Operation, resp genai.Response) error {
	if err := checkRecording("instrumentation.OnResponse", op); err != nil {
		return err
	}

	op.recordAttributes(genai.MapResponse(resp)...)
	i.events.emitChoice(op, resp)

	op.end = i.now()
	if resp.Usage != nil {
		i.recorder.recordTokens(op.ctx, op.model, *resp.Usage)
	}
	i.recorder.recordDuration(op.ctx, op.model, op.end.Sub(op.start).Seconds(), "")
	i.spans.end(op, nil)
	return nil
}

// OnError ends op as failed with cause. The span gets status Error, the
// error event and error.type; the duration point carries error.type too.
// No token points are recorded.
func (i *Instrumenter) OnError(op *Operation, cause error) error {
	if err := checkRecording("instrumentation.OnError", op); err != nil {
		return err
	}
	if cause == nil {
		cause = core.ErrUpstreamFailure
	}

	errType := ErrorType(cause)
	op.recordAttributes(genai.AttrErrorType.String(errType))

	op.end = i.now()
	i.recorder.recordDuration(op.ctx, op.model, op.end.Sub(op.start).Seconds(), errType)
	i.spans.end(op, cause)
	return nil
}

func checkRecording(opName string, op *Operation) error {
	if op == nil {
		return core.NewOperationError(opName, core.KindUsage, core.ErrNilOperation)
	}
	switch op.state {
	case StateRecording:
		return nil
	case StateEnded:
		return &core.OperationError{Op: opName, Kind: core.KindUsage, OperationID: op.id, Err: core.ErrOperationEnded}
	default:
		return &core.OperationError{
			Op:          opName,
			Kind:        core.KindUsage,
			OperationID: op.id,
			Err:         fmt.Errorf("operation is %s: %w", op.state, core.ErrNilOperation),
		}
	}
}

// ErrorType returns the error.type value for err: the provider error code
// when err carries one, otherwise its error kind.
func ErrorType(err error) string {
	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) && coded.ErrorCode() != "" {
		return coded.ErrorCode()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return core.KindOf(err)
}
