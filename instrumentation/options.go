package instrumentation

import (
	"time"

	"github.com/itsneelabh/gomind-genai/core"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Option configures an Instrumenter.
type Option func(*options)

type options struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	loggerProvider log.LoggerProvider
	logger         core.Logger
	captureContent *bool
	now            func() time.Time
}

// WithTracerProvider sets the provider of the chat spans.
// Default: the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithMeterProvider sets the provider of the GenAI client histograms.
// Default: the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		if mp != nil {
			o.meterProvider = mp
		}
	}
}

// WithLoggerProvider sets the provider of the GenAI log events.
// Default: the global logger provider.
func WithLoggerProvider(lp log.LoggerProvider) Option {
	return func(o *options) {
		if lp != nil {
			o.loggerProvider = lp
		}
	}
}

// WithLogger sets the self-logger used for local diagnostics.
func WithLogger(logger core.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCaptureContent turns message content in log events on or off,
// overriding the telemetry configuration.
func WithCaptureContent(capture bool) Option {
	return func(o *options) {
		o.captureContent = &capture
	}
}

// WithClock replaces time.Now. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
