package telemetry

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/itsneelabh/gomind-genai/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
)

var (
	// globalRegistry holds the singleton Registry instance.
	// atomic.Value gives lock-free reads from the instrumentation hot path.
	globalRegistry atomic.Value // *Registry

	// initOnce ensures Initialize() can only succeed once.
	// Multiple calls to Initialize() will return the same result.
	initOnce sync.Once

	// Errors reported by the OpenTelemetry SDK through the global handler
	otelErrors atomic.Int64
)

// Registry ties the configured providers, their export guards and the
// self-logger together for the lifetime of the process.
type Registry struct {
	config   Config
	provider *OTelProvider
	logger   *TelemetryLogger

	startTime time.Time
	lastError atomic.Value // string - Last SDK error message for diagnostics
}

// Initialize builds the providers described by config and installs them as
// the OpenTelemetry globals (tracer, meter, logger provider, propagator and
// error handler). Instrumenters created without explicit providers use these
// globals.
//
// It is safe to call multiple times; only the first call takes effect. When
// config.Enabled is false nothing is installed and the globals stay no-op.
func Initialize(config Config) error {
	var initErr error
	initOnce.Do(func() {
		logger := NewTelemetryLogger(config.ServiceName)
		logger.applyConfig(config)

		if !config.Enabled {
			logger.Info("Telemetry disabled by configuration", map[string]interface{}{
				"service_name": config.ServiceName,
				"impact":       "Spans, metrics and GenAI events are not exported",
			})
			return
		}

		logger.Info("Telemetry initialization starting", map[string]interface{}{
			"service_name":     config.ServiceName,
			"exporter":         config.Exporter,
			"metrics_exporter": config.metricsExporter(),
			"protocol":         config.Protocol,
			"endpoint":         config.Endpoint,
			"sampling_rate":    config.SamplingRate,
			"circuit_enabled":  config.CircuitBreaker.Enabled,
			"capture_content":  config.CaptureMessageContent,
		})

		if err := config.Validate(); err != nil {
			initErr = err
			logger.Error("Telemetry initialization failed", map[string]interface{}{
				"error":  err.Error(),
				"action": "Fix the telemetry configuration",
				"impact": "No telemetry will be exported",
			})
			return
		}

		registry, err := newRegistry(config, logger)
		if err != nil {
			initErr = err
			logger.Error("Telemetry initialization failed", map[string]interface{}{
				"error":    err.Error(),
				"endpoint": config.Endpoint,
				"action":   "Check OTEL collector is running at endpoint",
				"impact":   "No telemetry will be exported",
			})
			return
		}

		otel.SetTracerProvider(registry.provider.TracerProvider())
		otel.SetMeterProvider(registry.provider.MeterProvider())
		global.SetLoggerProvider(registry.provider.LoggerProvider())
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		otel.SetErrorHandler(otel.ErrorHandlerFunc(registry.handleError))

		globalRegistry.Store(registry)

		logger.Info("Telemetry system initialized successfully", map[string]interface{}{
			"initialization_ms": time.Since(registry.startTime).Milliseconds(),
			"prometheus":        registry.provider.promRegistry != nil,
		})
	})
	return initErr
}

func newRegistry(config Config, logger *TelemetryLogger) (*Registry, error) {
	startTime := time.Now()

	provider, err := NewOTelProvider(context.Background(), config, logger.WithComponent("telemetry/export"))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTel provider: %w", err)
	}

	r := &Registry{
		config:    config,
		provider:  provider,
		logger:    logger,
		startTime: startTime,
	}
	r.lastError.Store("")
	return r, nil
}

// handleError receives errors the OpenTelemetry SDK cannot return to a
// caller, such as failures inside batch processors.
func (r *Registry) handleError(err error) {
	if err == nil {
		return
	}
	otelErrors.Add(1)
	r.lastError.Store(err.Error())
	r.logger.Error("OpenTelemetry SDK error", map[string]interface{}{
		"error":  err.Error(),
		"impact": "Telemetry may be incomplete",
	})
}

// Shutdown flushes and stops the providers installed by Initialize and
// clears the registry. Instruments already handed out keep working but their
// data is discarded.
func Shutdown(ctx context.Context) error {
	r := GetRegistry()
	if r == nil {
		return nil
	}

	r.logger.Info("Shutting down telemetry system", map[string]interface{}{
		"uptime_ms": time.Since(r.startTime).Milliseconds(),
	})

	// Clear first so no new instrumenter picks up a closing provider.
	globalRegistry.Store((*Registry)(nil))

	if err := r.provider.Shutdown(ctx); err != nil {
		r.logger.Error("Error during provider shutdown", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}

	r.logger.Info("Telemetry system shut down complete", nil)
	return nil
}

// ForceFlush pushes everything buffered by the global providers.
func ForceFlush(ctx context.Context) error {
	r := GetRegistry()
	if r == nil {
		return core.ErrNotInitialized
	}
	return r.provider.ForceFlush(ctx)
}

// GetRegistry returns the current registry, or nil before Initialize.
func GetRegistry() *Registry {
	r, _ := globalRegistry.Load().(*Registry)
	return r
}

// Provider returns the providers installed by Initialize, or nil.
func (r *Registry) Provider() *OTelProvider {
	if r == nil {
		return nil
	}
	return r.provider
}

// Config returns the configuration the registry was built from.
func (r *Registry) Config() Config {
	return r.config
}

// CaptureMessageContent reports whether GenAI log events should carry
// message content. The initialized configuration wins; before Initialize the
// OTEL_INSTRUMENTATION_GENAI_CAPTURE_MESSAGE_CONTENT variable decides.
func CaptureMessageContent() bool {
	if r := GetRegistry(); r != nil {
		return r.config.CaptureMessageContent
	}
	return parseBool(os.Getenv("OTEL_INSTRUMENTATION_GENAI_CAPTURE_MESSAGE_CONTENT"))
}
