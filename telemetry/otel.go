package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/itsneelabh/gomind-genai/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// OTelProvider owns the tracer, meter and logger providers built from a
// Config, together with the guards that sit in front of their exporters.
type OTelProvider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	loggerProvider *sdklog.LoggerProvider

	guards       map[string]*exportGuard
	promRegistry *prometheus.Registry
}

// NewOTelProvider builds the three SDK providers described by cfg. Nothing
// is installed globally; see Initialize for that.
func NewOTelProvider(ctx context.Context, cfg Config, logger core.Logger) (*OTelProvider, error) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	p := &OTelProvider{
		guards: map[string]*exportGuard{
			SignalTraces:  newExportGuard(SignalTraces, cfg.CircuitBreaker, logger),
			SignalMetrics: newExportGuard(SignalMetrics, cfg.CircuitBreaker, logger),
			SignalLogs:    newExportGuard(SignalLogs, cfg.CircuitBreaker, logger),
		},
	}

	// Traces
	traceOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	}
	spanExporter, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create span exporter: %w", err)
	}
	if spanExporter != nil {
		traceOpts = append(traceOpts, sdktrace.WithBatcher(&guardedSpanExporter{
			next:  spanExporter,
			guard: p.guards[SignalTraces],
		}))
	}
	p.tracerProvider = sdktrace.NewTracerProvider(traceOpts...)

	// Metrics
	metricOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	reader, err := p.newMetricReader(ctx, cfg)
	if err != nil {
		_ = p.tracerProvider.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create metric reader: %w", err)
	}
	if reader != nil {
		metricOpts = append(metricOpts, sdkmetric.WithReader(reader))
	}
	p.meterProvider = sdkmetric.NewMeterProvider(metricOpts...)

	// Logs
	logOpts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	logExporter, err := newLogExporter(ctx, cfg)
	if err != nil {
		_ = p.tracerProvider.Shutdown(ctx)
		_ = p.meterProvider.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create log exporter: %w", err)
	}
	if logExporter != nil {
		logOpts = append(logOpts, sdklog.WithProcessor(sdklog.NewBatchProcessor(&guardedLogExporter{
			next:  logExporter,
			guard: p.guards[SignalLogs],
		})))
	}
	p.loggerProvider = sdklog.NewLoggerProvider(logOpts...)

	return p, nil
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}
	return resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
		resource.WithAttributes(attrs...),
	)
}

func output(cfg Config) io.Writer {
	if cfg.Output != nil {
		return cfg.Output
	}
	return os.Stdout
}

// hasScheme reports whether endpoint is a URL rather than host:port.
func hasScheme(endpoint string) bool {
	return strings.Contains(endpoint, "://")
}

func newSpanExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case ExporterNone:
		return nil, nil
	case ExporterStdout:
		return stdouttrace.New(stdouttrace.WithWriter(output(cfg)))
	}

	if cfg.Protocol == ProtocolGRPC {
		opts := []otlptracegrpc.Option{otlptracegrpc.WithHeaders(cfg.Headers)}
		if hasScheme(cfg.Endpoint) {
			opts = append(opts, otlptracegrpc.WithEndpointURL(cfg.Endpoint))
		} else {
			opts = append(opts, otlptracegrpc.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithHeaders(cfg.Headers)}
	if hasScheme(cfg.Endpoint) {
		opts = append(opts, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	} else {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return otlptracehttp.New(ctx, opts...)
}

func (p *OTelProvider) newMetricReader(ctx context.Context, cfg Config) (sdkmetric.Reader, error) {
	var exporter sdkmetric.Exporter
	var err error

	switch cfg.metricsExporter() {
	case ExporterNone:
		return nil, nil
	case ExporterPrometheus:
		p.promRegistry = prometheus.NewRegistry()
		return otelprom.New(otelprom.WithRegisterer(p.promRegistry))
	case ExporterStdout:
		exporter, err = stdoutmetric.New(stdoutmetric.WithWriter(output(cfg)))
	default:
		exporter, err = newOTLPMetricExporter(ctx, cfg)
	}
	if err != nil {
		return nil, err
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.MetricInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.MetricInterval))
	}
	return sdkmetric.NewPeriodicReader(&guardedMetricExporter{
		next:  exporter,
		guard: p.guards[SignalMetrics],
	}, readerOpts...), nil
}

func newOTLPMetricExporter(ctx context.Context, cfg Config) (sdkmetric.Exporter, error) {
	if cfg.Protocol == ProtocolGRPC {
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithHeaders(cfg.Headers)}
		if hasScheme(cfg.Endpoint) {
			opts = append(opts, otlpmetricgrpc.WithEndpointURL(cfg.Endpoint))
		} else {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)
	}

	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithHeaders(cfg.Headers)}
	if hasScheme(cfg.Endpoint) {
		opts = append(opts, otlpmetrichttp.WithEndpointURL(cfg.Endpoint))
	} else {
		opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	return otlpmetrichttp.New(ctx, opts...)
}

func newLogExporter(ctx context.Context, cfg Config) (sdklog.Exporter, error) {
	switch cfg.Exporter {
	case ExporterNone:
		return nil, nil
	case ExporterStdout:
		return stdoutlog.New(stdoutlog.WithWriter(output(cfg)))
	}

	if cfg.Protocol == ProtocolGRPC {
		opts := []otlploggrpc.Option{otlploggrpc.WithHeaders(cfg.Headers)}
		if hasScheme(cfg.Endpoint) {
			opts = append(opts, otlploggrpc.WithEndpointURL(cfg.Endpoint))
		} else {
			opts = append(opts, otlploggrpc.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlploggrpc.WithInsecure())
		}
		return otlploggrpc.New(ctx, opts...)
	}

	opts := []otlploghttp.Option{otlploghttp.WithHeaders(cfg.Headers)}
	if hasScheme(cfg.Endpoint) {
		opts = append(opts, otlploghttp.WithEndpointURL(cfg.Endpoint))
	} else {
		opts = append(opts, otlploghttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlploghttp.WithInsecure())
	}
	return otlploghttp.New(ctx, opts...)
}

// TracerProvider returns the SDK tracer provider.
func (p *OTelProvider) TracerProvider() *sdktrace.TracerProvider { return p.tracerProvider }

// MeterProvider returns the SDK meter provider.
func (p *OTelProvider) MeterProvider() *sdkmetric.MeterProvider { return p.meterProvider }

// LoggerProvider returns the SDK logger provider.
func (p *OTelProvider) LoggerProvider() *sdklog.LoggerProvider { return p.loggerProvider }

// MetricsHandler serves the Prometheus scrape endpoint. It answers 404 when
// metrics are not configured for Prometheus.
func (p *OTelProvider) MetricsHandler() http.Handler {
	if p.promRegistry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(p.promRegistry, promhttp.HandlerOpts{})
}

// ForceFlush pushes everything buffered in the three pipelines.
func (p *OTelProvider) ForceFlush(ctx context.Context) error {
	return errors.Join(
		p.tracerProvider.ForceFlush(ctx),
		p.meterProvider.ForceFlush(ctx),
		p.loggerProvider.ForceFlush(ctx),
	)
}

// Shutdown flushes and stops all three providers. Every provider is shut
// down even if an earlier one fails.
func (p *OTelProvider) Shutdown(ctx context.Context) error {
	return errors.Join(
		p.tracerProvider.Shutdown(ctx),
		p.meterProvider.Shutdown(ctx),
		p.loggerProvider.Shutdown(ctx),
	)
}
