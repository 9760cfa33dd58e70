package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/itsneelabh/gomind-genai/core"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Signal names used in self-logs, circuit breakers and health output.
const (
	SignalTraces  = "traces"
	SignalMetrics = "metrics"
	SignalLogs    = "logs"
)

// signalStats counts what happened to one signal's export batches.
type signalStats struct {
	exported  atomic.Int64
	dropped   atomic.Int64
	errors    atomic.Int64
	lastError atomic.Value // string
}

func newSignalStats() *signalStats {
	s := &signalStats{}
	s.lastError.Store("")
	return s
}

func (s *signalStats) reset() {
	s.exported.Store(0)
	s.dropped.Store(0)
	s.errors.Store(0)
	s.lastError.Store("")
}

// exportGuard applies the ExporterUnavailable policy to one signal: a
// rejected export is logged, counted and dropped, and the error never
// reaches the SDK pipeline or the instrumented call. Repeated failures open
// the circuit so later batches are dropped without touching the backend.
type exportGuard struct {
	signal  string
	circuit *TelemetryCircuitBreaker
	stats   *signalStats
	logger  core.Logger
}

func newExportGuard(signal string, cfg CircuitConfig, logger core.Logger) *exportGuard {
	return &exportGuard{
		signal:  signal,
		circuit: NewTelemetryCircuitBreaker(signal, cfg, logger),
		stats:   newSignalStats(),
		logger:  logger,
	}
}

// run performs export for a batch of n items.
func (g *exportGuard) run(n int, export func() error) {
	if n == 0 {
		return
	}
	if !g.circuit.Allow() {
		g.stats.dropped.Add(int64(n))
		return
	}

	if err := export(); err != nil {
		g.circuit.RecordFailure()
		g.stats.errors.Add(1)
		g.stats.dropped.Add(int64(n))
		wrapped := fmt.Errorf("%s export: %v: %w", g.signal, err, core.ErrExporterUnavailable)
		g.stats.lastError.Store(wrapped.Error())
		g.logger.Error("Telemetry export failed, batch dropped", map[string]interface{}{
			"signal":        g.signal,
			"error":         wrapped.Error(),
			"dropped":       n,
			"circuit_state": g.circuit.State(),
			"impact":        "Telemetry for the affected operations is lost; instrumented calls are unaffected",
		})
		return
	}

	g.circuit.RecordSuccess()
	g.stats.exported.Add(int64(n))
}

// guardedSpanExporter wraps a span exporter with an exportGuard.
type guardedSpanExporter struct {
	next  sdktrace.SpanExporter
	guard *exportGuard
}

func (e *guardedSpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.guard.run(len(spans), func() error {
		return e.next.ExportSpans(ctx, spans)
	})
	return nil
}

func (e *guardedSpanExporter) Shutdown(ctx context.Context) error {
	return e.next.Shutdown(ctx)
}

// guardedMetricExporter wraps a push metric exporter with an exportGuard.
type guardedMetricExporter struct {
	next  sdkmetric.Exporter
	guard *exportGuard
}

func (e *guardedMetricExporter) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return e.next.Temporality(k)
}

func (e *guardedMetricExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return e.next.Aggregation(k)
}

func (e *guardedMetricExporter) Export(ctx context.Context, rm *metricdata.ResourceMetrics) error {
	e.guard.run(countMetrics(rm), func() error {
		return e.next.Export(ctx, rm)
	})
	return nil
}

func (e *guardedMetricExporter) ForceFlush(ctx context.Context) error {
	return e.next.ForceFlush(ctx)
}

func (e *guardedMetricExporter) Shutdown(ctx context.Context) error {
	return e.next.Shutdown(ctx)
}

func countMetrics(rm *metricdata.ResourceMetrics) int {
	if rm == nil {
		return 0
	}
	n := 0
	for _, sm := range rm.ScopeMetrics {
		n += len(sm.Metrics)
	}
	return n
}

// guardedLogExporter wraps a log record exporter with an exportGuard.
type guardedLogExporter struct {
	next  sdklog.Exporter
	guard *exportGuard
}

func (e *guardedLogExporter) Export(ctx context.Context, records []sdklog.Record) error {
	e.guard.run(len(records), func() error {
		return e.next.Export(ctx, records)
	})
	return nil
}

func (e *guardedLogExporter) ForceFlush(ctx context.Context) error {
	return e.next.ForceFlush(ctx)
}

func (e *guardedLogExporter) Shutdown(ctx context.Context) error {
	return e.next.Shutdown(ctx)
}

var (
	_ sdktrace.SpanExporter = (*guardedSpanExporter)(nil)
	_ sdkmetric.Exporter    = (*guardedMetricExporter)(nil)
	_ sdklog.Exporter       = (*guardedLogExporter)(nil)
)
