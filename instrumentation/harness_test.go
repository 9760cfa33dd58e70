package instrumentation

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// logStore is an in-memory log exporter.
type logStore struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (s *logStore) Export(_ context.Context, records []sdklog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range records {
		s.records = append(s.records, records[i].Clone())
	}
	return nil
}

func (s *logStore) Shutdown(context.Context) error   { return nil }
func (s *logStore) ForceFlush(context.Context) error { return nil }

func (s *logStore) all() []sdklog.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sdklog.Record, len(s.records))
	copy(out, s.records)
	return out
}

// fakeClock returns a settable instant.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// logEntry is one self-log call.
type logEntry struct {
	level  string
	msg    string
	fields map[string]interface{}
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, fields: fields})
}

func (l *recordingLogger) Info(msg string, fields map[string]interface{})  { l.add("INFO", msg, fields) }
func (l *recordingLogger) Warn(msg string, fields map[string]interface{})  { l.add("WARN", msg, fields) }
func (l *recordingLogger) Error(msg string, fields map[string]interface{}) { l.add("ERROR", msg, fields) }
func (l *recordingLogger) Debug(msg string, fields map[string]interface{}) { l.add("DEBUG", msg, fields) }

func (l *recordingLogger) byLevel(level string) []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logEntry
	for _, e := range l.entries {
		if e.level == level {
			out = append(out, e)
		}
	}
	return out
}

type harness struct {
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
	logs   *logStore
	self   *recordingLogger
	clock  *fakeClock
	tp     *sdktrace.TracerProvider
	inst   *Instrumenter
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	h := &harness{
		spans:  tracetest.NewSpanRecorder(),
		reader: sdkmetric.NewManualReader(),
		logs:   &logStore{},
		self:   &recordingLogger{},
		clock:  &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
	}
	h.tp = sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(h.spans))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(h.reader))
	lp := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(h.logs)))
	t.Cleanup(func() {
		_ = h.tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
		_ = lp.Shutdown(context.Background())
	})

	base := []Option{
		WithTracerProvider(h.tp),
		WithMeterProvider(mp),
		WithLoggerProvider(lp),
		WithLogger(h.self),
		WithCaptureContent(true),
		WithClock(h.clock.Now),
	}
	inst, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.inst = inst
	return h
}

func (h *harness) endedSpans() []sdktrace.ReadOnlySpan {
	return h.spans.Ended()
}

func (h *harness) collect(t *testing.T) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := h.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func attrMap(kvs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[kv.Key] = kv.Value
	}
	return m
}

func recordAttrs(r sdklog.Record) map[string]string {
	m := make(map[string]string)
	r.WalkAttributes(func(kv log.KeyValue) bool {
		m[kv.Key] = kv.Value.AsString()
		return true
	})
	return m
}

// render writes a log value as compact JSON, keeping map order.
func render(v log.Value) string {
	var b strings.Builder
	renderTo(&b, v)
	return b.String()
}

func renderTo(b *strings.Builder, v log.Value) {
	switch v.Kind() {
	case log.KindMap:
		b.WriteByte('{')
		for i, kv := range v.AsMap() {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(kv.Key))
			b.WriteByte(':')
			renderTo(b, kv.Value)
		}
		b.WriteByte('}')
	case log.KindSlice:
		b.WriteByte('[')
		for i, item := range v.AsSlice() {
			if i > 0 {
				b.WriteByte(',')
			}
			renderTo(b, item)
		}
		b.WriteByte(']')
	case log.KindString:
		b.WriteString(strconv.Quote(v.AsString()))
	case log.KindInt64:
		b.WriteString(strconv.FormatInt(v.AsInt64(), 10))
	case log.KindBool:
		b.WriteString(strconv.FormatBool(v.AsBool()))
	case log.KindEmpty:
		b.WriteString("null")
	default:
		b.WriteString(v.String())
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
