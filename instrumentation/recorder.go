package instrumentation

import (
	"context"
	"fmt"

	"github.com/itsneelabh/gomind-genai/genai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// metricRecorder holds the two GenAI client histograms.
type metricRecorder struct {
	tokenUsage metric.Int64Histogram
	duration   metric.Float64Histogram
}

func newMetricRecorder(meter metric.Meter) (*metricRecorder, error) {
	tokenUsage, err := meter.Int64Histogram(genai.MetricTokenUsage,
		metric.WithUnit(genai.MetricTokenUsageUnit),
		metric.WithDescription(genai.MetricTokenUsageDescription),
		metric.WithExplicitBucketBoundaries(genai.TokenUsageBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s histogram: %w", genai.MetricTokenUsage, err)
	}

	duration, err := meter.Float64Histogram(genai.MetricOperationDuration,
		metric.WithUnit(genai.MetricOperationDurationUnit),
		metric.WithDescription(genai.MetricOperationDurationDescription),
		metric.WithExplicitBucketBoundaries(genai.OperationDurationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s histogram: %w", genai.MetricOperationDuration, err)
	}

	return &metricRecorder{tokenUsage: tokenUsage, duration: duration}, nil
}

// recordTokens records the input/completion pair for one response.
func (r *metricRecorder) recordTokens(ctx context.Context, model string, usage genai.Usage) {
	base := genai.MetricAttributes(model)

	r.tokenUsage.Record(ctx, int64(usage.InputTokens), metric.WithAttributeSet(
		attribute.NewSet(append(base, genai.TokenTypeAttribute(genai.TokenTypeInput))...)))
	r.tokenUsage.Record(ctx, int64(usage.OutputTokens), metric.WithAttributeSet(
		attribute.NewSet(append(base, genai.TokenTypeAttribute(genai.TokenTypeCompletion))...)))
}

// recordDuration records one operation duration in seconds. errorType is
// empty for a successful operation.
func (r *metricRecorder) recordDuration(ctx context.Context, model string, seconds float64, errorType string) {
	attrs := genai.MetricAttributes(model)
	if errorType != "" {
		attrs = append(attrs, genai.AttrErrorType.String(errorType))
	}
	r.duration.Record(ctx, seconds, metric.WithAttributeSet(attribute.NewSet(attrs...)))
}
