package genai

import (
	"fmt"

	"github.com/itsneelabh/gomind-genai/core"
	"go.opentelemetry.io/otel/attribute"
)

// MapRequest maps the request onto the span attribute vocabulary.
// Only the model id is required; unset inference parameters are omitted
// rather than defaulted.
func MapRequest(req Request) ([]attribute.KeyValue, error) {
	if req.Model == "" {
		return nil, core.NewOperationError("genai.MapRequest", core.KindRequiredFieldMissing,
			fmt.Errorf("model id: %w", core.ErrRequiredFieldMissing))
	}

	attrs := make([]attribute.KeyValue, 0, 7)
	attrs = append(attrs, MetricAttributes(req.Model)...)

	inf := req.Inference
	if inf.MaxTokens != nil {
		attrs = append(attrs, AttrRequestMaxTokens.Int(*inf.MaxTokens))
	}
	if inf.Temperature != nil {
		attrs = append(attrs, AttrRequestTemperature.Float64(*inf.Temperature))
	}
	if inf.TopP != nil {
		attrs = append(attrs, AttrRequestTopP.Float64(*inf.TopP))
	}
	if len(inf.StopSequences) > 0 {
		attrs = append(attrs, AttrRequestStopSequences.StringSlice(inf.StopSequences))
	}
	return attrs, nil
}

// MapResponse maps the response summary onto the span attribute vocabulary.
func MapResponse(resp Response) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if len(resp.FinishReasons) > 0 {
		attrs = append(attrs, AttrResponseFinishReasons.StringSlice(resp.FinishReasons))
	}
	if resp.Usage != nil {
		attrs = append(attrs,
			AttrUsageInputTokens.Int(resp.Usage.InputTokens),
			AttrUsageOutputTokens.Int(resp.Usage.OutputTokens),
		)
	}
	return attrs
}

// MetricAttributes is the attribute subset shared by the span and both
// metric instruments.
func MetricAttributes(model string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrSystem.String(SystemAWSBedrock),
		AttrOperationName.String(OperationChat),
		AttrRequestModel.String(model),
	}
}

// TokenTypeAttribute tags a token usage point.
func TokenTypeAttribute(tokenType string) attribute.KeyValue {
	return AttrTokenType.String(tokenType)
}

// SpanName is the name of the span describing a chat operation on model.
func SpanName(model string) string {
	return OperationChat + " " + model
}
