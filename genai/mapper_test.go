package genai

import (
	"errors"
	"testing"

	"github.com/itsneelabh/gomind-genai/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func attrMap(attrs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestMapRequestWithoutOptions(t *testing.T) {
	attrs, err := MapRequest(Request{
		Model:    "amazon.titan-text-lite-v1",
		Messages: []Message{{Role: RoleUser, Content: []ContentBlock{TextBlock("Say this is a test")}}},
	})
	require.NoError(t, err)

	m := attrMap(attrs)
	assert.Len(t, m, 3)
	assert.Equal(t, "aws.bedrock", m[AttrSystem].AsString())
	assert.Equal(t, "chat", m[AttrOperationName].AsString())
	assert.Equal(t, "amazon.titan-text-lite-v1", m[AttrRequestModel].AsString())

	for _, key := range []attribute.Key{AttrRequestMaxTokens, AttrRequestTemperature, AttrRequestTopP, AttrRequestStopSequences} {
		_, ok := m[key]
		assert.False(t, ok, "unexpected %s", key)
	}
}

func TestMapRequestWithOptions(t *testing.T) {
	attrs, err := MapRequest(Request{
		Model: "amazon.titan-text-lite-v1",
		Inference: InferenceConfig{
			MaxTokens:     IntPtr(10),
			Temperature:   Float64Ptr(float64(float32(0.8))),
			TopP:          Float64Ptr(1),
			StopSequences: []string{"|"},
		},
	})
	require.NoError(t, err)

	m := attrMap(attrs)
	assert.Equal(t, int64(10), m[AttrRequestMaxTokens].AsInt64())
	assert.InDelta(t, 0.8, m[AttrRequestTemperature].AsFloat64(), 1e-4)
	assert.Equal(t, 1.0, m[AttrRequestTopP].AsFloat64())
	assert.Equal(t, []string{"|"}, m[AttrRequestStopSequences].AsStringSlice())
}

func TestMapRequestZeroIsNotUnset(t *testing.T) {
	attrs, err := MapRequest(Request{
		Model:     "m",
		Inference: InferenceConfig{TopP: Float64Ptr(0), Temperature: Float64Ptr(0)},
	})
	require.NoError(t, err)

	m := attrMap(attrs)
	topP, ok := m[AttrRequestTopP]
	require.True(t, ok)
	assert.Equal(t, 0.0, topP.AsFloat64())
	_, ok = m[AttrRequestTemperature]
	assert.True(t, ok)
}

func TestMapRequestMissingModel(t *testing.T) {
	attrs, err := MapRequest(Request{})
	assert.Nil(t, attrs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrRequiredFieldMissing))
	assert.Equal(t, core.KindRequiredFieldMissing, core.KindOf(err))
}

func TestMapResponse(t *testing.T) {
	t.Run("full response", func(t *testing.T) {
		m := attrMap(MapResponse(Response{
			FinishReasons: []string{FinishReasonEndTurn},
			Usage:         &Usage{InputTokens: 8, OutputTokens: 14},
		}))
		assert.Equal(t, []string{"end_turn"}, m[AttrResponseFinishReasons].AsStringSlice())
		assert.Equal(t, int64(8), m[AttrUsageInputTokens].AsInt64())
		assert.Equal(t, int64(14), m[AttrUsageOutputTokens].AsInt64())
	})

	t.Run("missing usage and finish reason", func(t *testing.T) {
		assert.Empty(t, MapResponse(Response{}))
	})
}

func TestMetricAttributesAndSpanName(t *testing.T) {
	set := attribute.NewSet(MetricAttributes("amazon.nova-micro-v1:0")...)
	assert.Equal(t, 3, set.Len())
	v, ok := set.Value(AttrRequestModel)
	require.True(t, ok)
	assert.Equal(t, "amazon.nova-micro-v1:0", v.AsString())

	assert.Equal(t, "chat amazon.nova-micro-v1:0", SpanName("amazon.nova-micro-v1:0"))
	assert.Equal(t, attribute.String("gen_ai.token.type", "input"), TokenTypeAttribute(TokenTypeInput))
}

func TestMessageHelpers(t *testing.T) {
	msg := Message{
		Role: RoleAssistant,
		Content: []ContentBlock{
			TextBlock("Hello "),
			ToolUseBlock("tooluse_1", "get_current_weather", Object(Member{Key: "location", Value: String("Seattle")})),
			TextBlock("world"),
		},
	}
	assert.Equal(t, "Hello world", msg.Text())
	assert.Empty(t, Message{Role: RoleUser}.Text())
	assert.Len(t, msg.Blocks(BlockToolUse), 1)
	assert.Empty(t, msg.Blocks(BlockToolResult))

	assert.Equal(t, "unknown", Response{}.FinishReason())
	assert.Equal(t, "tool_use", Response{FinishReasons: []string{"tool_use"}}.FinishReason())
	assert.Equal(t, "tool_result", BlockToolResult.String())
}
