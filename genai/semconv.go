package genai

import "go.opentelemetry.io/otel/attribute"

// GenAI semantic convention attribute keys. These names are a bit-exact
// contract with every consumer of the emitted telemetry.
const (
	AttrSystem                = attribute.Key("gen_ai.system")
	AttrOperationName         = attribute.Key("gen_ai.operation.name")
	AttrRequestModel          = attribute.Key("gen_ai.request.model")
	AttrRequestMaxTokens      = attribute.Key("gen_ai.request.max_tokens")
	AttrRequestTemperature    = attribute.Key("gen_ai.request.temperature")
	AttrRequestTopP           = attribute.Key("gen_ai.request.top_p")
	AttrRequestStopSequences  = attribute.Key("gen_ai.request.stop_sequences")
	AttrResponseFinishReasons = attribute.Key("gen_ai.response.finish_reasons")
	AttrUsageInputTokens      = attribute.Key("gen_ai.usage.input_tokens")
	AttrUsageOutputTokens     = attribute.Key("gen_ai.usage.output_tokens")
	AttrTokenType             = attribute.Key("gen_ai.token.type")
	AttrErrorType             = attribute.Key("error.type")
	AttrEventName             = attribute.Key("event.name")
)

// Attribute values.
const (
	SystemAWSBedrock = "aws.bedrock"
	OperationChat    = "chat"

	TokenTypeInput      = "input"
	TokenTypeCompletion = "completion"
)

// Log event names.
const (
	EventUserMessage      = "gen_ai.user.message"
	EventAssistantMessage = "gen_ai.assistant.message"
	EventToolMessage      = "gen_ai.tool.message"
	EventChoice           = "gen_ai.choice"
)

// Metric instruments.
const (
	MetricTokenUsage            = "gen_ai.client.token.usage"
	MetricTokenUsageUnit        = "{token}"
	MetricTokenUsageDescription = "Measures number of input and output tokens used"

	MetricOperationDuration            = "gen_ai.client.operation.duration"
	MetricOperationDurationUnit        = "s"
	MetricOperationDurationDescription = "GenAI operation duration"
)

// Advisory histogram bucket boundaries from the GenAI metric conventions.
var (
	TokenUsageBuckets = []float64{
		1, 4, 16, 64, 256, 1024, 4096, 16384, 65536,
		262144, 1048576, 4194304, 16777216, 67108864,
	}
	OperationDurationBuckets = []float64{
		0.01, 0.02, 0.04, 0.08, 0.16, 0.32, 0.64,
		1.28, 2.56, 5.12, 10.24, 20.48, 40.96, 81.92,
	}
)

// Tool call fields inside message bodies.
const (
	ToolCallTypeFunction = "function"
)
