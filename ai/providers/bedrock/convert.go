package bedrock

import (
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/itsneelabh/gomind-genai/core"
	"github.com/itsneelabh/gomind-genai/genai"
)

// RequestFromConverse pre-parses a Converse request into the provider-neutral
// request the instrumentation consumes. A missing model id is left for
// OnRequest to reject.
//
// Content blocks other than text, tool use and tool result (images,
// documents, guard content) carry nothing the events record and are left out.
func RequestFromConverse(in *bedrockruntime.ConverseInput) (genai.Request, error) {
	if in == nil {
		return genai.Request{}, core.NewOperationError("bedrock.RequestFromConverse", core.KindRequiredFieldMissing,
			fmt.Errorf("converse input: %w", core.ErrRequiredFieldMissing))
	}

	req := genai.Request{Model: aws.ToString(in.ModelId)}

	if cfg := in.InferenceConfig; cfg != nil {
		if cfg.MaxTokens != nil {
			req.Inference.MaxTokens = genai.IntPtr(int(*cfg.MaxTokens))
		}
		if cfg.Temperature != nil {
			req.Inference.Temperature = genai.Float64Ptr(widen(*cfg.Temperature))
		}
		if cfg.TopP != nil {
			req.Inference.TopP = genai.Float64Ptr(widen(*cfg.TopP))
		}
		if len(cfg.StopSequences) > 0 {
			req.Inference.StopSequences = append([]string(nil), cfg.StopSequences...)
		}
	}

	for _, msg := range in.Messages {
		req.Messages = append(req.Messages, messageFromConverse(msg))
	}

	if in.ToolConfig != nil {
		for _, tool := range in.ToolConfig.Tools {
			spec, ok := tool.(*types.ToolMemberToolSpec)
			if !ok {
				continue
			}
			ts := genai.ToolSpec{
				Name:        aws.ToString(spec.Value.Name),
				Description: aws.ToString(spec.Value.Description),
			}
			if schema, ok := spec.Value.InputSchema.(*types.ToolInputSchemaMemberJson); ok {
				ts.InputSchema = documentValue(schema.Value)
			}
			req.Tools = append(req.Tools, ts)
		}
	}
	return req, nil
}

// ResponseFromConverse summarizes a Converse response. A response without
// output.message is an upstream failure.
func ResponseFromConverse(out *bedrockruntime.ConverseOutput) (genai.Response, error) {
	if out == nil {
		return genai.Response{}, core.NewOperationError("bedrock.ResponseFromConverse", core.KindUpstreamFailure,
			fmt.Errorf("nil converse output: %w", core.ErrUpstreamFailure))
	}
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return genai.Response{}, core.NewOperationError("bedrock.ResponseFromConverse", core.KindUpstreamFailure,
			fmt.Errorf("converse output has no message: %w", core.ErrUpstreamFailure))
	}

	var resp genai.Response
	if out.StopReason != "" {
		resp.FinishReasons = []string{string(out.StopReason)}
	}
	if out.Usage != nil {
		resp.Usage = &genai.Usage{
			InputTokens:  int(aws.ToInt32(out.Usage.InputTokens)),
			OutputTokens: int(aws.ToInt32(out.Usage.OutputTokens)),
		}
	}
	resp.Choice = messageFromConverse(msg.Value)
	return resp, nil
}

func messageFromConverse(msg types.Message) genai.Message {
	out := genai.Message{Role: genai.Role(msg.Role)}
	for _, block := range msg.Content {
		switch b := block.(type) {
		case *types.ContentBlockMemberText:
			out.Content = append(out.Content, genai.TextBlock(b.Value))
		case *types.ContentBlockMemberToolUse:
			out.Content = append(out.Content, genai.ToolUseBlock(
				aws.ToString(b.Value.ToolUseId),
				aws.ToString(b.Value.Name),
				documentValue(b.Value.Input),
			))
		case *types.ContentBlockMemberToolResult:
			out.Content = append(out.Content, genai.ToolResultBlock(
				aws.ToString(b.Value.ToolUseId),
				toolResultValue(b.Value.Content),
			))
		}
	}
	return out
}

// toolResultValue collapses the result parts: one part is carried as is,
// several become a list.
func toolResultValue(parts []types.ToolResultContentBlock) genai.Value {
	values := make([]genai.Value, 0, len(parts))
	for _, part := range parts {
		switch p := part.(type) {
		case *types.ToolResultContentBlockMemberJson:
			values = append(values, documentValue(p.Value))
		case *types.ToolResultContentBlockMemberText:
			values = append(values, genai.String(p.Value))
		}
	}
	switch len(values) {
	case 0:
		return genai.Null()
	case 1:
		return values[0]
	default:
		return genai.List(values...)
	}
}

// documentValue re-encodes a smithy document as an ordered JSON value.
func documentValue(doc document.Interface) genai.Value {
	if doc == nil {
		return genai.Null()
	}
	data, err := doc.MarshalSmithyDocument()
	if err != nil {
		return genai.Null()
	}
	v, err := genai.ParseJSON(data)
	if err != nil {
		return genai.Null()
	}
	return v
}

// widen converts a float32 parameter through its shortest decimal form, so
// 0.8f is reported as 0.8 rather than 0.800000011920929.
func widen(f float32) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(float64(f), 'g', -1, 32), 64)
	if err != nil {
		return float64(f)
	}
	return v
}
