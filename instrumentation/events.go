package instrumentation

import (
	"fmt"
	"time"

	"github.com/itsneelabh/gomind-genai/core"
	"github.com/itsneelabh/gomind-genai/genai"
	"go.opentelemetry.io/otel/log"
)

// Body keys of the GenAI conversational events.
const (
	bodyContent      = "content"
	bodyToolCalls    = "toolCalls"
	bodyID           = "id"
	bodyName         = "name"
	bodyArguments    = "arguments"
	bodyType         = "type"
	bodyFinishReason = "finish_reason"
	bodyIndex        = "index"
)

// eventEmitter turns conversation messages into GenAI log events.
type eventEmitter struct {
	logger         log.Logger
	self           core.Logger
	captureContent bool
	now            func() time.Time
}

// emitRequest emits one event per request-side message part, in conversation
// order.
func (e *eventEmitter) emitRequest(op *Operation, messages []genai.Message) {
	for i, msg := range messages {
		switch msg.Role {
		case genai.RoleUser:
			e.emitUser(op, i, msg)
		case genai.RoleAssistant:
			e.emitAssistant(op, i, msg)
		case genai.RoleTool:
			e.emitToolResults(op, i, msg)
		default:
			e.skip(op, i, fmt.Sprintf("unknown role %q", msg.Role))
		}
	}
}

// emitUser emits the user event for text and one tool event per tool result.
func (e *eventEmitter) emitUser(op *Operation, index int, msg genai.Message) {
	hasText := false
	for _, block := range msg.Content {
		switch block.Kind {
		case genai.BlockText:
			hasText = true
		case genai.BlockToolResult:
		default:
			e.skip(op, index, fmt.Sprintf("%s block in user message", block.Kind))
		}
	}

	if hasText {
		var body []log.KeyValue
		if e.captureContent {
			body = append(body, log.String(bodyContent, msg.Text()))
		}
		e.emit(op, genai.EventUserMessage, body)
	}
	e.emitToolResults(op, index, genai.Message{Role: msg.Role, Content: msg.Blocks(genai.BlockToolResult)})
}

func (e *eventEmitter) emitAssistant(op *Operation, index int, msg genai.Message) {
	for _, block := range msg.Content {
		if block.Kind != genai.BlockText && block.Kind != genai.BlockToolUse {
			e.skip(op, index, fmt.Sprintf("%s block in assistant message", block.Kind))
		}
	}

	var body []log.KeyValue
	calls := e.toolCalls(op, index, msg)
	if len(calls) > 0 {
		body = append(body, log.Slice(bodyToolCalls, calls...))
	}
	if text := msg.Text(); e.captureContent && (text != "" || len(calls) == 0) {
		body = append(body, log.String(bodyContent, text))
	}
	e.emit(op, genai.EventAssistantMessage, body)
}

func (e *eventEmitter) emitToolResults(op *Operation, index int, msg genai.Message) {
	for _, block := range msg.Content {
		if block.Kind != genai.BlockToolResult {
			e.skip(op, index, fmt.Sprintf("%s block in tool message", block.Kind))
			continue
		}
		if block.ToolUseID == "" {
			e.skip(op, index, "tool result without id")
			continue
		}
		body := []log.KeyValue{log.String(bodyID, block.ToolUseID)}
		if e.captureContent {
			body = append(body, log.String(bodyContent, toolResultContent(block.Content)))
		}
		e.emit(op, genai.EventToolMessage, body)
	}
}

// emitChoice emits the single choice event of a response.
func (e *eventEmitter) emitChoice(op *Operation, resp genai.Response) {
	const choiceIndex = -1

	body := []log.KeyValue{
		log.String(bodyFinishReason, resp.FinishReason()),
		log.Int(bodyIndex, 0),
	}
	calls := e.toolCalls(op, choiceIndex, resp.Choice)
	if len(calls) > 0 {
		body = append(body, log.Slice(bodyToolCalls, calls...))
	}
	if text := resp.Choice.Text(); e.captureContent && (text != "" || len(calls) == 0) {
		body = append(body, log.String(bodyContent, text))
	}
	e.emit(op, genai.EventChoice, body)
}

// toolCalls renders the tool-use blocks of msg, skipping those without id.
func (e *eventEmitter) toolCalls(op *Operation, index int, msg genai.Message) []log.Value {
	var calls []log.Value
	for _, block := range msg.Blocks(genai.BlockToolUse) {
		if block.ToolUseID == "" {
			e.skip(op, index, "tool use without id")
			continue
		}
		call := []log.KeyValue{log.String(bodyName, block.Name)}
		if e.captureContent {
			call = append(call, log.String(bodyArguments, block.Input.String()))
		}
		call = append(call,
			log.String(bodyID, block.ToolUseID),
			log.String(bodyType, genai.ToolCallTypeFunction),
		)
		calls = append(calls, log.MapValue(call...))
	}
	return calls
}

func (e *eventEmitter) emit(op *Operation, name string, body []log.KeyValue) {
	now := e.now()
	var rec log.Record
	rec.SetEventName(name)
	rec.SetTimestamp(op.eventTime(now))
	rec.SetObservedTimestamp(now)
	rec.SetSeverity(log.SeverityInfo)
	rec.SetSeverityText("INFO")
	rec.SetBody(log.MapValue(body...))
	rec.AddAttributes(
		log.String(string(genai.AttrSystem), genai.SystemAWSBedrock),
		log.String(string(genai.AttrEventName), name),
	)

	// The SDK takes trace and span id from the context.
	e.logger.Emit(op.ctx, rec)
}

// skip reports a malformed part that was left out of the events.
func (e *eventEmitter) skip(op *Operation, index int, reason string) {
	fields := op.logFields()
	fields["error"] = core.ErrMalformedContentBlock.Error()
	fields["reason"] = reason
	if index >= 0 {
		fields["message_index"] = index
	} else {
		fields["message"] = "choice"
	}
	fields["impact"] = "part omitted from log events"
	e.self.Warn("Skipping malformed content block", fields)
}

// toolResultContent renders a tool result. Text results are carried as is,
// anything else as its JSON encoding.
func toolResultContent(v genai.Value) string {
	if s, ok := v.AsString(); ok {
		return s
	}
	return v.String()
}
