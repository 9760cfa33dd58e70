// Package genai holds the provider-neutral model of a chat operation and the
// GenAI semantic-convention vocabulary it is mapped onto.
//
// A Request describes the complete message sequence the caller sent for one
// call; nothing is retained across calls. A Response is the summary of what
// the model returned for that call.
package genai

import "strings"

// Role is the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// BlockKind tags a ContentBlock.
type BlockKind int

const (
	BlockUnknown BlockKind = iota
	BlockText
	BlockToolUse
	BlockToolResult
)

func (k BlockKind) String() string {
	switch k {
	case BlockText:
		return "text"
	case BlockToolUse:
		return "tool_use"
	case BlockToolResult:
		return "tool_result"
	default:
		return "unknown"
	}
}

// ContentBlock is one part of a message: text, a model-issued tool call, or
// the caller-supplied result of a tool call. Only the fields matching Kind
// are meaningful.
type ContentBlock struct {
	Kind BlockKind

	// BlockText
	Text string

	// BlockToolUse and BlockToolResult. Carried byte-for-byte.
	ToolUseID string

	// BlockToolUse
	Name  string
	Input Value

	// BlockToolResult
	Content Value
}

func TextBlock(text string) ContentBlock {
	return ContentBlock{Kind: BlockText, Text: text}
}

func ToolUseBlock(toolUseID, name string, input Value) ContentBlock {
	return ContentBlock{Kind: BlockToolUse, ToolUseID: toolUseID, Name: name, Input: input}
}

func ToolResultBlock(toolUseID string, content Value) ContentBlock {
	return ContentBlock{Kind: BlockToolResult, ToolUseID: toolUseID, Content: content}
}

// Message is one turn of the conversation.
type Message struct {
	Role    Role
	Content []ContentBlock
}

// Text concatenates the text blocks of m.
func (m Message) Text() string {
	var b strings.Builder
	for _, block := range m.Content {
		if block.Kind == BlockText {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// Blocks returns the blocks of m with the given kind, in order.
func (m Message) Blocks(kind BlockKind) []ContentBlock {
	var out []ContentBlock
	for _, block := range m.Content {
		if block.Kind == kind {
			out = append(out, block)
		}
	}
	return out
}

// ToolSpec is a tool the model may call.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema Value
}

// InferenceConfig holds the optional inference parameters. A nil pointer
// means "not set", which is distinct from zero.
type InferenceConfig struct {
	MaxTokens     *int
	Temperature   *float64
	TopP          *float64
	StopSequences []string
}

// Request is the pre-parsed input of one chat operation.
type Request struct {
	Model     string
	Inference InferenceConfig
	Messages  []Message
	Tools     []ToolSpec
}

// Usage is the token accounting of one response.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is the summary of one model response.
type Response struct {
	FinishReasons []string
	// Usage is nil when the provider did not report token counts.
	Usage  *Usage
	Choice Message
}

// FinishReason returns the first finish reason, or FinishReasonUnknown.
func (r Response) FinishReason() string {
	if len(r.FinishReasons) == 0 || r.FinishReasons[0] == "" {
		return FinishReasonUnknown
	}
	return r.FinishReasons[0]
}

// Bedrock finish reasons observed on Converse responses.
const (
	FinishReasonEndTurn      = "end_turn"
	FinishReasonMaxTokens    = "max_tokens"
	FinishReasonToolUse      = "tool_use"
	FinishReasonStopSequence = "stop_sequence"
	FinishReasonUnknown      = "unknown"
)

func IntPtr(i int) *int { return &i }

func Float64Ptr(f float64) *float64 { return &f }
