package protocol

import "encoding/json"

// ChunkKind discriminates model-stream chunks delivered inside
// model_stream_chunk events.
type ChunkKind string

// Stream chunk kinds. Unrecognized kinds fall through to the store's
// best-effort preview path.
const (
	ChunkTurnStart           ChunkKind = "turn_start"
	ChunkTurnFinish          ChunkKind = "turn_finish"
	ChunkStepStart           ChunkKind = "step_start"
	ChunkStepFinish          ChunkKind = "step_finish"
	ChunkAssistantTextStart  ChunkKind = "assistant_text_start"
	ChunkAssistantTextEnd    ChunkKind = "assistant_text_end"
	ChunkAssistantDelta      ChunkKind = "assistant_delta"
	ChunkReasoningStart      ChunkKind = "reasoning_start"
	ChunkReasoningDelta      ChunkKind = "reasoning_delta"
	ChunkReasoningEnd        ChunkKind = "reasoning_end"
	ChunkToolInputStart      ChunkKind = "tool_input_start"
	ChunkToolInputDelta      ChunkKind = "tool_input_delta"
	ChunkToolInputEnd        ChunkKind = "tool_input_end"
	ChunkToolCall            ChunkKind = "tool_call"
	ChunkToolResult          ChunkKind = "tool_result"
	ChunkToolError           ChunkKind = "tool_error"
	ChunkToolOutputDenied    ChunkKind = "tool_output_denied"
	ChunkToolApprovalRequest ChunkKind = "tool_approval_request"
	ChunkSource              ChunkKind = "source"
	ChunkFile                ChunkKind = "file"
)

// StreamChunk is one incremental update within a turn. TurnID scopes every
// chunk to its agent response cycle; ItemID distinguishes parallel streams
// (reasoning blocks) and CallID distinguishes tool invocations within the
// turn.
type StreamChunk struct {
	Kind   ChunkKind `json:"kind"`
	TurnID string    `json:"turnId,omitempty"`
	ItemID string    `json:"itemId,omitempty"`
	CallID string    `json:"callId,omitempty"`

	// Tool name (tool_input_start, tool_input_end, tool_call,
	// tool_approval_request).
	Name string `json:"name,omitempty"`

	// Delta text: assistant/reasoning text fragments, or a raw tool-input
	// fragment for tool_input_delta.
	Text string `json:"text,omitempty"`

	// Complete tool arguments (tool_call, optionally tool_input_end).
	Args json.RawMessage `json:"args,omitempty"`

	// Tool result payload (tool_result).
	Result json.RawMessage `json:"result,omitempty"`

	// Error text (tool_error) or denial reason (tool_output_denied).
	Error  string `json:"error,omitempty"`
	Reason string `json:"reason,omitempty"`

	// Token usage object (turn_finish, step_finish). Field names vary by
	// provider; see ExtractUsage.
	Usage json.RawMessage `json:"usage,omitempty"`

	// Opaque payload for source/file/unknown kinds.
	Value json.RawMessage `json:"value,omitempty"`
}
