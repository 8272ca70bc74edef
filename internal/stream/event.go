package stream

import "encoding/json"

// EventType discriminates the decoded stream frames. The first five types
// originate from an agent's response stream; node_start/node_complete are
// produced by the pipeline itself to bracket each stage.
type EventType string

const (
	EventTextChunk         EventType = "text_chunk"
	EventToolUse           EventType = "tool_use"
	EventToolResult        EventType = "tool_result"
	EventStreamingComplete EventType = "streaming_complete"
	EventError             EventType = "error"

	EventNodeStart    EventType = "node_start"
	EventNodeComplete EventType = "node_complete"
)

// ContentBlock is one element of a tool_result content list.
type ContentBlock struct {
	Text string `json:"text"`
}

// Event is one decoded unit of an agent's streamed response. AgentName and
// SessionId are attached by the pipeline when the event is relayed so a
// multiplexed consumer can route it to the right display context.
type Event struct {
	Type      EventType       `json:"type"`
	AgentName string          `json:"agent_name,omitempty"`
	SessionId string          `json:"session_id,omitempty"`
	Data      string          `json:"data,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	ToolUseId string          `json:"tool_use_id,omitempty"`
	ToolInput json.RawMessage `json:"tool_input,omitempty"`
	Content   []ContentBlock  `json:"content,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// ResultText returns the terminal result as plain text.
func (e *Event) ResultText() string {
	return TextOf(e.Result)
}

// ToolInputText returns the tool input rendered as plain text.
func (e *Event) ToolInputText() string {
	return TextOf(e.ToolInput)
}

// FirstContentText returns the text of the first tool_result content block.
func (e *Event) FirstContentText() string {
	if len(e.Content) == 0 {
		return ""
	}
	return e.Content[0].Text
}

// TextOf unwraps a raw JSON value: JSON strings decode to their contents,
// everything else is returned in its raw encoding.
func TextOf(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
