package stream

import (
	"encoding/json"
	"strings"
)

// PendingToolCall is an in-flight tool invocation awaiting its result.
type PendingToolCall struct {
	CallId    string
	ToolName  string
	ToolInput json.RawMessage
}

// Correlator maps tool call ids to their originating name and input so a
// later tool_result can be annotated. State is scoped to the active stage
// and must be Reset at every stage boundary.
type Correlator struct {
	pending map[string]PendingToolCall
}

func NewCorrelator() *Correlator {
	return &Correlator{pending: make(map[string]PendingToolCall)}
}

// Track registers a started tool call. Re-tracking an id overwrites the
// previous entry: latest wins. Gateway-qualified names of the form
// "server___tool" are normalized to the bare tool name.
func (c *Correlator) Track(callId, toolName string, input json.RawMessage) {
	if idx := strings.LastIndex(toolName, "___"); idx >= 0 {
		toolName = toolName[idx+3:]
	}
	c.pending[callId] = PendingToolCall{
		CallId:    callId,
		ToolName:  toolName,
		ToolInput: input,
	}
}

// Resolve looks up and removes the pending call for an id. A miss is a soft
// condition: the caller labels the result as coming from an unknown tool and
// continues.
func (c *Correlator) Resolve(callId string) (PendingToolCall, bool) {
	call, ok := c.pending[callId]
	if ok {
		delete(c.pending, callId)
	}
	return call, ok
}

// Reset drops all pending calls. Results can no longer correlate once their
// stage has ended.
func (c *Correlator) Reset() {
	c.pending = make(map[string]PendingToolCall)
}

// Pending reports the number of unresolved calls.
func (c *Correlator) Pending() int {
	return len(c.pending)
}
