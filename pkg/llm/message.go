package llm

import "encoding/json"

// Message roles. The wire format follows the OpenAI chat-completions
// convention since that is what the conversation store persists and what
// the completion providers speak.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// ToolCalls is populated on assistant messages that request tool
	// execution before a final answer can be produced.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID references the assistant tool call this message answers.
	// Only set on tool messages.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// Name is the tool/function name. Only set on tool messages.
	Name string `json:"name,omitempty"`
}

// ToolCall is a structured request from the model to execute a named
// function with JSON arguments. IDs are unique within a single response.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ArgumentMap decodes the call's raw JSON arguments into a generic map.
// Malformed arguments yield an empty map rather than an error; the handler
// layer re-validates parameters anyway.
func (tc ToolCall) ArgumentMap() map[string]any {
	args := map[string]any{}
	if len(tc.Arguments) > 0 {
		_ = json.Unmarshal(tc.Arguments, &args)
	}
	return args
}

// NewTextMessage creates a plain text message with the given role.
func NewTextMessage(role, text string) Message {
	return Message{Role: role, Content: text}
}

// NewToolMessage creates a tool-result message answering the given call.
func NewToolMessage(callID, name, content string) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: callID,
		Name:       name,
	}
}
