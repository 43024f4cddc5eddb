package llm

import "time"

// ChatResponse represents a provider-agnostic chat completion response.
type ChatResponse struct {
	// Model that generated the response
	Model string `json:"model"`

	// Response timestamp
	CreatedAt time.Time `json:"created_at,omitzero"`

	// The assistant's response message. When Message.ToolCalls is
	// non-empty the model is requesting tool execution instead of
	// delivering a final answer.
	Message Message `json:"message"`

	// Stop reason (e.g., "stop", "length", "tool_calls")
	StopReason string `json:"stop_reason,omitempty"`

	// Token usage metrics
	Usage *Usage `json:"usage,omitempty"`
}

// HasToolCalls reports whether the model requested tool execution.
func (r *ChatResponse) HasToolCalls() bool {
	return len(r.Message.ToolCalls) > 0
}

// Usage contains token counts reported by the provider.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}
