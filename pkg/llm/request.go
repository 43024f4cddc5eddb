package llm

// ChatRequest represents a provider-agnostic chat completion request.
// This is the internal representation built by the orchestrator before a
// provider client translates it into its specific API format.
type ChatRequest struct {
	// Model name (e.g., "gpt-4o-mini")
	Model string `json:"model"`

	// Conversation messages, system message first
	Messages []Message `json:"messages"`

	// Tools the model may call while answering
	Tools []ToolDefinition `json:"tools,omitempty"`

	// Generation parameters
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// ToolDefinition describes a callable tool in the catalog sent with every
// completion request. Parameters is a JSON-schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}
