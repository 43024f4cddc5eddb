package tools

import "sync"

// InstructionRegistry maps tool names to the follow-up formatting
// instruction injected into the conversation after that tool's result.
// These steer how the model presents structured data back to the user
// without bloating the base system prompt.
type InstructionRegistry struct {
	mu           sync.RWMutex
	instructions map[string]string
}

// NewInstructionRegistry creates an empty instruction registry.
func NewInstructionRegistry() *InstructionRegistry {
	return &InstructionRegistry{instructions: make(map[string]string)}
}

// Register sets the instruction for a tool name, replacing any existing
// one.
func (r *InstructionRegistry) Register(toolName, instruction string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instructions[toolName] = instruction
}

// For returns the instruction for a tool name, if any.
func (r *InstructionRegistry) For(toolName string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	instruction, ok := r.instructions[toolName]
	return instruction, ok
}
