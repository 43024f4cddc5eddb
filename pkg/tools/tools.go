// Package tools defines the tool handler capability set and the registry
// the orchestrator dispatches through.
package tools

import (
	"context"
	"encoding/json"
)

// Result is the structured outcome of one tool execution. It is
// serialized to JSON and appended to the conversation as a tool message.
type Result map[string]any

// ErrorResult builds the structured failure shape the model receives when
// a handler fails. The exchange continues; the model decides how to
// surface the failure conversationally.
func ErrorResult(message string) Result {
	return Result{"success": false, "error": message}
}

// JSON serializes the result. Marshal failures degrade to a generic
// failure payload rather than propagating.
func (r Result) JSON() string {
	data, err := json.Marshal(r)
	if err != nil {
		return `{"success":false,"error":"unserializable tool result"}`
	}
	return string(data)
}

// Handler is one callable tool. Implementations declare their name and
// parameter schema, validate arguments, and execute.
//
// Execute's error return is reserved for infrastructure failures (the
// backing API unreachable or timed out), which abort the whole exchange.
// Domain failures — bad input, a booking that doesn't exist, an upstream
// rejection — are reported as an ErrorResult with a nil error so the
// exchange continues.
type Handler interface {
	// Name returns the function name the model calls.
	Name() string

	// Description returns the model-facing summary of what the tool does.
	Description() string

	// Schema returns the JSON-schema object describing the parameters.
	Schema() map[string]any

	// ValidateParams checks arguments before execution.
	ValidateParams(args map[string]any) error

	// Execute runs the tool for the given user.
	Execute(ctx context.Context, userID string, args map[string]any) (Result, error)
}
