// Package completion defines the client interface for chat completion
// providers and the error taxonomy shared by their implementations.
package completion

import (
	"context"
	"errors"
	"fmt"

	"github.com/flightdeskco/flightdesk/pkg/llm"
)

// Client is the black-box completion capability: given a message history
// and a tool catalog, return either a final answer or a set of requested
// tool invocations.
type Client interface {
	Complete(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)
}

// TransportError indicates the completion API itself was unreachable or
// timed out. It is the only error class the orchestrator propagates to
// its caller.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("completion transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
