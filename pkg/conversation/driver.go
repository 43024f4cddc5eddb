// Package conversation defines the persistence interface for per-user
// conversation logs.
package conversation

import (
	"context"
	"time"

	"github.com/flightdeskco/flightdesk/pkg/llm"
)

// Store persists the ordered message log for each user. Implementations
// must provide atomic read-modify-write per user key; the orchestrator
// relies on it when committing a whole exchange at once.
type Store interface {
	// Get retrieves the message log for a user. Returns ErrNotFound
	// when no live conversation exists.
	Get(ctx context.Context, userID string) ([]llm.Message, error)

	// Put replaces the user's message log and resets its TTL.
	Put(ctx context.Context, userID string, messages []llm.Message, ttl time.Duration) error

	// Touch refreshes the TTL of an existing conversation without
	// modifying its messages.
	Touch(ctx context.Context, userID string) error

	// Trim drops older messages, keeping system messages plus the last
	// keepLastN others.
	Trim(ctx context.Context, userID string, keepLastN int) error

	// Delete removes the user's conversation entirely.
	Delete(ctx context.Context, userID string) error

	// Close releases any resources held by the store.
	Close() error
}

// ErrNotFound is returned when a user has no live conversation.
type ErrNotFound struct {
	UserID string
}

func (e ErrNotFound) Error() string {
	if e.UserID == "" {
		return "conversation not found"
	}
	return "conversation not found: " + e.UserID
}

// TrimMessages keeps every system message plus the last keepLastN other
// messages, preserving order. Shared by store implementations.
//
// The cut never lands inside a tool batch: a tool message must follow
// the assistant message carrying its tool_calls entry, so when the
// window would start on tool messages the rest of that batch is dropped
// too.
func TrimMessages(messages []llm.Message, keepLastN int) []llm.Message {
	if keepLastN < 0 {
		keepLastN = 0
	}

	var system, others []llm.Message
	for _, msg := range messages {
		if msg.Role == llm.RoleSystem {
			system = append(system, msg)
		} else {
			others = append(others, msg)
		}
	}

	if len(others) > keepLastN {
		start := len(others) - keepLastN
		for start < len(others) && others[start].Role == llm.RoleTool {
			start++
		}
		others = others[start:]
	}

	out := make([]llm.Message, 0, len(system)+len(others))
	out = append(out, system...)
	out = append(out, others...)
	return out
}
