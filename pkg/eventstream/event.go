package eventstream

import "time"

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeMessageProcessed is emitted after an exchange completes
	// and its conversation log has been committed.
	EventTypeMessageProcessed = "flightdesk.message.processed"
)

// MessageProcessedEvent is a transport-neutral payload describing one
// completed assistant exchange.
type MessageProcessedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	UserID        string    `json:"user_id"`
	Rounds        int       `json:"rounds"`
	ToolsInvoked  bool      `json:"tools_invoked"`
	ToolCalls     []string  `json:"tool_calls,omitempty"`
	FlightsFound  int       `json:"flights_found,omitempty"`
	DurationMs    int64     `json:"duration_ms"`
}
