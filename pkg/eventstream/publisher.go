package eventstream

import "context"

// Publisher publishes processed-message events to an event stream backend.
type Publisher interface {
	PublishMessageProcessed(ctx context.Context, event *MessageProcessedEvent) error
	Close() error
}
