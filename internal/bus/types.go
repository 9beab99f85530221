package bus

import "context"

// Well-known message sources. Any other value is an adapter name.
const (
	SourceHeartbeat = "heartbeat"
	SourceCron      = "cron"
)

// AdapterMessage is the unit of work in the dispatch queue.
type AdapterMessage struct {
	Source   string            `json:"source"`
	SourceID string            `json:"source_id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage is a reply to be delivered through an adapter.
type OutboundMessage struct {
	Source   string            `json:"source"`
	SourceID string            `json:"source_id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// EnqueueResult reports whether a message was admitted to the queue.
type EnqueueResult struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// Adapter is the transport contract the dispatch core consumes.
type Adapter interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	SendResponse(ctx context.Context, msg OutboundMessage) error
}

// ProcessingAdapter is an optional adapter capability. Its presence selects
// the streaming dispatch path: the gateway creates a processing message on
// the first flush with tool activity and updates it on later flushes.
type ProcessingAdapter interface {
	Adapter
	CreateProcessingMessage(ctx context.Context, sourceID, text string, metadata map[string]string) (messageID string, err error)
	UpdateProcessingMessage(ctx context.Context, sourceID, messageID, text string, metadata map[string]string) error
}
