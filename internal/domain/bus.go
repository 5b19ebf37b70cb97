package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (standalone) or NATS (distributed).
// All methods require datasetID for strict dataset isolation.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, datasetID string, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, datasetID string, topic string, handler MessageHandler) (Subscription, error)

	// Request sends a message and waits for a response (request-reply pattern).
	Request(ctx context.Context, datasetID string, topic string, payload []byte) ([]byte, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	DatasetID string            `json:"datasetId"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings (standalone mode)
	ChannelBufferSize int

	// NATS settings (distributed mode)
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Standard topic names for the refresh lifecycle.
const (
	TopicRefreshRequested = "superstore.refresh.requested"
	TopicRefreshCompleted = "superstore.refresh.completed"
	TopicRefreshFailed    = "superstore.refresh.failed"
	TopicDatasetLoaded    = "superstore.dataset.loaded"
)

// RefreshRequest is the payload published on TopicRefreshRequested.
type RefreshRequest struct {
	DatasetID   string `json:"datasetId"`
	RequestedBy string `json:"requestedBy,omitempty"`
	Source      string `json:"source,omitempty"`
}

// RefreshResult is the payload published on TopicRefreshCompleted and
// TopicRefreshFailed.
type RefreshResult struct {
	DatasetID       string `json:"datasetId"`
	SnapshotVersion int64  `json:"snapshotVersion,omitempty"`
	Rows            int64  `json:"rows"`
	DurationMs      int64  `json:"durationMs"`
	Error           string `json:"error,omitempty"`
}
