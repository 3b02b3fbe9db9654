package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (Community) or NATS (Pro).
// All methods require tenantID for strict multi-tenancy isolation.
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, tenantID string, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, tenantID string, topic string, handler MessageHandler) (Subscription, error)

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
	TenantID  string            `json:"tenantId"`
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
	Type string `yaml:"type"`

	// Channel settings (Community tier)
	ChannelBufferSize int `yaml:"channelBufferSize"`

	// NATS settings (Pro tier)
	NATSUrl           string `yaml:"natsUrl"`
	NATSToken         string `yaml:"natsToken"`
	NATSMaxReconnects int    `yaml:"natsMaxReconnects"`
	NATSReconnectWait int    `yaml:"natsReconnectWait"` // seconds
}

// Topic names.
const (
	TopicAnalysisIngested = "ringscope.analysis.ingested"
	TopicAnalysisDeleted  = "ringscope.analysis.deleted"
	TopicViewRebuilt      = "ringscope.view.rebuilt"
	TopicFocusChanged     = "ringscope.focus.changed"
	TopicSelectionChanged = "ringscope.selection.changed"
)

// FanInTenant is the bus tenant that analysis lifecycle events are
// published under so a single worker sees every tenant.
const FanInTenant = "_global"

// AnalysisEvent is the payload of analysis lifecycle topics.
type AnalysisEvent struct {
	TenantID   string `json:"tenantId"`
	AnalysisID string `json:"analysisId"`
	TraceID    string `json:"traceId,omitempty"`

	// RingIDs is set on deletion so cached projections can be dropped
	// without reloading the result.
	RingIDs []string `json:"ringIds,omitempty"`
}

// ViewEvent is the payload of view topics.
type ViewEvent struct {
	ViewID     string `json:"viewId"`
	AnalysisID string `json:"analysisId,omitempty"`
	Filter     string `json:"filter"`
	Generation uint64 `json:"generation,omitempty"`
	Nodes      int    `json:"nodes,omitempty"`
	Edges      int    `json:"edges,omitempty"`
	Selected   string `json:"selected,omitempty"`
}
