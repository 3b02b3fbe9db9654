package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/opensource-finance/ringscope/internal/domain"
)

var (
	// published counts messages handed to a subscriber or the broker.
	// Labels: topic
	published = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ringscope",
		Subsystem: "bus",
		Name:      "published_total",
		Help:      "Events delivered to the bus",
	}, []string{"topic"})

	// dropped counts messages a full subscriber buffer could not take.
	// Labels: topic
	dropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ringscope",
		Subsystem: "bus",
		Name:      "dropped_total",
		Help:      "Events dropped because a subscriber buffer was full",
	}, []string{"topic"})
)

// New creates a new event bus based on configuration.
// For Community tier: returns ChannelBus.
// For Pro tier: returns NATSBus.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}

// PublishJSON marshals v and publishes it.
func PublishJSON(ctx context.Context, b domain.EventBus, tenantID, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", topic, err)
	}
	return b.Publish(ctx, tenantID, topic, payload)
}

// Decode unmarshals a message payload into v.
func Decode(msg *domain.Message, v any) error {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", msg.Topic, err)
	}
	return nil
}
