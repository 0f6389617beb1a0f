package secondary

import (
	"context"

	"github.com/ruudy-sib/resync/internal/domain/entity"
)

// TopicBus is the in-process publish/subscribe channel for realtime topic events.
type TopicBus interface {
	// Publish delivers the event to every matching subscriber without blocking.
	Publish(event entity.TopicEvent)

	// Subscribe returns a channel of events for the given topics (all topics
	// when none are given) and a func that retires the subscription.
	Subscribe(buffer int, topics ...entity.Topic) (<-chan entity.TopicEvent, func())
}

// RealtimeSource defines the secondary port for a server-pushed stream of
// topic events (e.g., a websocket, Redis pub/sub or Kafka).
type RealtimeSource interface {
	// Name returns the transport name for logging.
	Name() string

	// Listen blocks, calling emit for every event received, until the
	// context is cancelled or the stream fails.
	Listen(ctx context.Context, emit func(entity.TopicEvent)) error

	// Close releases any resources held by the source.
	Close() error
}

// TopicPublisher defines the secondary port for broadcasting a topic event
// to every instance through an external broker.
type TopicPublisher interface {
	// Publish sends the event to the broker.
	Publish(ctx context.Context, event entity.TopicEvent) error

	// Close releases any resources held by the publisher.
	Close() error
}
