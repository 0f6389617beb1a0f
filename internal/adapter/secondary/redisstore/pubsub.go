package redisstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ruudy-sib/resync/internal/domain"
	"github.com/ruudy-sib/resync/internal/domain/entity"
	"github.com/ruudy-sib/resync/internal/port/secondary"
)

// Events travel on one channel per topic, named after the signal
// ("realtime:marks"). The payload is the event detail.

// Source implements secondary.RealtimeSource over Redis pub/sub.
type Source struct {
	client redis.UniversalClient
	logger *zap.Logger
}

var _ secondary.RealtimeSource = (*Source)(nil)

// NewSource creates a pub/sub source on the given client.
func NewSource(client redis.UniversalClient, logger *zap.Logger) *Source {
	return &Source{client: client, logger: logger.Named("redis-source")}
}

// Name returns the transport name.
func (s *Source) Name() string { return "redis" }

// Listen subscribes to every topic channel and emits decoded events until
// ctx ends (nil) or the subscription breaks.
func (s *Source) Listen(ctx context.Context, emit func(entity.TopicEvent)) error {
	pubsub := s.client.Subscribe(ctx, Channels()...)
	defer pubsub.Close()

	// Receive the subscription confirmation so connection failures surface here.
	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribing to realtime channels: %w", err)
	}
	s.logger.Info("subscribed to realtime channels", zap.Strings("channels", Channels()))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return domain.ErrSourceClosed
			}
			event, err := DecodeMessage(msg.Channel, msg.Payload)
			if err != nil {
				s.logger.Warn("skipping realtime message", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			emit(event)
		}
	}
}

// Close is a no-op; the client is owned by the caller.
func (s *Source) Close() error { return nil }

// Publisher implements secondary.TopicPublisher with PUBLISH.
type Publisher struct {
	client redis.UniversalClient
	logger *zap.Logger
}

var _ secondary.TopicPublisher = (*Publisher)(nil)

// NewPublisher creates a pub/sub publisher on the given client.
func NewPublisher(client redis.UniversalClient, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, logger: logger.Named("redis-publisher")}
}

// Publish sends the event detail on the topic's channel.
func (p *Publisher) Publish(ctx context.Context, event entity.TopicEvent) error {
	channel := event.Topic.EventName()
	receivers, err := p.client.Publish(ctx, channel, EncodeDetail(event.Detail)).Result()
	if err != nil {
		return fmt.Errorf("publishing to redis channel %q: %w", channel, err)
	}

	p.logger.Debug("realtime event published",
		zap.String("channel", channel),
		zap.Int64("receivers", receivers),
	)
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (p *Publisher) Close() error { return nil }

// Channels returns the pub/sub channel of every topic.
func Channels() []string {
	topics := entity.Topics()
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		out = append(out, t.EventName())
	}
	return out
}

// DecodeMessage turns a pub/sub message into a topic event. Payloads that
// are not JSON are carried as a JSON string.
func DecodeMessage(channel, payload string) (entity.TopicEvent, error) {
	topic, err := entity.ParseTopic(channel)
	if err != nil {
		return entity.TopicEvent{}, err
	}
	var detail json.RawMessage
	switch {
	case payload == "":
	case json.Valid([]byte(payload)):
		detail = json.RawMessage(payload)
	default:
		b, _ := json.Marshal(payload)
		detail = b
	}
	return entity.NewTopicEvent(topic, detail), nil
}

// EncodeDetail returns the wire payload for an event detail.
func EncodeDetail(detail json.RawMessage) string {
	if len(detail) == 0 {
		return ""
	}
	return string(detail)
}
