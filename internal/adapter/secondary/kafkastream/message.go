package kafkastream

import (
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/ruudy-sib/resync/internal/domain/entity"
)

const eventHeader = "event"

// EncodeMessage maps an event to a Kafka message: key is the topic,
// value is the detail, and an "event" header carries the signal name.
func EncodeMessage(event entity.TopicEvent) kafka.Message {
	return kafka.Message{
		Key:   []byte(event.Topic),
		Value: event.Detail,
		Headers: []kafka.Header{
			{Key: eventHeader, Value: []byte(event.Topic.EventName())},
		},
		Time: event.ReceivedAt,
	}
}

// DecodeMessage maps a Kafka message back to an event. The key names the
// topic; the event header is used when the key is empty.
func DecodeMessage(msg kafka.Message) (entity.TopicEvent, error) {
	name := string(msg.Key)
	if name == "" {
		for _, h := range msg.Headers {
			if h.Key == eventHeader {
				name = string(h.Value)
				break
			}
		}
	}
	topic, err := entity.ParseTopic(name)
	if err != nil {
		return entity.TopicEvent{}, err
	}

	var detail json.RawMessage
	if len(msg.Value) > 0 {
		if !json.Valid(msg.Value) {
			return entity.TopicEvent{}, fmt.Errorf("message value for %s is not valid JSON", topic)
		}
		detail = json.RawMessage(msg.Value)
	}
	return entity.NewTopicEvent(topic, detail), nil
}
