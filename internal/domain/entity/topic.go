package entity

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ruudy-sib/resync/internal/domain"
)

// Topic names a domain whose server-side data can change under a screen.
type Topic string

const (
	TopicAttendance Topic = "attendance"
	TopicMarks      Topic = "marks"
	TopicDownloads  Topic = "downloads"
	TopicProfile    Topic = "profile"
)

// Topics lists every known realtime topic.
func Topics() []Topic {
	return []Topic{TopicAttendance, TopicMarks, TopicDownloads, TopicProfile}
}

// ParseTopic accepts either a bare topic ("marks") or a signal name ("realtime:marks").
func ParseTopic(s string) (Topic, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.TrimPrefix(name, domain.RealtimeEventPrefix)
	for _, t := range Topics() {
		if string(t) == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", domain.ErrInvalidTopic, s)
}

// EventName returns the signal name carried on the wire, e.g. "realtime:marks".
func (t Topic) EventName() string {
	return domain.RealtimeEventPrefix + string(t)
}

// TopicEvent is a realtime signal. Detail is opaque to every consumer:
// reacting to an event always means a full refetch.
type TopicEvent struct {
	Topic      Topic
	Detail     json.RawMessage
	ReceivedAt time.Time
}

// NewTopicEvent builds an event stamped with the current time.
func NewTopicEvent(topic Topic, detail json.RawMessage) TopicEvent {
	return TopicEvent{
		Topic:      topic,
		Detail:     detail,
		ReceivedAt: time.Now(),
	}
}
