// Package wssource receives realtime events pushed by the backend over a
// websocket.
package wssource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	cws "github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/ruudy-sib/resync/internal/config"
	"github.com/ruudy-sib/resync/internal/domain"
	"github.com/ruudy-sib/resync/internal/domain/entity"
	"github.com/ruudy-sib/resync/internal/port/secondary"
)

const readLimit = 1 << 20

// Frame is one server-pushed message. The signal name goes in Type
// ("realtime:marks"); Topic ("marks") is accepted as well.
type Frame struct {
	Type   string          `json:"type,omitempty"`
	Topic  string          `json:"topic,omitempty"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

// Source implements secondary.RealtimeSource over a websocket connection.
type Source struct {
	url    string
	token  string
	logger *zap.Logger
}

var _ secondary.RealtimeSource = (*Source)(nil)

// NewSource creates a websocket source for cfg.RealtimeWSURL, authenticated
// with the API token when one is configured.
func NewSource(cfg *config.Config, logger *zap.Logger) *Source {
	return &Source{
		url:    cfg.RealtimeWSURL,
		token:  cfg.APIToken,
		logger: logger.Named("ws-source"),
	}
}

// Name returns the transport name.
func (s *Source) Name() string { return "websocket" }

// Listen dials the socket and emits one event per valid frame. It returns
// nil when ctx ends and domain.ErrSourceClosed when the server closes normally.
func (s *Source) Listen(ctx context.Context, emit func(entity.TopicEvent)) error {
	opts := &cws.DialOptions{}
	if s.token != "" {
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + s.token}}
	}

	conn, _, err := cws.Dial(ctx, s.url, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("dialing %s: %w", s.url, err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(readLimit)

	s.logger.Info("realtime socket connected", zap.String("url", s.url))

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			switch cws.CloseStatus(err) {
			case cws.StatusNormalClosure, cws.StatusGoingAway:
				return domain.ErrSourceClosed
			}
			return fmt.Errorf("reading realtime socket: %w", err)
		}
		if typ != cws.MessageText {
			continue
		}

		event, err := DecodeFrame(data)
		if err != nil {
			s.logger.Warn("skipping realtime frame", zap.Error(err))
			continue
		}
		emit(event)
	}
}

// Close is a no-op; each Listen call owns its connection.
func (s *Source) Close() error { return nil }

// DecodeFrame parses a JSON frame into a topic event.
func DecodeFrame(data []byte) (entity.TopicEvent, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return entity.TopicEvent{}, fmt.Errorf("decoding frame: %w", err)
	}
	name := f.Type
	if name == "" {
		name = f.Topic
	}
	if name == "" {
		return entity.TopicEvent{}, errors.New("frame has neither type nor topic")
	}
	topic, err := entity.ParseTopic(name)
	if err != nil {
		return entity.TopicEvent{}, err
	}
	return entity.NewTopicEvent(topic, f.Detail), nil
}
