// Package eventbus is the in-memory fanout for realtime topic events.
//
// Publish never blocks. Each subscriber owns a bounded buffer; when it is
// full the oldest queued event is dropped to make room for the newest.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ruudy-sib/resync/internal/domain"
	"github.com/ruudy-sib/resync/internal/domain/entity"
	"github.com/ruudy-sib/resync/internal/port/secondary"
)

// Bus implements secondary.TopicBus.
type Bus struct {
	mu      sync.RWMutex
	subs    map[uint64]*subscriber
	seq     atomic.Uint64
	dropped atomic.Uint64
	logger  *zap.Logger
}

type subscriber struct {
	// mu serialises sends with close so a late Publish never hits a closed channel.
	mu     sync.Mutex
	ch     chan entity.TopicEvent
	topics map[entity.Topic]struct{}
	closed bool
}

var _ secondary.TopicBus = (*Bus)(nil)

// New returns an empty bus. It does not own any goroutines.
func New(logger *zap.Logger) *Bus {
	return &Bus{
		subs:   make(map[uint64]*subscriber),
		logger: logger.Named("eventbus"),
	}
}

// Publish delivers event to every subscriber interested in its topic.
func (b *Bus) Publish(event entity.TopicEvent) {
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now()
	}

	b.mu.RLock()
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		if !s.wants(event.Topic) {
			continue
		}
		if s.deliver(event) {
			n := b.dropped.Add(1)
			b.logger.Debug("slow subscriber, dropped oldest event",
				zap.String("topic", string(event.Topic)),
				zap.Uint64("dropped_total", n),
			)
		}
	}
}

// Subscribe registers a subscriber for topics, or for every topic when none
// are given. A non-positive buffer uses domain.DefaultSubscriberBuffer.
func (b *Bus) Subscribe(buffer int, topics ...entity.Topic) (<-chan entity.TopicEvent, func()) {
	if buffer <= 0 {
		buffer = domain.DefaultSubscriberBuffer
	}
	s := &subscriber{ch: make(chan entity.TopicEvent, buffer)}
	if len(topics) > 0 {
		s.topics = make(map[entity.Topic]struct{}, len(topics))
		for _, t := range topics {
			s.topics[t] = struct{}{}
		}
	}
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			s.close()
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many queued events were discarded for slow subscribers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

func (s *subscriber) wants(t entity.Topic) bool {
	if s.topics == nil {
		return true
	}
	_, ok := s.topics[t]
	return ok
}

// deliver enqueues event, evicting the oldest queued event if the buffer is
// full. It reports whether an event was evicted.
func (s *subscriber) deliver(event entity.TopicEvent) (evicted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	for {
		select {
		case s.ch <- event:
			return evicted
		default:
		}
		select {
		case <-s.ch:
			evicted = true
		default:
		}
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
