package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ruudy-sib/resync/internal/domain/entity"
)

// mockPage implements secondary.VisibilitySignal for testing.
type mockPage struct {
	mu    sync.Mutex
	state entity.VisibilityState
	subs  map[int]chan entity.VisibilityState
	next  int
}

func newMockPage() *mockPage {
	return &mockPage{state: entity.Visible, subs: map[int]chan entity.VisibilityState{}}
}

func (p *mockPage) State() entity.VisibilityState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *mockPage) Subscribe(buffer int) (<-chan entity.VisibilityState, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan entity.VisibilityState, buffer)
	id := p.next
	p.next++
	p.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
			close(ch)
		})
	}
}

// Set changes the state and notifies subscribers only on a transition.
func (p *mockPage) Set(state entity.VisibilityState) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == state {
		return false
	}
	p.state = state
	for _, ch := range p.subs {
		ch <- state
	}
	return true
}

func (p *mockPage) subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// mockFetcher implements secondary.Fetcher for testing.
type mockFetcher struct {
	mu      sync.Mutex
	getFunc func(ctx context.Context, path string) (json.RawMessage, error)
	calls   []string
}

func (m *mockFetcher) Get(ctx context.Context, path string) (json.RawMessage, error) {
	m.mu.Lock()
	m.calls = append(m.calls, path)
	fn := m.getFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, path)
	}
	return json.RawMessage(fmt.Sprintf(`{"path":%q}`, path)), nil
}

func (m *mockFetcher) Close() error { return nil }

func (m *mockFetcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockBus implements secondary.TopicBus for testing.
type mockBus struct {
	mu   sync.Mutex
	subs map[int]mockSub
	next int
}

type mockSub struct {
	ch     chan entity.TopicEvent
	topics []entity.Topic
}

func newMockBus() *mockBus {
	return &mockBus{subs: map[int]mockSub{}}
}

func (b *mockBus) Publish(event entity.TopicEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		if len(s.topics) > 0 && !containsTopic(s.topics, event.Topic) {
			continue
		}
		s.ch <- event
	}
}

func (b *mockBus) Subscribe(buffer int, topics ...entity.Topic) (<-chan entity.TopicEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan entity.TopicEvent, buffer)
	id := b.next
	b.next++
	b.subs[id] = mockSub{ch: ch, topics: topics}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *mockBus) subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func containsTopic(topics []entity.Topic, t entity.Topic) bool {
	for _, x := range topics {
		if x == t {
			return true
		}
	}
	return false
}

// mockPublisher implements secondary.TopicPublisher for testing.
type mockPublisher struct {
	publishErr error
	published  []entity.TopicEvent
	closed     atomic.Bool
}

func (m *mockPublisher) Publish(_ context.Context, event entity.TopicEvent) error {
	m.published = append(m.published, event)
	return m.publishErr
}

func (m *mockPublisher) Close() error {
	m.closed.Store(true)
	return nil
}

// counter is a RefetchFunc that counts its invocations.
type counter struct {
	calls atomic.Int32
	fn    func(n int32) error
}

func (c *counter) refetch(_ context.Context) error {
	n := c.calls.Add(1)
	if c.fn != nil {
		return c.fn(n)
	}
	return nil
}

func (c *counter) count() int32 { return c.calls.Load() }

// testDefinition returns a standard screen definition fixture.
func testDefinition() entity.ScreenDefinition {
	return entity.ScreenDefinition{
		Name:      "attendance",
		Endpoints: []string{"/api/attendance", "/api/attendance/summary"},
		Interval:  300 * time.Second,
		Topics:    []entity.Topic{entity.TopicAttendance, entity.TopicMarks},
	}
}
