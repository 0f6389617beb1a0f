// Package visibility holds the hosting page's visibility state.
package visibility

import (
	"sync"
	"sync/atomic"

	"github.com/ruudy-sib/resync/internal/domain"
	"github.com/ruudy-sib/resync/internal/domain/entity"
	"github.com/ruudy-sib/resync/internal/port/secondary"
)

// Page implements secondary.VisibilityController. It starts visible.
type Page struct {
	mu    sync.RWMutex
	state entity.VisibilityState
	subs  map[uint64]*listener
	seq   atomic.Uint64
}

type listener struct {
	mu     sync.Mutex
	ch     chan entity.VisibilityState
	closed bool
}

var _ secondary.VisibilityController = (*Page)(nil)

// NewPage returns a visible page with no listeners.
func NewPage() *Page {
	return &Page{
		state: entity.Visible,
		subs:  make(map[uint64]*listener),
	}
}

// State returns the current visibility.
func (p *Page) State() entity.VisibilityState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Set records state and notifies listeners if it differs from the current
// one. It reports whether a transition happened.
func (p *Page) Set(state entity.VisibilityState) bool {
	p.mu.Lock()
	if p.state == state {
		p.mu.Unlock()
		return false
	}
	p.state = state
	subs := make([]*listener, 0, len(p.subs))
	for _, l := range p.subs {
		subs = append(subs, l)
	}
	p.mu.Unlock()

	for _, l := range subs {
		l.notify(state)
	}
	return true
}

// Subscribe registers a listener for visibility changes.
func (p *Page) Subscribe(buffer int) (<-chan entity.VisibilityState, func()) {
	if buffer <= 0 {
		buffer = domain.DefaultSubscriberBuffer
	}
	l := &listener{ch: make(chan entity.VisibilityState, buffer)}
	id := p.seq.Add(1)

	p.mu.Lock()
	p.subs[id] = l
	p.mu.Unlock()

	var once sync.Once
	return l.ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
			l.close()
		})
	}
}

// notify drops the oldest queued state when the listener is behind; only the
// latest transitions matter.
func (l *listener) notify(state entity.VisibilityState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	for {
		select {
		case l.ch <- state:
			return
		default:
		}
		select {
		case <-l.ch:
		default:
		}
	}
}

func (l *listener) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.ch)
	}
}
