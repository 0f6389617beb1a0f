package service

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ruudy-sib/resync/internal/domain"
	"github.com/ruudy-sib/resync/internal/domain/entity"
	"github.com/ruudy-sib/resync/internal/port/secondary"
)

// Screen owns the local state of one portal screen and keeps it fresh
// through a scheduler slot and its realtime topic subscription.
type Screen struct {
	fetcher secondary.Fetcher
	bus     secondary.TopicBus
	slot    *Slot
	clock   clockwork.Clock
	logger  *zap.Logger

	mu          sync.Mutex
	def         entity.ScreenDefinition
	mounted     bool
	generation  uint64
	mountCtx    context.Context
	cancel      context.CancelFunc
	unsubTopics func()
	topics      []entity.Topic

	data      map[string]json.RawMessage
	fetchedAt time.Time
	refreshes int
	lastErr   string
}

// NewScreen creates an unmounted screen. def must already be validated.
func NewScreen(
	def entity.ScreenDefinition,
	fetcher secondary.Fetcher,
	bus secondary.TopicBus,
	scheduler *RefreshScheduler,
	logger *zap.Logger,
) *Screen {
	return &Screen{
		def:     def.Clone(),
		fetcher: fetcher,
		bus:     bus,
		slot:    scheduler.NewSlot(),
		clock:   scheduler.clock,
		logger:  logger.Named("screen").With(zap.String("screen", def.Name)),
	}
}

// Name returns the screen name.
func (s *Screen) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.def.Name
}

// Mount performs the initial fetch, then starts interval/visibility
// refreshes and the topic subscription. An initial fetch failure is
// returned but the screen stays mounted; the next tick retries.
func (s *Screen) Mount(ctx context.Context) error {
	s.mu.Lock()
	if s.mounted {
		s.mu.Unlock()
		return nil
	}
	mountCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.mounted = true
	s.generation++
	gen := s.generation
	s.mountCtx = mountCtx
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.Info("mounting screen")
	err := s.Refetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted || s.generation != gen {
		// unmounted while the initial fetch was running
		return err
	}
	s.bindLocked()
	s.subscribeLocked(s.def.Topics)
	return err
}

// Unmount stops refreshes, retires the topic subscription and cancels
// REST calls still in flight. Late responses are discarded.
func (s *Screen) Unmount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return
	}
	s.mounted = false
	s.cancel()
	s.slot.Release()
	s.unsubscribeLocked()
	s.logger.Info("screen unmounted")
}

// Mounted reports whether the screen is mounted.
func (s *Screen) Mounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted
}

// Reconfigure swaps the definition. A mounted screen is rebound so exactly
// one timer runs at the new cadence, and resubscribes if its topics changed.
func (s *Screen) Reconfigure(def entity.ScreenDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.def = def.Clone()
	if !s.mounted {
		return
	}
	s.bindLocked()
	if !slices.Equal(s.topics, s.def.Topics) {
		s.unsubscribeLocked()
		s.subscribeLocked(s.def.Topics)
	}
	s.logger.Info("screen reconfigured",
		zap.Duration("interval", s.def.Interval),
		zap.Int("topics", len(s.def.Topics)),
	)
}

// Refetch GETs every endpoint and replaces the whole snapshot. Results are
// applied only if the screen is still mounted from the same mount. Failures
// are recorded on the snapshot and logged here, since the scheduler drops them.
func (s *Screen) Refetch(ctx context.Context) error {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrScreenNotMounted, s.def.Name)
	}
	gen := s.generation
	mountCtx := s.mountCtx
	endpoints := slices.Clone(s.def.Endpoints)
	s.mu.Unlock()

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(mountCtx, cancel)
	defer stop()

	data, err := s.fetchAll(fetchCtx, endpoints)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted || s.generation != gen {
		s.logger.Debug("discarding refetch result for unmounted screen")
		return err
	}
	if err != nil {
		s.lastErr = err.Error()
		s.logger.Warn("screen refresh failed", zap.Error(err))
		return err
	}
	s.data = data
	s.fetchedAt = s.clock.Now()
	s.refreshes++
	s.lastErr = ""
	return nil
}

// Snapshot returns a copy of the screen's local state.
func (s *Screen) Snapshot() entity.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := entity.Snapshot{
		Screen:    s.def.Name,
		Mounted:   s.mounted,
		Data:      maps.Clone(s.data),
		FetchedAt: s.fetchedAt,
		Refreshes: s.refreshes,
		LastError: s.lastErr,
		Interval:  s.def.Interval,
		Topics:    slices.Clone(s.def.Topics),
	}
	if task := s.slot.Task(); task != nil {
		snap.TaskID = task.ID()
	}
	return snap
}

func (s *Screen) fetchAll(ctx context.Context, endpoints []string) (map[string]json.RawMessage, error) {
	results := make([]json.RawMessage, len(endpoints))

	g, gctx := errgroup.WithContext(ctx)
	for i, ep := range endpoints {
		g.Go(func() error {
			body, err := s.fetcher.Get(gctx, ep)
			if err != nil {
				return fmt.Errorf("%w: GET %s: %v", domain.ErrFetchFailed, ep, err)
			}
			results[i] = body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data := make(map[string]json.RawMessage, len(endpoints))
	for i, ep := range endpoints {
		data[ep] = results[i]
	}
	return data, nil
}

func (s *Screen) bindLocked() {
	ctx := s.mountCtx
	s.slot.Bind(ctx, s.def.Target(), s.Refetch, s.def.Interval)
}

func (s *Screen) subscribeLocked(topics []entity.Topic) {
	s.topics = slices.Clone(topics)
	if len(topics) == 0 || s.bus == nil {
		return
	}

	ch, unsubscribe := s.bus.Subscribe(domain.DefaultSubscriberBuffer, topics...)
	s.unsubTopics = unsubscribe

	ctx := s.mountCtx
	go func() {
		for event := range ch {
			s.logger.Debug("realtime event received", zap.String("topic", string(event.Topic)))
			// The payload is never consulted: every event means a full resync.
			_ = s.Refetch(ctx)
		}
	}()
}

func (s *Screen) unsubscribeLocked() {
	if s.unsubTopics != nil {
		s.unsubTopics()
		s.unsubTopics = nil
	}
	s.topics = nil
}
