package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ruudy-sib/resync/internal/domain"
	"github.com/ruudy-sib/resync/internal/domain/entity"
	"github.com/ruudy-sib/resync/internal/domain/valueobject"
	"github.com/ruudy-sib/resync/internal/port/secondary"
)

// ScreenService manages the portal screens and routes visibility and
// realtime signals to them.
type ScreenService struct {
	scheduler *RefreshScheduler
	fetcher   secondary.Fetcher
	bus       secondary.TopicBus
	page      secondary.VisibilityController
	publisher secondary.TopicPublisher
	loopback  bool
	logger    *zap.Logger

	mu      sync.RWMutex
	screens map[string]*Screen
}

// ScreenServiceOption tunes a ScreenService.
type ScreenServiceOption func(*ScreenService)

// WithPublisherLoopback declares that events sent through the publisher come
// back to this instance through its realtime source, so Publish must not
// also dispatch them locally.
func WithPublisherLoopback() ScreenServiceOption {
	return func(s *ScreenService) {
		s.loopback = true
	}
}

// NewScreenService creates a ScreenService with its dependencies injected.
// publisher may be nil, in which case published events stay in-process.
func NewScreenService(
	scheduler *RefreshScheduler,
	fetcher secondary.Fetcher,
	bus secondary.TopicBus,
	page secondary.VisibilityController,
	publisher secondary.TopicPublisher,
	defs []entity.ScreenDefinition,
	logger *zap.Logger,
	opts ...ScreenServiceOption,
) (*ScreenService, error) {
	s := &ScreenService{
		scheduler: scheduler,
		fetcher:   fetcher,
		bus:       bus,
		page:      page,
		publisher: publisher,
		logger:    logger.Named("screen-service"),
		screens:   make(map[string]*Screen),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.ApplyDefinitions(defs); err != nil {
		return nil, err
	}
	return s, nil
}

// Mount mounts the named screen.
func (s *ScreenService) Mount(ctx context.Context, name string) error {
	screen, err := s.lookup(name)
	if err != nil {
		return err
	}
	return screen.Mount(ctx)
}

// MountAll mounts every registered screen and returns the combined
// initial fetch errors.
func (s *ScreenService) MountAll(ctx context.Context) error {
	var errs error
	for _, screen := range s.sorted() {
		if err := screen.Mount(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("mounting %s: %w", screen.Name(), err))
		}
	}
	return errs
}

// Unmount unmounts the named screen. Unmounting an unmounted screen is a no-op.
func (s *ScreenService) Unmount(name string) error {
	screen, err := s.lookup(name)
	if err != nil {
		return err
	}
	screen.Unmount()
	return nil
}

// Refresh refetches the named screen now.
func (s *ScreenService) Refresh(ctx context.Context, name string) error {
	screen, err := s.lookup(name)
	if err != nil {
		return err
	}
	return screen.Refetch(ctx)
}

// Snapshot returns the named screen's state.
func (s *ScreenService) Snapshot(name string) (entity.Snapshot, error) {
	screen, err := s.lookup(name)
	if err != nil {
		return entity.Snapshot{}, err
	}
	return screen.Snapshot(), nil
}

// List returns every screen's state ordered by name.
func (s *ScreenService) List() []entity.Snapshot {
	screens := s.sorted()
	out := make([]entity.Snapshot, 0, len(screens))
	for _, screen := range screens {
		out = append(out, screen.Snapshot())
	}
	return out
}

// SetVisibility forwards the page visibility state to the schedulers.
func (s *ScreenService) SetVisibility(state entity.VisibilityState) {
	if s.page == nil {
		return
	}
	if s.page.Set(state) {
		s.logger.Debug("page visibility changed", zap.String("state", string(state)))
	}
}

// Publish dispatches a realtime event. Without a publisher it goes straight
// to the local bus. With one it is broadcast through the broker, and also
// dispatched locally unless the broker loops it back through this
// instance's realtime source. A broker failure is returned after the local
// dispatch.
func (s *ScreenService) Publish(ctx context.Context, event entity.TopicEvent) error {
	topic, err := entity.ParseTopic(string(event.Topic))
	if err != nil {
		return err
	}
	event.Topic = topic
	if event.ReceivedAt.IsZero() {
		event = entity.NewTopicEvent(event.Topic, event.Detail)
	}

	if s.publisher == nil || !s.loopback {
		s.bus.Publish(event)
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, event); err != nil {
			return fmt.Errorf("publishing %s: %w", topic.EventName(), err)
		}
	}
	return nil
}

// ApplyDefinitions validates every definition, then reconfigures existing
// screens, registers new ones and unmounts screens no longer defined.
// Nothing changes if any definition is invalid.
func (s *ScreenService) ApplyDefinitions(defs []entity.ScreenDefinition) error {
	validated := make(map[string]entity.ScreenDefinition, len(defs))
	for _, def := range defs {
		def = def.Clone()
		if err := def.Validate(); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidScreen, err)
		}
		if _, dup := validated[def.Name]; dup {
			return fmt.Errorf("%w: duplicate screen %q", domain.ErrInvalidScreen, def.Name)
		}
		validated[def.Name] = def
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var added, updated, removed int
	for name, def := range validated {
		if screen, ok := s.screens[name]; ok {
			screen.Reconfigure(def)
			updated++
			continue
		}
		s.screens[name] = NewScreen(def, s.fetcher, s.bus, s.scheduler, s.logger)
		added++
	}
	for name, screen := range s.screens {
		if _, ok := validated[name]; ok {
			continue
		}
		screen.Unmount()
		delete(s.screens, name)
		removed++
	}

	s.logger.Info("screen definitions applied",
		zap.Int("added", added),
		zap.Int("updated", updated),
		zap.Int("removed", removed),
	)
	return nil
}

// Close unmounts every screen.
func (s *ScreenService) Close() error {
	for _, screen := range s.sorted() {
		screen.Unmount()
	}
	return nil
}

func (s *ScreenService) lookup(name string) (*Screen, error) {
	n, err := valueobject.NewScreenName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidScreen, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	screen, ok := s.screens[n.String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrScreenNotFound, n)
	}
	return screen, nil
}

func (s *ScreenService) sorted() []*Screen {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.screens))
	for name := range s.screens {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*Screen, 0, len(names))
	for _, name := range names {
		out = append(out, s.screens[name])
	}
	return out
}
