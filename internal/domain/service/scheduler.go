package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ruudy-sib/resync/internal/domain"
	"github.com/ruudy-sib/resync/internal/domain/entity"
	"github.com/ruudy-sib/resync/internal/port/secondary"
)

// RefetchFunc retrieves fresh data and updates its owner's local state.
// Errors are the owner's to surface; the scheduler discards them.
type RefetchFunc func(ctx context.Context) error

// TaskState is the lifecycle state of a RefreshTask.
type TaskState int32

const (
	TaskIdle TaskState = iota
	TaskActive
)

func (s TaskState) String() string {
	if s == TaskActive {
		return "active"
	}
	return "idle"
}

// TaskOption tunes a single activation.
type TaskOption func(*RefreshTask)

// SkipWhileInFlight makes a task skip a trigger while its previous refetch
// has not returned yet.
func SkipWhileInFlight() TaskOption {
	return func(t *RefreshTask) {
		t.skipInFlight = true
	}
}

// RefreshScheduler runs refetch operations on a fixed interval and whenever
// the hosting page becomes visible again. Each activation is independent;
// the scheduler holds no registry of its tasks.
type RefreshScheduler struct {
	clock  clockwork.Clock
	page   secondary.VisibilitySignal
	logger *zap.Logger
}

// NewRefreshScheduler creates a scheduler. A nil clock uses the real clock;
// a nil page disables visibility-triggered refetches.
func NewRefreshScheduler(
	clock clockwork.Clock,
	page secondary.VisibilitySignal,
	logger *zap.Logger,
) *RefreshScheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RefreshScheduler{
		clock:  clock,
		page:   page,
		logger: logger.Named("refresh-scheduler"),
	}
}

// Activate starts a task that invokes refetch every interval and on every
// transition of the page into the visible state. It never invokes refetch
// on activation; callers do their own initial fetch.
//
// A nil refetch or a non-positive interval returns an idle task that never
// fires. ctx is handed to every refetch call as is and is never cancelled
// by the scheduler.
func (s *RefreshScheduler) Activate(
	ctx context.Context,
	refetch RefetchFunc,
	interval time.Duration,
	opts ...TaskOption,
) *RefreshTask {
	if refetch == nil || interval <= 0 {
		return &RefreshTask{interval: interval}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	t := &RefreshTask{
		id:       uuid.NewString(),
		ctx:      ctx,
		refetch:  refetch,
		interval: interval,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		logger:   s.logger,
	}
	for _, opt := range opts {
		opt(t)
	}

	// Ticker and listener are registered before Activate returns so that no
	// trigger arriving right after activation is missed.
	t.ticker = s.clock.NewTicker(interval)
	if s.page != nil {
		t.visibility, t.unsubscribe = s.page.Subscribe(domain.DefaultSubscriberBuffer)
	}
	t.state.Store(int32(TaskActive))

	go t.loop()

	s.logger.Debug("refresh task activated",
		zap.String("task_id", t.id),
		zap.Duration("interval", interval),
		zap.Bool("skip_while_in_flight", t.skipInFlight),
	)

	return t
}

// NewSlot returns an empty slot bound to this scheduler.
func (s *RefreshScheduler) NewSlot() *Slot {
	return &Slot{scheduler: s}
}

// RefreshTask is one live activation of the scheduler.
type RefreshTask struct {
	id       string
	ctx      context.Context
	refetch  RefetchFunc
	interval time.Duration

	ticker      clockwork.Ticker
	visibility  <-chan entity.VisibilityState
	unsubscribe func()

	skipInFlight bool
	inFlight     atomic.Bool

	state   atomic.Int32
	stopped atomic.Bool
	fired   atomic.Int64

	stopOnce sync.Once
	quit     chan struct{}
	done     chan struct{}

	logger *zap.Logger
}

// ID returns the task identifier, empty for an idle task that never activated.
func (t *RefreshTask) ID() string { return t.id }

// Interval returns the task's refresh cadence.
func (t *RefreshTask) Interval() time.Duration { return t.interval }

// State reports whether the task is active.
func (t *RefreshTask) State() TaskState { return TaskState(t.state.Load()) }

// Stopped reports whether Stop has been called on an activated task.
func (t *RefreshTask) Stopped() bool { return t.stopped.Load() }

// Fired returns how many refetch calls the task has started.
func (t *RefreshTask) Fired() int64 { return t.fired.Load() }

// Stop retires the task: the timer stops and the visibility listener is
// removed. Refetch calls already in flight are neither cancelled nor awaited.
// Stop returns once the task loop has exited and is safe to call repeatedly.
func (t *RefreshTask) Stop() {
	if t == nil || t.done == nil {
		return
	}
	t.stopOnce.Do(func() {
		t.stopped.Store(true)
		t.ticker.Stop()
		close(t.quit)
		<-t.done
		if t.unsubscribe != nil {
			t.unsubscribe()
		}
		t.state.Store(int32(TaskIdle))
		t.logger.Debug("refresh task stopped",
			zap.String("task_id", t.id),
			zap.Int64("fired", t.fired.Load()),
		)
	})
}

func (t *RefreshTask) loop() {
	defer close(t.done)

	visibility := t.visibility
	for {
		select {
		case <-t.quit:
			return
		case <-t.ticker.Chan():
			t.fire()
		case state, ok := <-visibility:
			if !ok {
				visibility = nil
				continue
			}
			if state == entity.Visible {
				t.fire()
			}
		}
	}
}

func (t *RefreshTask) fire() {
	if t.stopped.Load() {
		return
	}
	if t.skipInFlight && !t.inFlight.CompareAndSwap(false, true) {
		return
	}
	t.fired.Add(1)

	go func() {
		defer func() {
			_ = recover()
			if t.skipInFlight {
				t.inFlight.Store(false)
			}
		}()
		_ = t.refetch(t.ctx)
	}()
}

// Slot holds at most one active task for a single (owner, refetch target)
// pair. Rebinding with new parameters retires the previous task before the
// next one starts.
type Slot struct {
	scheduler *RefreshScheduler

	mu       sync.Mutex
	task     *RefreshTask
	target   string
	interval time.Duration
}

// Bind ensures the slot runs refetch for target at interval. If the slot is
// already active with the same target and interval, the current task is kept.
func (s *Slot) Bind(
	ctx context.Context,
	target string,
	refetch RefetchFunc,
	interval time.Duration,
	opts ...TaskOption,
) *RefreshTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.task != nil && s.task.State() == TaskActive && s.target == target && s.interval == interval {
		return s.task
	}
	if s.task != nil {
		s.task.Stop()
	}

	s.task = s.scheduler.Activate(ctx, refetch, interval, opts...)
	s.target = target
	s.interval = interval
	return s.task
}

// Release stops the slot's task, if any.
func (s *Slot) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.task != nil {
		s.task.Stop()
		s.task = nil
	}
	s.target = ""
	s.interval = 0
}

// Task returns the slot's current task, or nil.
func (s *Slot) Task() *RefreshTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task
}
