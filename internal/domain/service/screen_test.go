package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ruudy-sib/resync/internal/domain"
	"github.com/ruudy-sib/resync/internal/domain/entity"
)

type screenFixture struct {
	screen  *Screen
	clock   *clockwork.FakeClock
	page    *mockPage
	bus     *mockBus
	fetcher *mockFetcher
}

func newScreenFixture(def entity.ScreenDefinition) *screenFixture {
	clock := clockwork.NewFakeClock()
	page := newMockPage()
	bus := newMockBus()
	fetcher := &mockFetcher{}
	scheduler := NewRefreshScheduler(clock, page, zap.NewNop())
	return &screenFixture{
		screen:  NewScreen(def, fetcher, bus, scheduler, zap.NewNop()),
		clock:   clock,
		page:    page,
		bus:     bus,
		fetcher: fetcher,
	}
}

func (f *screenFixture) waitRefreshes(t *testing.T, want int) {
	t.Helper()
	require.Eventually(t, func() bool { return f.screen.Snapshot().Refreshes == want }, waitFor, tick,
		"expected %d refreshes, got %d", want, f.screen.Snapshot().Refreshes)
}

func (f *screenFixture) assertRefreshesStay(t *testing.T, want int) {
	t.Helper()
	assert.Never(t, func() bool { return f.screen.Snapshot().Refreshes != want }, quiet, tick)
}

func TestScreen_Mount(t *testing.T) {
	f := newScreenFixture(testDefinition())
	defer f.screen.Unmount()

	require.NoError(t, f.screen.Mount(context.Background()))

	snap := f.screen.Snapshot()
	assert.True(t, snap.Mounted)
	assert.Equal(t, 1, snap.Refreshes)
	assert.Empty(t, snap.LastError)
	assert.NotEmpty(t, snap.TaskID)
	assert.Len(t, snap.Data, 2)
	assert.JSONEq(t, `{"path":"/api/attendance"}`, string(snap.Data["/api/attendance"]))
	assert.Equal(t, 2, f.fetcher.callCount())
	assert.Equal(t, 1, f.bus.subscribers())

	// Mounting again is a no-op.
	require.NoError(t, f.screen.Mount(context.Background()))
	assert.Equal(t, 2, f.fetcher.callCount())
	assert.Equal(t, 1, f.bus.subscribers())
}

func TestScreen_intervalRefresh(t *testing.T) {
	f := newScreenFixture(testDefinition())
	defer f.screen.Unmount()
	require.NoError(t, f.screen.Mount(context.Background()))

	f.clock.Advance(300 * time.Second)
	f.waitRefreshes(t, 2)
	f.clock.Advance(300 * time.Second)
	f.waitRefreshes(t, 3)
}

func TestScreen_fetchedAtFollowsClock(t *testing.T) {
	f := newScreenFixture(testDefinition())
	defer f.screen.Unmount()

	mountedAt := f.clock.Now()
	require.NoError(t, f.screen.Mount(context.Background()))
	assert.True(t, f.screen.Snapshot().FetchedAt.Equal(mountedAt))

	f.clock.Advance(300 * time.Second)
	f.waitRefreshes(t, 2)
	assert.True(t, f.screen.Snapshot().FetchedAt.Equal(mountedAt.Add(300*time.Second)))
}

func TestScreen_topicEvents(t *testing.T) {
	tests := []struct {
		name          string
		event         entity.TopicEvent
		wantRefreshes int
	}{
		{
			name:          "subscribed topic triggers one refetch",
			event:         entity.NewTopicEvent(entity.TopicAttendance, nil),
			wantRefreshes: 2,
		},
		{
			name:          "second mapped topic triggers one refetch",
			event:         entity.NewTopicEvent(entity.TopicMarks, json.RawMessage(`{"subject":"math"}`)),
			wantRefreshes: 2,
		},
		{
			name:          "payload is not consulted",
			event:         entity.NewTopicEvent(entity.TopicMarks, json.RawMessage(`{"subject":"unrelated"}`)),
			wantRefreshes: 2,
		},
		{
			name:          "unsubscribed topic is ignored",
			event:         entity.NewTopicEvent(entity.TopicProfile, nil),
			wantRefreshes: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newScreenFixture(testDefinition())
			defer f.screen.Unmount()
			require.NoError(t, f.screen.Mount(context.Background()))

			f.bus.Publish(tt.event)
			f.waitRefreshes(t, tt.wantRefreshes)
			f.assertRefreshesStay(t, tt.wantRefreshes)
		})
	}
}

func TestScreen_topicEvents_oncePerDispatch(t *testing.T) {
	f := newScreenFixture(testDefinition())
	defer f.screen.Unmount()
	require.NoError(t, f.screen.Mount(context.Background()))

	for i := 2; i <= 4; i++ {
		f.bus.Publish(entity.NewTopicEvent(entity.TopicAttendance, nil))
		f.waitRefreshes(t, i)
	}
	f.assertRefreshesStay(t, 4)
}

func TestScreen_visibilityRefresh(t *testing.T) {
	f := newScreenFixture(testDefinition())
	defer f.screen.Unmount()
	require.NoError(t, f.screen.Mount(context.Background()))

	f.page.Set(entity.Hidden)
	f.assertRefreshesStay(t, 1)

	f.page.Set(entity.Visible)
	f.waitRefreshes(t, 2)
}

func TestScreen_Unmount(t *testing.T) {
	f := newScreenFixture(testDefinition())
	require.NoError(t, f.screen.Mount(context.Background()))

	f.screen.Unmount()

	snap := f.screen.Snapshot()
	assert.False(t, snap.Mounted)
	assert.Empty(t, snap.TaskID)
	assert.Equal(t, 0, f.bus.subscribers())
	assert.Equal(t, 0, f.page.subscribers())

	f.clock.Advance(time.Hour)
	f.page.Set(entity.Hidden)
	f.page.Set(entity.Visible)
	f.bus.Publish(entity.NewTopicEvent(entity.TopicAttendance, nil))
	f.assertRefreshesStay(t, 1)

	// Unmounting twice is a no-op.
	f.screen.Unmount()
}

func TestScreen_refetchFailureIsSurfacedOnSnapshot(t *testing.T) {
	f := newScreenFixture(testDefinition())
	defer f.screen.Unmount()

	fail := true
	f.fetcher.getFunc = func(_ context.Context, path string) (json.RawMessage, error) {
		f.fetcher.mu.Lock()
		defer f.fetcher.mu.Unlock()
		if fail {
			return nil, errors.New("502 bad gateway")
		}
		return json.RawMessage(`{}`), nil
	}

	err := f.screen.Mount(context.Background())
	require.ErrorIs(t, err, domain.ErrFetchFailed)

	snap := f.screen.Snapshot()
	assert.True(t, snap.Mounted, "a failed initial fetch keeps the screen mounted")
	assert.Contains(t, snap.LastError, "502 bad gateway")
	assert.Equal(t, 0, snap.Refreshes)

	f.fetcher.mu.Lock()
	fail = false
	f.fetcher.mu.Unlock()

	f.clock.Advance(300 * time.Second)
	f.waitRefreshes(t, 1)
	assert.Empty(t, f.screen.Snapshot().LastError)
}

func TestScreen_lateResponseIsDiscarded(t *testing.T) {
	f := newScreenFixture(testDefinition())

	require.NoError(t, f.screen.Mount(context.Background()))

	entered := make(chan struct{}, 2)
	ctxErr := make(chan error, 2)
	f.fetcher.getFunc = func(ctx context.Context, _ string) (json.RawMessage, error) {
		entered <- struct{}{}
		<-ctx.Done()
		ctxErr <- ctx.Err()
		return json.RawMessage(`{"late":true}`), nil
	}

	result := make(chan error, 1)
	go func() { result <- f.screen.Refetch(context.Background()) }()

	select {
	case <-entered:
	case <-time.After(waitFor):
		t.Fatal("refetch did not reach the fetcher")
	}

	f.screen.Unmount()

	select {
	case err := <-ctxErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("in-flight REST call was not cancelled by unmount")
	}
	<-result

	snap := f.screen.Snapshot()
	assert.Equal(t, 1, snap.Refreshes)
	assert.NotContains(t, string(snap.Data["/api/attendance"]), "late")
}

func TestScreen_Refetch_unmounted(t *testing.T) {
	f := newScreenFixture(testDefinition())

	err := f.screen.Refetch(context.Background())
	require.ErrorIs(t, err, domain.ErrScreenNotMounted)
	assert.Equal(t, 0, f.fetcher.callCount())
}

func TestScreen_Reconfigure_interval(t *testing.T) {
	f := newScreenFixture(testDefinition())
	defer f.screen.Unmount()
	require.NoError(t, f.screen.Mount(context.Background()))
	firstTask := f.screen.Snapshot().TaskID

	def := testDefinition()
	def.Interval = 60 * time.Second
	f.screen.Reconfigure(def)

	snap := f.screen.Snapshot()
	assert.NotEqual(t, firstTask, snap.TaskID)
	assert.Equal(t, 60*time.Second, snap.Interval)
	assert.Equal(t, 1, f.page.subscribers(), "exactly one task may listen for visibility")

	for i := 2; i <= 6; i++ {
		f.clock.Advance(60 * time.Second)
		f.waitRefreshes(t, i)
	}
	// At 300s the retired five-minute timer would have fired a second time.
	f.assertRefreshesStay(t, 6)
}

func TestScreen_Reconfigure_sameParametersKeepsTask(t *testing.T) {
	f := newScreenFixture(testDefinition())
	defer f.screen.Unmount()
	require.NoError(t, f.screen.Mount(context.Background()))
	firstTask := f.screen.Snapshot().TaskID

	f.screen.Reconfigure(testDefinition())

	assert.Equal(t, firstTask, f.screen.Snapshot().TaskID)
}

func TestScreen_Reconfigure_topics(t *testing.T) {
	f := newScreenFixture(testDefinition())
	defer f.screen.Unmount()
	require.NoError(t, f.screen.Mount(context.Background()))

	def := testDefinition()
	def.Topics = []entity.Topic{entity.TopicProfile}
	f.screen.Reconfigure(def)
	assert.Equal(t, 1, f.bus.subscribers())

	f.bus.Publish(entity.NewTopicEvent(entity.TopicAttendance, nil))
	f.assertRefreshesStay(t, 1)

	f.bus.Publish(entity.NewTopicEvent(entity.TopicProfile, nil))
	f.waitRefreshes(t, 2)
}

func TestScreen_Reconfigure_unmounted(t *testing.T) {
	f := newScreenFixture(testDefinition())

	def := testDefinition()
	def.Interval = time.Minute
	f.screen.Reconfigure(def)

	snap := f.screen.Snapshot()
	assert.Equal(t, time.Minute, snap.Interval)
	assert.Empty(t, snap.TaskID)
	assert.Equal(t, 0, f.page.subscribers())
}
