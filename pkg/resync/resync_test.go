package resync_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/ruudy-sib/resync/pkg/resync"
)

type stubFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]error
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{calls: make(map[string]int), fail: make(map[string]error)}
}

func (f *stubFetcher) Get(_ context.Context, path string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[path]++
	if err := f.fail[path]; err != nil {
		return nil, err
	}
	return json.RawMessage(`{"path":"` + path + `"}`), nil
}

func (f *stubFetcher) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func newResync(t *testing.T, cfg *resync.Config) (*resync.Resync, *stubFetcher) {
	t.Helper()
	fetcher := newStubFetcher()
	if cfg == nil {
		cfg = resync.DefaultConfig()
	}
	cfg.Fetcher = fetcher
	cfg.Logger = zap.NewNop()

	rs, err := resync.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close() })
	return rs, fetcher
}

func TestNew_invalidTransport(t *testing.T) {
	cfg := resync.DefaultConfig()
	cfg.RealtimeSource = "carrier-pigeon"
	cfg.Logger = zap.NewNop()

	_, err := resync.New(cfg)
	require.Error(t, err)
}

func TestResync_defaultCatalogue(t *testing.T) {
	rs, _ := newResync(t, nil)

	names := make([]string, 0)
	for _, s := range rs.Screens() {
		names = append(names, s.Screen)
		assert.False(t, s.Mounted)
	}
	assert.Equal(t, []string{
		"attendance", "dashboard", "downloads", "marks", "notifications", "profile", "timetable",
	}, names)
}

func TestResync_mountAndSnapshot(t *testing.T) {
	rs, fetcher := newResync(t, nil)
	ctx := context.Background()

	require.NoError(t, rs.Mount(ctx, "marks"))

	snap, err := rs.Snapshot("marks")
	require.NoError(t, err)
	assert.True(t, snap.Mounted)
	assert.Equal(t, 1, fetcher.count("/api/marks"))
	assert.JSONEq(t, `{"path":"/api/marks"}`, string(snap.Data["/api/marks"]))
	assert.Equal(t, []string{resync.TopicMarks}, snap.Topics)
	assert.Equal(t, 300*time.Second, snap.Interval)

	require.NoError(t, rs.Unmount("marks"))
	snap, err = rs.Snapshot("marks")
	require.NoError(t, err)
	assert.False(t, snap.Mounted)
}

func TestResync_unknownScreen(t *testing.T) {
	rs, _ := newResync(t, nil)

	err := rs.Mount(context.Background(), "fees")
	assert.True(t, errors.Is(err, resync.ErrScreenNotFound))

	_, err = rs.Snapshot("fees")
	assert.True(t, errors.Is(err, resync.ErrScreenNotFound))
}

func TestResync_mountFetchFailure(t *testing.T) {
	rs, fetcher := newResync(t, nil)
	fetcher.fail["/api/profile"] = errors.New("connection refused")

	err := rs.Mount(context.Background(), "profile")
	assert.True(t, errors.Is(err, resync.ErrFetchFailed))

	snap, err := rs.Snapshot("profile")
	require.NoError(t, err)
	assert.True(t, snap.Mounted)
	assert.NotEmpty(t, snap.LastError)
}

func TestResync_publishRefetchesSubscribedScreens(t *testing.T) {
	rs, fetcher := newResync(t, nil)
	ctx := context.Background()

	require.NoError(t, rs.Mount(ctx, "marks"))
	require.NoError(t, rs.Mount(ctx, "downloads"))

	require.NoError(t, rs.Publish(ctx, "realtime:marks", json.RawMessage(`{"student":7}`)))

	assert.Eventually(t, func() bool {
		return fetcher.count("/api/marks") == 2
	}, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool {
		return fetcher.count("/api/downloads") > 1
	}, 50*time.Millisecond, 5*time.Millisecond)

	err := rs.Publish(ctx, "fees", nil)
	assert.True(t, errors.Is(err, resync.ErrInvalidTopic))
}

func TestResync_visibleAgainRefetches(t *testing.T) {
	rs, fetcher := newResync(t, nil)
	require.NoError(t, rs.Mount(context.Background(), "timetable"))

	rs.SetVisible(false)
	assert.Never(t, func() bool {
		return fetcher.count("/api/timetable") > 1
	}, 50*time.Millisecond, 5*time.Millisecond)

	rs.SetVisible(true)
	assert.Eventually(t, func() bool {
		return fetcher.count("/api/timetable") == 2
	}, time.Second, 5*time.Millisecond)
}

func TestResync_customScreens(t *testing.T) {
	cfg := resync.DefaultConfig()
	cfg.Screens = []resync.Screen{
		{Name: "fees", Endpoints: []string{"/api/fees"}, Interval: time.Minute, Topics: []string{"profile"}},
	}
	rs, fetcher := newResync(t, cfg)

	require.Len(t, rs.Screens(), 1)
	require.NoError(t, rs.MountAll(context.Background()))
	assert.Equal(t, 1, fetcher.count("/api/fees"))
}

func TestResync_screensFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screens.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
screens:
  - name: library
    endpoints: [/api/library]
    interval: 10m
`), 0o600))

	cfg := resync.DefaultConfig()
	cfg.ScreensFile = path
	rs, _ := newResync(t, cfg)

	list := rs.Screens()
	require.Len(t, list, 1)
	assert.Equal(t, "library", list[0].Screen)
	assert.Equal(t, 10*time.Minute, list[0].Interval)
}

func TestResync_handler(t *testing.T) {
	rs, _ := newResync(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/screens/profile/mount", nil)
	rec := httptest.NewRecorder()
	rs.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/screens/profile", nil)
	rec = httptest.NewRecorder()
	rs.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Name    string `json:"name"`
		Mounted bool   `json:"mounted"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "profile", body.Name)
	assert.True(t, body.Mounted)
}

func TestRegisterWithContainer(t *testing.T) {
	container := dig.New()
	require.NoError(t, container.Provide(zap.NewNop))
	require.NoError(t, container.Provide(func() *resync.Config {
		cfg := resync.DefaultConfig()
		cfg.Fetcher = newStubFetcher()
		return cfg
	}))
	require.NoError(t, resync.RegisterWithContainer(container))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, container.Provide(func() context.Context { return ctx }))

	require.NoError(t, container.Invoke(resync.StartResync))
	require.NoError(t, container.Invoke(func(rs *resync.Resync) error {
		return rs.Close()
	}))
}
