// Package resync keeps portal screen data fresh: each mounted screen refetches
// from the institute REST API on its cadence, when the page becomes visible
// again and when a realtime signal for one of its topics arrives.
package resync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ruudy-sib/resync/internal/adapter/primary/configwatch"
	httphandler "github.com/ruudy-sib/resync/internal/adapter/primary/http"
	"github.com/ruudy-sib/resync/internal/adapter/primary/worker"
	"github.com/ruudy-sib/resync/internal/adapter/secondary/eventbus"
	"github.com/ruudy-sib/resync/internal/adapter/secondary/realtimefactory"
	"github.com/ruudy-sib/resync/internal/adapter/secondary/redisstore"
	"github.com/ruudy-sib/resync/internal/adapter/secondary/restclient"
	"github.com/ruudy-sib/resync/internal/adapter/secondary/visibility"
	"github.com/ruudy-sib/resync/internal/config"
	"github.com/ruudy-sib/resync/internal/domain"
	"github.com/ruudy-sib/resync/internal/domain/entity"
	"github.com/ruudy-sib/resync/internal/domain/service"
	"github.com/ruudy-sib/resync/internal/port/secondary"
)

// Realtime topics.
const (
	TopicAttendance = string(entity.TopicAttendance)
	TopicMarks      = string(entity.TopicMarks)
	TopicDownloads  = string(entity.TopicDownloads)
	TopicProfile    = string(entity.TopicProfile)
)

// Errors returned by Resync methods, for use with errors.Is.
var (
	ErrScreenNotFound   = domain.ErrScreenNotFound
	ErrScreenNotMounted = domain.ErrScreenNotMounted
	ErrInvalidScreen    = domain.ErrInvalidScreen
	ErrInvalidTopic     = domain.ErrInvalidTopic
	ErrFetchFailed      = domain.ErrFetchFailed
)

// Resync is the main entry point for the refresh service.
// It can be embedded in other Go applications.
type Resync struct {
	screens     *service.ScreenService
	bus         *eventbus.Bus
	page        *visibility.Page
	fetcher     secondary.Fetcher
	publisher   secondary.TopicPublisher
	source      secondary.RealtimeSource
	worker      *worker.Worker
	watcher     *configwatch.Watcher
	redisClient goredis.UniversalClient
	handler     http.Handler
	logger      *zap.Logger
}

// Fetcher reads a resource from the REST API. Supply one in Config to
// replace the built-in HTTP client.
type Fetcher interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
}

// Screen defines a portal screen.
type Screen struct {
	Name      string
	Endpoints []string
	Interval  time.Duration
	Topics    []string
}

// Snapshot is a screen's current local state.
type Snapshot struct {
	Screen    string
	Mounted   bool
	Data      map[string]json.RawMessage
	FetchedAt time.Time
	Refreshes int
	LastError string
	Interval  time.Duration
	Topics    []string
}

// Config holds configuration for Resync.
type Config struct {
	// REST API
	APIBaseURL string
	APIToken   string
	APITimeout time.Duration

	// Fetcher replaces the HTTP client built from the API settings.
	Fetcher Fetcher

	// Realtime transports: "websocket", "redis", "kafka" or "none" (default).
	RealtimeSource    string
	RealtimePublisher string
	RealtimeWSURL     string
	ReconnectInterval time.Duration

	// Redis mode: "standalone" (default), "sentinel", "cluster"
	RedisMode          string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	RedisMasterName    string
	RedisSentinelAddrs []string
	RedisClusterAddrs  []string

	// Kafka
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Screens overrides the built-in catalogue. ScreensFile, when set, takes
	// precedence and is watched for changes once Start is called.
	Screens     []Screen
	ScreensFile string

	// Logger (if nil, a default logger will be created)
	Logger *zap.Logger
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL:        "http://localhost:3000",
		APITimeout:        15 * time.Second,
		RealtimeSource:    config.TransportNone,
		RealtimePublisher: config.TransportNone,
		ReconnectInterval: domain.DefaultReconnectInterval,
		RedisMode:         "standalone",
		RedisAddr:         "localhost:6379",
		KafkaTopic:        "resync.realtime",
	}
}

// New creates a new Resync instance with the given configuration.
func New(cfg *Config) (*Resync, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	// Create logger if not provided
	logger := cfg.Logger
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			return nil, fmt.Errorf("creating logger: %w", err)
		}
	}

	internalCfg := cfg.internal()
	if err := internalCfg.Validate(); err != nil {
		return nil, err
	}

	r := &Resync{logger: logger.Named("resync")}

	if internalCfg.UsesRedis() {
		client, err := redisstore.NewClient(context.Background(), internalCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("creating redis client: %w", err)
		}
		r.redisClient = client
	}

	factory := realtimefactory.NewFactory(internalCfg, r.redisClient, logger)
	var err error
	if r.source, err = factory.Source(); err != nil {
		return nil, errors.Join(err, r.Close())
	}
	if r.publisher, err = factory.Publisher(); err != nil {
		return nil, errors.Join(err, r.Close())
	}

	if cfg.Fetcher != nil {
		r.fetcher = fetcherAdapter{cfg.Fetcher}
	} else {
		r.fetcher = restclient.NewClient(internalCfg, logger)
	}

	r.page = visibility.NewPage()
	r.bus = eventbus.New(logger)
	scheduler := service.NewRefreshScheduler(nil, r.page, logger)

	defs := entity.DefaultScreens()
	if cfg.Screens != nil {
		defs = toDefinitions(cfg.Screens)
	}
	if cfg.ScreensFile != "" {
		defs = nil
	}

	var opts []service.ScreenServiceOption
	if internalCfg.PublishLoopsBack() {
		opts = append(opts, service.WithPublisherLoopback())
	}
	r.screens, err = service.NewScreenService(scheduler, r.fetcher, r.bus, r.page, r.publisher, defs, logger, opts...)
	if err != nil {
		return nil, errors.Join(err, r.Close())
	}
	if cfg.ScreensFile != "" {
		r.watcher = configwatch.NewWatcher(cfg.ScreensFile, r.screens, logger)
		loaded, err := r.watcher.Load()
		if err == nil {
			err = r.screens.ApplyDefinitions(loaded)
		}
		if err != nil {
			return nil, errors.Join(err, r.Close())
		}
	}

	if r.source != nil {
		r.worker = worker.NewWorker(r.source, r.bus, internalCfg.ReconnectInterval, logger)
	}

	var checks []secondary.HealthChecker
	if r.redisClient != nil {
		checks = append(checks, redisstore.NewHealthCheck(r.redisClient, internalCfg))
	}
	r.handler = httphandler.NewRouter(r.screens, checks, logger)

	return r, nil
}

// Start begins the realtime relay and the screens file watcher in the
// background. It returns immediately.
func (r *Resync) Start(ctx context.Context) error {
	r.logger.Info("starting resync")
	if r.worker != nil {
		go r.runBackground(ctx, "realtime relay", r.worker.Run)
	}
	if r.watcher != nil {
		go r.runBackground(ctx, "config watcher", r.watcher.Watch)
	}
	return nil
}

// runBackground runs fn until it returns and logs any failure other than
// the context ending.
func (r *Resync) runBackground(ctx context.Context, name string, fn func(context.Context) error) {
	err := fn(ctx)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		r.logger.Debug("background task stopped", zap.String("task", name))
		return
	}
	r.logger.Error("background task failed", zap.String("task", name), zap.Error(err))
}

// Mount performs the screen's initial fetch and starts keeping it fresh.
// The screen stays mounted when the initial fetch fails.
func (r *Resync) Mount(ctx context.Context, name string) error {
	return r.screens.Mount(ctx, name)
}

// MountAll mounts every screen.
func (r *Resync) MountAll(ctx context.Context) error {
	return r.screens.MountAll(ctx)
}

// Unmount stops refreshing the screen.
func (r *Resync) Unmount(name string) error {
	return r.screens.Unmount(name)
}

// Refresh refetches a mounted screen now.
func (r *Resync) Refresh(ctx context.Context, name string) error {
	return r.screens.Refresh(ctx, name)
}

// Snapshot returns the screen's current state.
func (r *Resync) Snapshot(name string) (Snapshot, error) {
	s, err := r.screens.Snapshot(name)
	if err != nil {
		return Snapshot{}, err
	}
	return fromSnapshot(s), nil
}

// Screens returns the state of every screen ordered by name.
func (r *Resync) Screens() []Snapshot {
	list := r.screens.List()
	out := make([]Snapshot, 0, len(list))
	for _, s := range list {
		out = append(out, fromSnapshot(s))
	}
	return out
}

// SetVisible reports the hosting page's visibility. Becoming visible
// refreshes every mounted screen.
func (r *Resync) SetVisible(visible bool) {
	state := entity.Hidden
	if visible {
		state = entity.Visible
	}
	r.screens.SetVisibility(state)
}

// Publish dispatches a realtime signal for topic ("marks" or "realtime:marks").
func (r *Resync) Publish(ctx context.Context, topic string, detail json.RawMessage) error {
	return r.screens.Publish(ctx, entity.TopicEvent{Topic: entity.Topic(topic), Detail: detail})
}

// Handler returns the HTTP API.
func (r *Resync) Handler() http.Handler {
	return r.handler
}

// Close unmounts every screen and releases resources.
func (r *Resync) Close() error {
	r.logger.Info("shutting down resync")

	var err error
	if r.screens != nil {
		err = multierr.Append(err, r.screens.Close())
	}
	if r.source != nil {
		err = multierr.Append(err, r.source.Close())
	}
	if r.publisher != nil {
		if cerr := r.publisher.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("closing publisher: %w", cerr))
		}
	}
	if r.fetcher != nil {
		err = multierr.Append(err, r.fetcher.Close())
	}
	if r.redisClient != nil {
		if cerr := r.redisClient.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("closing redis client: %w", cerr))
		}
	}
	return err
}

// internal converts to the internal config format.
func (c *Config) internal() *config.Config {
	def := DefaultConfig()
	out := &config.Config{
		APIBaseURL:         orDefault(c.APIBaseURL, def.APIBaseURL),
		APIToken:           c.APIToken,
		APITimeout:         c.APITimeout,
		RealtimeSource:     orDefault(c.RealtimeSource, def.RealtimeSource),
		RealtimePublisher:  orDefault(c.RealtimePublisher, def.RealtimePublisher),
		RealtimeWSURL:      c.RealtimeWSURL,
		ReconnectInterval:  c.ReconnectInterval,
		RedisMode:          orDefault(c.RedisMode, def.RedisMode),
		RedisAddr:          orDefault(c.RedisAddr, def.RedisAddr),
		RedisPassword:      c.RedisPassword,
		RedisDB:            c.RedisDB,
		RedisMasterName:    c.RedisMasterName,
		RedisSentinelAddrs: c.RedisSentinelAddrs,
		RedisClusterAddrs:  c.RedisClusterAddrs,
		KafkaBrokers:       c.KafkaBrokers,
		KafkaTopic:         orDefault(c.KafkaTopic, def.KafkaTopic),
		KafkaGroupID:       c.KafkaGroupID,
		ScreensFile:        c.ScreensFile,
	}
	if out.APITimeout <= 0 {
		out.APITimeout = def.APITimeout
	}
	if out.ReconnectInterval <= 0 {
		out.ReconnectInterval = def.ReconnectInterval
	}
	return out
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// fetcherAdapter gives a caller-supplied Fetcher the internal port's Close.
type fetcherAdapter struct {
	Fetcher
}

func (fetcherAdapter) Close() error { return nil }

func toDefinitions(screens []Screen) []entity.ScreenDefinition {
	defs := make([]entity.ScreenDefinition, 0, len(screens))
	for _, s := range screens {
		def := entity.ScreenDefinition{
			Name:      s.Name,
			Endpoints: append([]string(nil), s.Endpoints...),
			Interval:  s.Interval,
		}
		for _, t := range s.Topics {
			def.Topics = append(def.Topics, entity.Topic(t))
		}
		defs = append(defs, def)
	}
	return defs
}

func fromSnapshot(s entity.Snapshot) Snapshot {
	out := Snapshot{
		Screen:    s.Screen,
		Mounted:   s.Mounted,
		Data:      s.Data,
		FetchedAt: s.FetchedAt,
		Refreshes: s.Refreshes,
		LastError: s.LastError,
		Interval:  s.Interval,
	}
	for _, t := range s.Topics {
		out.Topics = append(out.Topics, string(t))
	}
	return out
}
