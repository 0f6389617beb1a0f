package main

import (
	"context"
	"net/http"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/dig"
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
	"github.com/ruudy-sib/resync/internal/domain/entity"
	"github.com/ruudy-sib/resync/internal/domain/service"
	"github.com/ruudy-sib/resync/internal/port/primary"
	"github.com/ruudy-sib/resync/internal/port/secondary"
)

func buildContainer(ctx context.Context) (*dig.Container, error) {
	c := dig.New()

	// --- Configuration ---
	if err := c.Provide(func() (*config.Config, error) {
		cfg := config.New()
		return cfg, cfg.Validate()
	}); err != nil {
		return nil, err
	}

	// --- Logger ---
	if err := c.Provide(newLogger); err != nil {
		return nil, err
	}

	if err := c.Provide(clockwork.NewRealClock); err != nil {
		return nil, err
	}

	// --- Secondary Adapters (infrastructure) ---

	// Redis client, only when a realtime transport needs it. Nil otherwise.
	if err := c.Provide(func(cfg *config.Config, logger *zap.Logger) (goredis.UniversalClient, error) {
		if !cfg.UsesRedis() {
			return nil, nil
		}
		return redisstore.NewClient(ctx, cfg, logger)
	}); err != nil {
		return nil, err
	}

	// Collect all health checks
	if err := c.Provide(func(client goredis.UniversalClient, cfg *config.Config) []secondary.HealthChecker {
		var checks []secondary.HealthChecker
		if client != nil {
			checks = append(checks, redisstore.NewHealthCheck(client, cfg))
		}
		return checks
	}); err != nil {
		return nil, err
	}

	// REST client (implements secondary.Fetcher)
	if err := c.Provide(func(cfg *config.Config, logger *zap.Logger) secondary.Fetcher {
		return restclient.NewClient(cfg, logger)
	}); err != nil {
		return nil, err
	}

	// Page visibility (implements secondary.VisibilityController)
	if err := c.Provide(func() secondary.VisibilityController {
		return visibility.NewPage()
	}); err != nil {
		return nil, err
	}

	// Topic bus (implements secondary.TopicBus)
	if err := c.Provide(func(logger *zap.Logger) secondary.TopicBus {
		return eventbus.New(logger)
	}); err != nil {
		return nil, err
	}

	// Realtime source and publisher are chosen by configuration; either may be nil.
	if err := c.Provide(realtimefactory.NewFactory); err != nil {
		return nil, err
	}
	if err := c.Provide(func(f *realtimefactory.Factory) (secondary.RealtimeSource, error) {
		return f.Source()
	}); err != nil {
		return nil, err
	}
	if err := c.Provide(func(f *realtimefactory.Factory) (secondary.TopicPublisher, error) {
		return f.Publisher()
	}); err != nil {
		return nil, err
	}

	// --- Domain Services ---

	if err := c.Provide(func(clock clockwork.Clock, page secondary.VisibilityController, logger *zap.Logger) *service.RefreshScheduler {
		return service.NewRefreshScheduler(clock, page, logger)
	}); err != nil {
		return nil, err
	}

	if err := c.Provide(newScreenService); err != nil {
		return nil, err
	}

	// Bind concrete ScreenService to the primary port interface
	if err := c.Provide(func(s *service.ScreenService) primary.ScreenService {
		return s
	}); err != nil {
		return nil, err
	}

	// --- Primary Adapters ---

	// HTTP router
	if err := c.Provide(func(svc primary.ScreenService, checks []secondary.HealthChecker, logger *zap.Logger) http.Handler {
		return httphandler.NewRouter(svc, checks, logger)
	}); err != nil {
		return nil, err
	}

	// Realtime relay worker, nil when no source is configured.
	if err := c.Provide(func(src secondary.RealtimeSource, bus secondary.TopicBus, cfg *config.Config, logger *zap.Logger) *worker.Worker {
		if src == nil {
			return nil
		}
		return worker.NewWorker(src, bus, cfg.ReconnectInterval, logger)
	}); err != nil {
		return nil, err
	}

	return c, nil
}

type screenServiceParams struct {
	dig.In

	Config    *config.Config
	Scheduler *service.RefreshScheduler
	Fetcher   secondary.Fetcher
	Bus       secondary.TopicBus
	Page      secondary.VisibilityController
	Publisher secondary.TopicPublisher
	Logger    *zap.Logger
}

type screenServiceResult struct {
	dig.Out

	Service *service.ScreenService
	Watcher *configwatch.Watcher // nil without SCREENS_FILE
}

// newScreenService registers the screen catalogue: the screens file when one
// is configured, the built-in defaults otherwise.
func newScreenService(p screenServiceParams) (screenServiceResult, error) {
	var defs []entity.ScreenDefinition
	if p.Config.ScreensFile == "" {
		defs = entity.DefaultScreens()
	}

	var opts []service.ScreenServiceOption
	if p.Config.PublishLoopsBack() {
		opts = append(opts, service.WithPublisherLoopback())
	}

	screens, err := service.NewScreenService(
		p.Scheduler, p.Fetcher, p.Bus, p.Page, p.Publisher, defs, p.Logger, opts...,
	)
	if err != nil {
		return screenServiceResult{}, err
	}
	if p.Config.ScreensFile == "" {
		return screenServiceResult{Service: screens}, nil
	}

	watcher := configwatch.NewWatcher(p.Config.ScreensFile, screens, p.Logger)
	loaded, err := watcher.Load()
	if err != nil {
		return screenServiceResult{}, err
	}
	if err := screens.ApplyDefinitions(loaded); err != nil {
		return screenServiceResult{}, err
	}
	return screenServiceResult{Service: screens, Watcher: watcher}, nil
}
