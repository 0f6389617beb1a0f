package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ruudy-sib/resync/internal/adapter/primary/configwatch"
	"github.com/ruudy-sib/resync/internal/adapter/primary/worker"
	"github.com/ruudy-sib/resync/internal/config"
	"github.com/ruudy-sib/resync/internal/domain/service"
	"github.com/ruudy-sib/resync/internal/port/secondary"
)

const appName = "resync"

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

type app struct {
	dig.In

	Router      http.Handler
	Worker      *worker.Worker // nil without a realtime source
	Watcher     *configwatch.Watcher
	Screens     *service.ScreenService
	Config      *config.Config
	Logger      *zap.Logger
	RedisClient goredis.UniversalClient
	Fetcher     secondary.Fetcher
	Publisher   secondary.TopicPublisher
	Source      secondary.RealtimeSource
}

func run() error {
	// Root context with cancellation for graceful shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Build the dependency injection container.
	c, err := buildContainer(ctx)
	if err != nil {
		return fmt.Errorf("building container: %w", err)
	}

	// Invoke the application, resolving all dependencies and starting services.
	return c.Invoke(func(a app) error {
		logger := a.Logger
		defer func() {
			if err := a.close(); err != nil {
				logger.Error("error releasing resources", zap.Error(err))
			}
			_ = logger.Sync()
		}()

		logger.Info("starting application",
			zap.String("app", appName),
			zap.String("version", version),
			zap.String("environment", a.Config.Environment),
			zap.String("http_addr", a.Config.HTTPAddr),
			zap.String("api_base_url", a.Config.APIBaseURL),
			zap.String("realtime_source", a.Config.RealtimeSource),
			zap.String("realtime_publisher", a.Config.RealtimePublisher),
		)

		if a.Config.AutoMount {
			if err := a.Screens.MountAll(ctx); err != nil {
				// Screens stay mounted and retry on their own cadence.
				logger.Warn("initial fetch failed for some screens", zap.Error(err))
			}
		}

		bgCtx, bgCancel := context.WithCancel(ctx)
		defer bgCancel()

		errCh := make(chan error, 3)

		// Start the realtime relay.
		if a.Worker != nil {
			go func() {
				errCh <- a.Worker.Run(bgCtx)
			}()
		}

		// Start the screens file watcher.
		if a.Watcher != nil {
			go func() {
				if err := a.Watcher.Watch(bgCtx); err != nil {
					errCh <- fmt.Errorf("config watcher: %w", err)
				}
			}()
		}

		// Start the HTTP server.
		server := &http.Server{
			Addr:              a.Config.HTTPAddr,
			Handler:           a.Router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			logger.Info("http server listening", zap.String("addr", a.Config.HTTPAddr))
			if srvErr := server.ListenAndServe(); srvErr != nil && !errors.Is(srvErr, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server: %w", srvErr)
			}
		}()

		if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
			logger.Warn("sd_notify ready failed", zap.Error(err))
		} else if ok {
			logger.Debug("notified systemd readiness")
		}

		// Wait for shutdown signal.
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		var runErr error
		select {
		case sig := <-quit:
			logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		case srvErr := <-errCh:
			if srvErr != nil && !errors.Is(srvErr, context.Canceled) {
				logger.Error("service error", zap.Error(srvErr))
				runErr = srvErr
			}
		}

		// Graceful shutdown with timeout.
		logger.Info("shutting down gracefully")
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
		cancel()
		bgCancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", zap.Error(err))
		}

		logger.Info("shutdown complete")
		return runErr
	})
}

// close unmounts every screen, then releases the adapters.
func (a app) close() error {
	err := a.Screens.Close()
	if a.Source != nil {
		err = multierr.Append(err, a.Source.Close())
	}
	if a.Publisher != nil {
		err = multierr.Append(err, a.Publisher.Close())
	}
	err = multierr.Append(err, a.Fetcher.Close())
	if a.RedisClient != nil {
		err = multierr.Append(err, a.RedisClient.Close())
	}
	return err
}
