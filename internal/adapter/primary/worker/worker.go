package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ruudy-sib/resync/internal/domain"
	"github.com/ruudy-sib/resync/internal/domain/entity"
	"github.com/ruudy-sib/resync/internal/port/secondary"
)

// Worker relays a realtime source into the topic bus, reconnecting with
// capped exponential backoff whenever the source fails.
// It respects context cancellation for graceful shutdown.
type Worker struct {
	source            secondary.RealtimeSource
	bus               secondary.TopicBus
	reconnectInterval time.Duration
	maxBackoff        time.Duration
	logger            *zap.Logger

	relayed   atomic.Uint64
	reconnect atomic.Uint64
}

// NewWorker creates a Worker that reconnects after reconnectInterval,
// doubling the wait on consecutive failures up to domain.MaxReconnectInterval.
func NewWorker(
	source secondary.RealtimeSource,
	bus secondary.TopicBus,
	reconnectInterval time.Duration,
	logger *zap.Logger,
) *Worker {
	if reconnectInterval <= 0 {
		reconnectInterval = domain.DefaultReconnectInterval
	}
	return &Worker{
		source:            source,
		bus:               bus,
		reconnectInterval: reconnectInterval,
		maxBackoff:        domain.MaxReconnectInterval,
		logger:            logger.Named("worker"),
	}
}

// Run starts the relay loop. It blocks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("worker started",
		zap.String("source", w.source.Name()),
		zap.Duration("reconnect_interval", w.reconnectInterval),
	)

	backoff := w.reconnectInterval
	for {
		var received atomic.Bool
		err := w.source.Listen(ctx, func(event entity.TopicEvent) {
			received.Store(true)
			w.relayed.Add(1)
			w.bus.Publish(event)
		})

		if ctx.Err() != nil {
			w.logger.Info("worker shutting down")
			return ctx.Err()
		}

		// A connection that delivered events was healthy; start over.
		if received.Load() {
			backoff = w.reconnectInterval
		}

		switch {
		case err == nil, errors.Is(err, domain.ErrSourceClosed):
			w.logger.Warn("realtime source closed, reconnecting", zap.Duration("backoff", backoff))
		default:
			// Log but do not return -- the worker should keep running.
			w.logger.Error("realtime source failed", zap.Error(err), zap.Duration("backoff", backoff))
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			w.logger.Info("worker shutting down")
			return ctx.Err()
		case <-timer.C:
		}
		w.reconnect.Add(1)

		backoff *= 2
		if backoff > w.maxBackoff {
			backoff = w.maxBackoff
		}
	}
}

// Relayed returns how many events reached the bus.
func (w *Worker) Relayed() uint64 { return w.relayed.Load() }

// Reconnects returns how many times the source was reopened.
func (w *Worker) Reconnects() uint64 { return w.reconnect.Load() }
