package realtimefactory

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ruudy-sib/resync/internal/adapter/secondary/kafkastream"
	"github.com/ruudy-sib/resync/internal/adapter/secondary/redisstore"
	"github.com/ruudy-sib/resync/internal/adapter/secondary/wssource"
	"github.com/ruudy-sib/resync/internal/config"
	"github.com/ruudy-sib/resync/internal/domain"
	"github.com/ruudy-sib/resync/internal/port/secondary"
)

// Factory builds the realtime source and publisher selected by configuration.
type Factory struct {
	cfg    *config.Config
	redis  goredis.UniversalClient
	logger *zap.Logger
}

// NewFactory creates a factory. redis may be nil when no redis transport is configured.
func NewFactory(cfg *config.Config, redis goredis.UniversalClient, logger *zap.Logger) *Factory {
	return &Factory{
		cfg:    cfg,
		redis:  redis,
		logger: logger.Named("realtime-factory"),
	}
}

// Source returns the configured realtime source, or nil for "none".
func (f *Factory) Source() (secondary.RealtimeSource, error) {
	switch f.cfg.RealtimeSource {
	case config.TransportNone, "":
		f.logger.Info("realtime source disabled")
		return nil, nil
	case config.TransportWebsocket:
		f.logger.Debug("routing to websocket source", zap.String("url", f.cfg.RealtimeWSURL))
		return wssource.NewSource(f.cfg, f.logger), nil
	case config.TransportRedis:
		if f.redis == nil {
			return nil, fmt.Errorf("%w: redis source needs a redis client", domain.ErrInvalidConfig)
		}
		f.logger.Debug("routing to redis source")
		return redisstore.NewSource(f.redis, f.logger), nil
	case config.TransportKafka:
		f.logger.Debug("routing to kafka source", zap.String("topic", f.cfg.KafkaTopic))
		return kafkastream.NewSource(f.cfg, f.logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown realtime source %q", domain.ErrInvalidConfig, f.cfg.RealtimeSource)
	}
}

// Publisher returns the configured topic publisher, or nil for "none".
func (f *Factory) Publisher() (secondary.TopicPublisher, error) {
	switch f.cfg.RealtimePublisher {
	case config.TransportNone, "":
		return nil, nil
	case config.TransportRedis:
		if f.redis == nil {
			return nil, fmt.Errorf("%w: redis publisher needs a redis client", domain.ErrInvalidConfig)
		}
		f.logger.Debug("routing to redis publisher")
		return redisstore.NewPublisher(f.redis, f.logger), nil
	case config.TransportKafka:
		f.logger.Debug("routing to kafka publisher", zap.String("topic", f.cfg.KafkaTopic))
		return kafkastream.NewPublisher(f.cfg, f.logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown realtime publisher %q", domain.ErrInvalidConfig, f.cfg.RealtimePublisher)
	}
}
