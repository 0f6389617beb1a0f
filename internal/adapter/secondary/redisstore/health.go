package redisstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/ruudy-sib/resync/internal/config"
	"github.com/ruudy-sib/resync/internal/port/secondary"
)

// HealthCheck implements secondary.HealthChecker for the Redis connection
// behind the realtime transports.
type HealthCheck struct {
	client redis.UniversalClient
	mode   string
	roles  []string
}

// NewHealthCheck creates a Redis health checker named after the realtime
// roles Redis serves in cfg, e.g. "redis:source+publisher".
func NewHealthCheck(client redis.UniversalClient, cfg *config.Config) secondary.HealthChecker {
	var roles []string
	if cfg.RealtimeSource == config.TransportRedis {
		roles = append(roles, "source")
	}
	if cfg.RealtimePublisher == config.TransportRedis {
		roles = append(roles, "publisher")
	}
	return &HealthCheck{client: client, mode: modeName(cfg.RedisMode), roles: roles}
}

// Name returns the name of this health check.
func (h *HealthCheck) Name() string {
	if len(h.roles) == 0 {
		return "redis"
	}
	return "redis:" + strings.Join(h.roles, "+")
}

// Check pings Redis to verify connectivity.
func (h *HealthCheck) Check(ctx context.Context) error {
	if err := h.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s ping: %w", h.mode, err)
	}
	return nil
}
