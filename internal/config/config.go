package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ruudy-sib/resync/internal/domain"
)

// Realtime transports.
const (
	TransportNone      = "none"
	TransportWebsocket = "websocket"
	TransportRedis     = "redis"
	TransportKafka     = "kafka"
)

// Config holds all application configuration values.
type Config struct {
	// HTTP server
	HTTPAddr string

	// Institute REST API
	APIBaseURL string
	APIToken   string
	APITimeout time.Duration

	// Realtime
	RealtimeSource    string // "websocket", "redis", "kafka" or "none"
	RealtimePublisher string // "redis", "kafka" or "none"
	RealtimeWSURL     string
	ReconnectInterval time.Duration

	// Redis
	RedisMode          string // "standalone" (default), "sentinel", "cluster"
	RedisAddr          string // standalone: host:port
	RedisPassword      string
	RedisDB            int
	RedisMasterName    string   // sentinel: master name
	RedisSentinelAddrs []string // sentinel: sentinel node addresses
	RedisClusterAddrs  []string // cluster: cluster node addresses

	// Kafka
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Screens
	ScreensFile string
	AutoMount   bool

	// Application
	Environment string
	LogLevel    string
}

// New creates a Config populated from environment variables with sensible defaults.
func New() *Config {
	cfg := &Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		APIBaseURL:        getEnv("API_BASE_URL", "http://localhost:3000"),
		APIToken:          getEnv("API_TOKEN", ""),
		APITimeout:        getDuration("API_TIMEOUT", 15*time.Second),
		RealtimeSource:    strings.ToLower(getEnv("REALTIME_SOURCE", TransportNone)),
		RealtimePublisher: strings.ToLower(getEnv("REALTIME_PUBLISHER", TransportNone)),
		RealtimeWSURL:     getEnv("REALTIME_WS_URL", "ws://localhost:3000/realtime"),
		ReconnectInterval: getDuration("RECONNECT_INTERVAL", domain.DefaultReconnectInterval),
		RedisMode:         getEnv("REDIS_MODE", "standalone"),
		RedisAddr:         getEnv("REDIS_HOST", "localhost") + ":" + getEnv("REDIS_PORT", "6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getInt("REDIS_DB", 0),
		KafkaBrokers:      splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:        getEnv("KAFKA_TOPIC", "resync.realtime"),
		KafkaGroupID:      getEnv("KAFKA_GROUP_ID", ""),
		ScreensFile:       getEnv("SCREENS_FILE", ""),
		AutoMount:         getBool("AUTO_MOUNT", true),
		Environment:       getEnv("ENVIRONMENT", "local"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}

	if v := getEnv("REDIS_MASTER_NAME", ""); v != "" {
		cfg.RedisMasterName = v
	}
	if v := getEnv("REDIS_SENTINEL_ADDRS", ""); v != "" {
		cfg.RedisSentinelAddrs = splitList(v)
	}
	if v := getEnv("REDIS_CLUSTER_ADDRS", ""); v != "" {
		cfg.RedisClusterAddrs = splitList(v)
	}

	return cfg
}

// Validate checks the combination of values that New cannot default away.
func (c *Config) Validate() error {
	switch c.RealtimeSource {
	case TransportNone, TransportWebsocket, TransportRedis, TransportKafka:
	default:
		return fmt.Errorf("%w: unknown REALTIME_SOURCE %q", domain.ErrInvalidConfig, c.RealtimeSource)
	}
	switch c.RealtimePublisher {
	case TransportNone, TransportRedis, TransportKafka:
	default:
		return fmt.Errorf("%w: unknown REALTIME_PUBLISHER %q", domain.ErrInvalidConfig, c.RealtimePublisher)
	}
	switch c.RedisMode {
	case "", "standalone":
	case "sentinel":
		if c.RedisMasterName == "" || len(c.RedisSentinelAddrs) == 0 {
			return fmt.Errorf("%w: sentinel mode needs REDIS_MASTER_NAME and REDIS_SENTINEL_ADDRS", domain.ErrInvalidConfig)
		}
	case "cluster":
		if len(c.RedisClusterAddrs) == 0 {
			return fmt.Errorf("%w: cluster mode needs REDIS_CLUSTER_ADDRS", domain.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown REDIS_MODE %q", domain.ErrInvalidConfig, c.RedisMode)
	}
	if c.RealtimeSource == TransportWebsocket && c.RealtimeWSURL == "" {
		return fmt.Errorf("%w: REALTIME_WS_URL is required for the websocket source", domain.ErrInvalidConfig)
	}
	if (c.RealtimeSource == TransportKafka || c.RealtimePublisher == TransportKafka) &&
		(len(c.KafkaBrokers) == 0 || c.KafkaTopic == "") {
		return fmt.Errorf("%w: kafka transport needs KAFKA_BROKERS and KAFKA_TOPIC", domain.ErrInvalidConfig)
	}
	if c.PublishLoopsBack() && c.RealtimeSource == TransportKafka && c.KafkaGroupID != "" {
		return fmt.Errorf("%w: a kafka consumer group does not receive every published event; unset KAFKA_GROUP_ID", domain.ErrInvalidConfig)
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("%w: API_TIMEOUT must be positive", domain.ErrInvalidConfig)
	}
	if c.ReconnectInterval <= 0 {
		return fmt.Errorf("%w: RECONNECT_INTERVAL must be positive", domain.ErrInvalidConfig)
	}
	return nil
}

// UsesRedis reports whether any realtime transport needs a Redis client.
func (c *Config) UsesRedis() bool {
	return c.RealtimeSource == TransportRedis || c.RealtimePublisher == TransportRedis
}

// PublishLoopsBack reports whether events sent through the publisher come
// back to this instance through its realtime source.
func (c *Config) PublishLoopsBack() bool {
	return c.RealtimePublisher != TransportNone && c.RealtimePublisher == c.RealtimeSource
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// Bare numbers are seconds.
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if n, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return n
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return b
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
