package realtimefactory

import (
	"errors"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ruudy-sib/resync/internal/config"
	"github.com/ruudy-sib/resync/internal/domain"
)

func TestFactory_Source(t *testing.T) {
	redis := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"})
	defer redis.Close()

	tests := []struct {
		name      string
		transport string
		redis     goredis.UniversalClient
		wantName  string
		wantNil   bool
		wantErr   bool
	}{
		{name: "none", transport: config.TransportNone, wantNil: true},
		{name: "empty", transport: "", wantNil: true},
		{name: "websocket", transport: config.TransportWebsocket, wantName: "websocket"},
		{name: "redis", transport: config.TransportRedis, redis: redis, wantName: "redis"},
		{name: "redis without client", transport: config.TransportRedis, wantErr: true},
		{name: "kafka", transport: config.TransportKafka, wantName: "kafka"},
		{name: "unknown", transport: "sse", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				RealtimeSource: tt.transport,
				RealtimeWSURL:  "ws://localhost/realtime",
				KafkaBrokers:   []string{"localhost:9092"},
				KafkaTopic:     "resync.realtime",
			}
			src, err := NewFactory(cfg, tt.redis, zap.NewNop()).Source()

			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidConfig) {
					t.Fatalf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNil {
				if src != nil {
					t.Fatalf("expected no source, got %s", src.Name())
				}
				return
			}
			if src == nil || src.Name() != tt.wantName {
				t.Fatalf("expected %s source, got %v", tt.wantName, src)
			}
		})
	}
}

func TestFactory_Publisher(t *testing.T) {
	redis := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"})
	defer redis.Close()

	tests := []struct {
		name      string
		transport string
		redis     goredis.UniversalClient
		wantNil   bool
		wantErr   bool
	}{
		{name: "none", transport: config.TransportNone, wantNil: true},
		{name: "redis", transport: config.TransportRedis, redis: redis},
		{name: "redis without client", transport: config.TransportRedis, wantErr: true},
		{name: "kafka", transport: config.TransportKafka},
		{name: "websocket is receive only", transport: config.TransportWebsocket, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				RealtimePublisher: tt.transport,
				KafkaBrokers:      []string{"localhost:9092"},
				KafkaTopic:        "resync.realtime",
			}
			pub, err := NewFactory(cfg, tt.redis, zap.NewNop()).Publisher()

			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidConfig) {
					t.Fatalf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (pub == nil) != tt.wantNil {
				t.Fatalf("unexpected publisher %v", pub)
			}
			if pub != nil {
				if err := pub.Close(); err != nil {
					t.Fatalf("unexpected close error: %v", err)
				}
			}
		})
	}
}
