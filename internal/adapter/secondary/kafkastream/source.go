package kafkastream

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ruudy-sib/resync/internal/config"
	"github.com/ruudy-sib/resync/internal/domain/entity"
	"github.com/ruudy-sib/resync/internal/port/secondary"
)

// Source implements secondary.RealtimeSource with kafka-go readers.
//
// Without a group id every instance reads every partition of the topic from
// its tail, one reader per partition, which is what a broadcast of refresh
// signals needs: the publisher hashes each realtime topic onto its own
// partition. With a group id the instances share the partitions instead.
type Source struct {
	brokers []string
	topic   string
	groupID string
	logger  *zap.Logger
}

var _ secondary.RealtimeSource = (*Source)(nil)

// NewSource creates a Kafka source from the application configuration.
func NewSource(cfg *config.Config, logger *zap.Logger) *Source {
	return &Source{
		brokers: cfg.KafkaBrokers,
		topic:   cfg.KafkaTopic,
		groupID: cfg.KafkaGroupID,
		logger:  logger.Named("kafka-source"),
	}
}

// Name returns the transport name.
func (s *Source) Name() string { return "kafka" }

// Listen opens the readers and emits every decodable message until ctx ends
// (nil) or a reader fails.
func (s *Source) Listen(ctx context.Context, emit func(entity.TopicEvent)) error {
	var partitions []int
	if s.groupID == "" {
		var err error
		if partitions, err = s.partitions(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}

	configs := s.readerConfigs(partitions)
	s.logger.Info("reading realtime events",
		zap.Strings("brokers", s.brokers),
		zap.String("topic", s.topic),
		zap.String("group_id", s.groupID),
		zap.Ints("partitions", partitions),
	)

	// Readers share emit; the relay and bus behind it are safe for concurrent use.
	g, gctx := errgroup.WithContext(ctx)
	for _, rc := range configs {
		g.Go(func() error {
			return s.read(gctx, rc, emit)
		})
	}
	return g.Wait()
}

// Close is a no-op; each Listen call owns its readers.
func (s *Source) Close() error { return nil }

// partitions asks the first reachable broker for the topic's partitions.
func (s *Source) partitions(ctx context.Context) ([]int, error) {
	var lastErr error
	for _, broker := range s.brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		parts, err := conn.ReadPartitions(s.topic)
		_ = conn.Close()
		if err != nil {
			lastErr = err
			continue
		}
		ids := PartitionIDs(parts, s.topic)
		if len(ids) == 0 {
			return nil, fmt.Errorf("kafka topic %q has no partitions", s.topic)
		}
		return ids, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no brokers configured")
	}
	return nil, fmt.Errorf("listing partitions of kafka topic %q: %w", s.topic, lastErr)
}

// readerConfigs returns one grouped reader config, or one config per
// partition when the source has no group id.
func (s *Source) readerConfigs(partitions []int) []kafka.ReaderConfig {
	base := kafka.ReaderConfig{
		Brokers:  s.brokers,
		Topic:    s.topic,
		MinBytes: 1,
		MaxBytes: 1 << 20,
		MaxWait:  500 * time.Millisecond,
	}
	if s.groupID != "" {
		base.GroupID = s.groupID
		base.StartOffset = kafka.LastOffset
		return []kafka.ReaderConfig{base}
	}

	configs := make([]kafka.ReaderConfig, 0, len(partitions))
	for _, p := range partitions {
		rc := base
		rc.Partition = p
		configs = append(configs, rc)
	}
	return configs
}

func (s *Source) read(ctx context.Context, rc kafka.ReaderConfig, emit func(entity.TopicEvent)) error {
	reader := kafka.NewReader(rc)
	defer reader.Close()

	if rc.GroupID == "" {
		if err := reader.SetOffset(kafka.LastOffset); err != nil {
			return fmt.Errorf("seeking kafka topic %q partition %d: %w", s.topic, rc.Partition, err)
		}
	}

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("reading kafka topic %q: %w", s.topic, err)
		}

		event, err := DecodeMessage(msg)
		if err != nil {
			s.logger.Warn("skipping realtime message",
				zap.String("key", string(msg.Key)),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			continue
		}
		emit(event)
	}
}

// PartitionIDs returns the sorted partition ids belonging to topic.
func PartitionIDs(partitions []kafka.Partition, topic string) []int {
	ids := make([]int, 0, len(partitions))
	for _, p := range partitions {
		if p.Topic == topic {
			ids = append(ids, p.ID)
		}
	}
	slices.Sort(ids)
	return ids
}
