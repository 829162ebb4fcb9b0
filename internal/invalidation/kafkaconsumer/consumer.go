// Package kafkaconsumer applies invalidation events from Kafka to the cache.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/IBM/sarama"

	obs "github.com/mohammed-shakir/f1-stats-cache/internal/core/observability"
	"github.com/mohammed-shakir/f1-stats-cache/internal/invalidation"
	mylog "github.com/mohammed-shakir/f1-stats-cache/internal/logger"
)

// Deleter is satisfied by *cache.Store.
type Deleter interface {
	Delete(ctx context.Context, keys ...string) (int, error)
}

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	cache  Deleter
	dedupe *versionDedupe

	mu    sync.Mutex
	parts []int32
	ready bool
}

func New(cfg Config, logger *slog.Logger, c Deleter) *Consumer {
	if logger == nil {
		logger = mylog.Discard()
	}
	return &Consumer{
		cfg:    cfg,
		logger: logger,
		cache:  c,
		dedupe: newVersionDedupe(cfg.DedupeSize),
	}
}

// Readiness reports whether the group session is up and which partitions of
// the topic this member owns.
func (c *Consumer) Readiness() (bool, []int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready, slices.Clone(c.parts)
}

func (c *Consumer) assigned(parts []int32) {
	c.mu.Lock()
	c.parts = slices.Clone(parts)
	c.ready = parts != nil
	c.mu.Unlock()
	c.logger.Info("invalidation partitions assigned", "partitions", parts)
}

// Start joins the consumer group and processes events until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	if c.cache == nil {
		return errors.New("kafkaconsumer: missing cache")
	}
	if len(c.cfg.Brokers) == 0 || c.cfg.Topic == "" {
		return errors.New("kafkaconsumer: brokers and topic are required")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{topic: c.cfg.Topic, process: c.ProcessOne, onAssign: c.assigned}
	ctx = mylog.WithComponent(ctx, "kafka_consumer")

	c.logger.InfoContext(ctx, "kafka invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "kafka invalidation consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				if ctx.Err() != nil {
					continue
				}
				c.logger.ErrorContext(ctx, "kafka consumer error", "err", err, "topic", c.cfg.Topic)
				select {
				case <-ctx.Done():
				case <-time.After(2 * time.Second):
				}
			}
		}
	}
}

// ProcessOne applies one event. Malformed events are logged and skipped so
// they do not block the partition; a failed delete is returned for redelivery.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	log := c.logger.With("topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)

	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		obs.ObserveInvalidation("invalid", 0)
		log.WarnContext(ctx, "invalidation event undecodable, skipping", "err", err)
		return nil
	}
	if err := ev.Validate(); err != nil {
		obs.ObserveInvalidation("invalid", 0)
		log.WarnContext(ctx, "invalidation event rejected, skipping", "err", err, "op", ev.Op)
		return nil
	}

	dk, order := ev.DedupeKey(), ev.Order()
	if c.dedupe.seen(dk, order) {
		obs.ObserveInvalidation("skipped", 0)
		log.DebugContext(ctx, "invalidation event already applied", "season", ev.Season, "round", ev.Round)
		return nil
	}

	n, err := c.cache.Delete(ctx, ev.Keys()...)
	if err != nil {
		obs.ObserveInvalidation("error", 0)
		log.ErrorContext(ctx, "invalidation delete failed", "err", err, "season", ev.Season)
		return fmt.Errorf("cache delete: %w", err)
	}
	c.dedupe.record(dk, order)

	obs.ObserveInvalidation("ok", n)
	log.InfoContext(ctx, "invalidated keys",
		"op", ev.Op, "season", ev.Season, "round", ev.Round, "keys", n)
	return nil
}
