package invalidation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
)

// Publisher sends invalidation events. Messages are keyed by season so every
// event for one season lands on the same partition, in order.
type Publisher struct {
	topic string
	prod  sarama.SyncProducer
}

func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 3

	prod, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("invalidation: create producer: %w", err)
	}
	return newPublisher(prod, topic), nil
}

func newPublisher(prod sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{topic: topic, prod: prod}
}

// Publish validates ev and blocks until the broker acknowledges it.
func (p *Publisher) Publish(ctx context.Context, ev Event) (partition int32, offset int64, err error) {
	if err := ev.Validate(); err != nil {
		return 0, 0, fmt.Errorf("invalidation: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return 0, 0, fmt.Errorf("invalidation: marshal: %w", err)
	}
	partition, offset, err = p.prod.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.Season),
		Value: sarama.ByteEncoder(b),
	})
	if err != nil {
		return 0, 0, fmt.Errorf("invalidation: send: %w", err)
	}
	return partition, offset, nil
}

func (p *Publisher) Close() error {
	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("invalidation: close producer: %w", err)
	}
	return nil
}
