package kafkaconsumer

import (
	"time"

	"github.com/mohammed-shakir/f1-stats-cache/internal/core/config"
)

type Config struct {
	Brokers             []string
	Topic               string
	GroupID             string
	SessionTimeout      time.Duration
	Heartbeat           time.Duration
	RebalanceTimeout    time.Duration
	InitialOffsetOldest bool
	DedupeSize          int
}

func FromConfig(c config.InvalidationCfg) Config {
	return Config{
		Brokers:             config.SplitCSV(c.Brokers),
		Topic:               c.Topic,
		GroupID:             c.GroupID,
		SessionTimeout:      30 * time.Second,
		Heartbeat:           3 * time.Second,
		RebalanceTimeout:    30 * time.Second,
		InitialOffsetOldest: false,
		DedupeSize:          4096,
	}
}
