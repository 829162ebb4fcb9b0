// Package redisstore wraps Redis client operations used by the cache.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	maintnotifications "github.com/redis/go-redis/v9/maintnotifications"

	"github.com/mohammed-shakir/f1-stats-cache/internal/cache"
	"github.com/mohammed-shakir/f1-stats-cache/internal/core/config"
	"github.com/mohammed-shakir/f1-stats-cache/internal/core/observability"
)

func init() {
	cache.Register("redis", func(ctx context.Context, cfg config.Config) (cache.Backend, error) {
		c, err := New(ctx, cfg.RedisAddr,
			WithPassword(cfg.RedisPassword),
			WithDB(cfg.RedisDB),
		)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
}

type Option func(*redis.Options)

func WithPoolSize(n int) Option {
	return func(o *redis.Options) { o.PoolSize = n }
}

func WithPassword(p string) Option {
	return func(o *redis.Options) { o.Password = p }
}

func WithDB(db int) Option {
	return func(o *redis.Options) { o.DB = db }
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.DialTimeout = d }
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.ReadTimeout = d }
}

type Client struct {
	rdb *redis.Client
}

func New(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}

	ro := &redis.Options{
		Addr:         addr,
		PoolSize:     16,
		MinIdleConns: 2,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	}
	for _, f := range opts {
		f(ro)
	}

	rdb := redis.NewClient(ro)

	start := time.Now()
	err := rdb.Ping(ctx).Err()
	observability.ObserveCacheOp("ping", err, time.Since(start).Seconds())
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// Get returns found=false for a missing or expired key.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveCacheOp("get", nil, time.Since(start).Seconds())
		return nil, false, nil
	}
	observability.ObserveCacheOp("get", err, time.Since(start).Seconds())
	if err != nil {
		return nil, false, fmt.Errorf("redis GET %q: %w", key, err)
	}
	return b, true, nil
}

func (c *Client) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	start := time.Now()
	err := c.rdb.Set(ctx, key, val, ttl).Err()
	observability.ObserveCacheOp("set", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis SET %q: %w", key, err)
	}
	return nil
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	start := time.Now()
	err := c.rdb.Del(ctx, keys...).Err()
	observability.ObserveCacheOp("del", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis DEL %d keys: %w", len(keys), err)
	}
	return nil
}

const flushBatch = 500

// Flush drops the whole database when prefix is empty, otherwise it scans for
// prefix* and deletes in batches.
func (c *Client) Flush(ctx context.Context, prefix string) error {
	start := time.Now()
	if prefix == "" {
		err := c.rdb.FlushDB(ctx).Err()
		observability.ObserveCacheOp("flush", err, time.Since(start).Seconds())
		if err != nil {
			return fmt.Errorf("redis FLUSHDB: %w", err)
		}
		return nil
	}

	var (
		cursor uint64
		batch  []string
		err    error
	)
	for {
		var page []string
		page, cursor, err = c.rdb.Scan(ctx, cursor, globEscape(prefix)+"*", flushBatch).Result()
		if err != nil {
			break
		}
		batch = append(batch, page...)
		if len(batch) >= flushBatch {
			if err = c.rdb.Del(ctx, batch...).Err(); err != nil {
				break
			}
			batch = batch[:0]
		}
		if cursor == 0 {
			break
		}
	}
	if err == nil && len(batch) > 0 {
		err = c.rdb.Del(ctx, batch...).Err()
	}
	observability.ObserveCacheOp("flush", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis flush prefix %q: %w", prefix, err)
	}
	return nil
}

// globEscape quotes the characters SCAN MATCH treats as pattern syntax.
func globEscape(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (c *Client) Ping(ctx context.Context) error {
	start := time.Now()
	err := c.rdb.Ping(ctx).Err()
	observability.ObserveCacheOp("ping", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}
