// Package memstore is an in-process cache backend for single-instance runs and
// tests. It is bounded by entry count and evicts least recently used first.
package memstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/f1-stats-cache/internal/cache"
	"github.com/mohammed-shakir/f1-stats-cache/internal/core/config"
	"github.com/mohammed-shakir/f1-stats-cache/internal/core/observability"
)

func init() {
	cache.Register("memory", func(_ context.Context, cfg config.Config) (cache.Backend, error) {
		s, err := New(cfg.CacheMemorySize)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

type entry struct {
	b   []byte
	exp time.Time
}

type Store struct {
	mu  sync.Mutex
	lru *lru.Cache[string, entry]
	now func() time.Time
}

func New(size int) (*Store, error) {
	c, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("memstore: %w", err)
	}
	return &Store{lru: c, now: time.Now}, nil
}

// SetClock replaces the time source, for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && !s.now().Before(e.exp) {
		s.lru.Remove(key)
		return nil, false, nil
	}
	return e.b, true, nil
}

func (s *Store) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := entry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = s.now().Add(ttl)
	}
	if evicted := s.lru.Add(key, e); evicted {
		observability.ObserveCacheOp("evict", nil, 0)
	}
	return nil
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.lru.Remove(k)
	}
	return nil
}

func (s *Store) Flush(ctx context.Context, prefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prefix == "" {
		s.lru.Purge()
		return nil
	}
	for _, k := range s.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			s.lru.Remove(k)
		}
	}
	return nil
}

func (s *Store) Len() int { return s.lru.Len() }

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }
