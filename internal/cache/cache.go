// Package cache implements the TTL cache that sits in front of every upstream
// fetch. The store never fails a caller because of the backend: an absent,
// unreachable or misbehaving backend degrades to calling the fetcher directly.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mohammed-shakir/f1-stats-cache/internal/cache/keys"
	"github.com/mohammed-shakir/f1-stats-cache/internal/core/observability"
	mylog "github.com/mohammed-shakir/f1-stats-cache/internal/logger"
)

// Backend is a byte-oriented key/value store with per-entry TTL.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	// Flush removes every key starting with prefix; "" removes everything.
	Flush(ctx context.Context, prefix string) error
	Ping(ctx context.Context) error
	Close() error
}

// DialFunc connects a backend. It is called lazily, on first use.
type DialFunc func(ctx context.Context) (Backend, error)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusDisabled = "disabled"
)

type Options struct {
	DefaultTTL  time.Duration
	OpTimeout   time.Duration
	KeyPrefix   string
	DialTimeout time.Duration
	RedialAfter time.Duration
	Logger      *slog.Logger
	// Now is the clock used for redial backoff; nil means time.Now.
	Now func() time.Time
}

type Store struct {
	dial      DialFunc
	ttl       time.Duration
	opTimeout time.Duration
	prefix    string
	dialTO    time.Duration
	redial    time.Duration
	log       *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	backend  Backend
	dialing  bool
	nextDial time.Time
	lastErr  error

	group singleflight.Group
}

// New wraps an already connected backend. A nil backend yields a
// pass-through store.
func New(b Backend, opts Options) *Store {
	s := newStore(nil, opts)
	s.backend = b
	return s
}

// NewLazy defers connecting until the first cache operation. A failed dial
// leaves the store in pass-through mode until RedialAfter elapses.
func NewLazy(dial DialFunc, opts Options) *Store {
	return newStore(dial, opts)
}

func newStore(dial DialFunc, opts Options) *Store {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 24 * time.Hour
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 2 * time.Second
	}
	if opts.RedialAfter <= 0 {
		opts.RedialAfter = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = mylog.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		dial:      dial,
		ttl:       opts.DefaultTTL,
		opTimeout: opts.OpTimeout,
		prefix:    opts.KeyPrefix,
		dialTO:    opts.DialTimeout,
		redial:    opts.RedialAfter,
		log:       opts.Logger,
		now:       opts.Now,
	}
}

// DefaultTTL is the TTL applied when callers pass zero.
func (s *Store) DefaultTTL() time.Duration { return s.ttl }

// Prefix is the namespace prepended to every key.
func (s *Store) Prefix() string { return s.prefix }

// acquire returns the live backend, dialing it when due. nil means pass-through.
// Only one caller dials; the others pass through until it finishes.
func (s *Store) acquire(ctx context.Context) Backend {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if s.backend != nil || s.dial == nil {
		b := s.backend
		s.mu.Unlock()
		return b
	}
	if s.dialing || s.now().Before(s.nextDial) {
		s.mu.Unlock()
		return nil
	}
	s.dialing = true
	s.mu.Unlock()

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.dialTO)
	b, err := s.dial(dctx)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialing = false
	if err != nil {
		s.lastErr = err
		s.nextDial = s.now().Add(s.redial)
		s.log.WarnContext(ctx, "cache backend unavailable, fetching directly",
			"err", err, "retry_in", s.redial.String())
		return nil
	}
	s.backend = b
	s.lastErr = nil
	s.log.InfoContext(ctx, "cache backend connected")
	return b
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// GetCachedData returns the cached value for k when present and unexpired.
// Otherwise it calls fetcher, stores the result for ttl (zero uses the store
// default) and returns it. Backend failures are logged and treated as a miss;
// fetcher errors are returned unchanged and nothing is cached. Concurrent
// misses on the same key share one fetcher call.
func GetCachedData[T any](ctx context.Context, s *Store, k keys.Key, ttl time.Duration, fetcher func(context.Context) (T, error)) (T, error) {
	if s == nil {
		observability.IncCacheBypass(k.Resource)
		return fetcher(ctx)
	}
	key := s.prefix + k.String()
	ctx = mylog.WithResource(ctx, k.Resource)

	ch := s.group.DoChan(key, func() (any, error) {
		// shared by every waiter, so detach from the first caller's cancellation
		return load(context.WithoutCancel(ctx), s, k.Resource, key, ttl, fetcher)
	})

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			var zero T
			return zero, r.Err
		}
		v, ok := r.Val.(T)
		if !ok {
			// same key reused for another type; do not trust the shared value
			return fetcher(ctx)
		}
		return v, nil
	}
}

func load[T any](ctx context.Context, s *Store, resource, key string, ttl time.Duration, fetcher func(context.Context) (T, error)) (T, error) {
	b := s.acquire(ctx)
	if b == nil {
		observability.IncCacheBypass(resource)
		return fetcher(ctx)
	}

	octx, cancel := s.opCtx(ctx)
	raw, found, err := b.Get(octx, key)
	cancel()
	switch {
	case err != nil:
		s.log.WarnContext(ctx, "cache get failed, treating as miss", "key", key, "err", err)
	case found:
		var v T
		derr := json.Unmarshal(raw, &v)
		if derr == nil {
			observability.IncCacheHit(resource)
			s.log.DebugContext(mylog.WithCacheOutcome(ctx, "hit"), "cache hit", "key", key)
			return v, nil
		}
		s.log.WarnContext(ctx, "cache entry undecodable, refetching", "key", key, "err", derr)
	}

	observability.IncCacheMiss(resource)
	s.log.DebugContext(mylog.WithCacheOutcome(ctx, "miss"), "cache miss", "key", key)

	v, err := fetcher(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	if ttl <= 0 {
		ttl = s.ttl
	}
	enc, err := json.Marshal(v)
	if err != nil {
		s.log.WarnContext(ctx, "cache encode failed, not storing", "key", key, "err", err)
		return v, nil
	}
	octx, cancel = s.opCtx(ctx)
	defer cancel()
	if err := b.Set(octx, key, enc, ttl); err != nil {
		s.log.WarnContext(ctx, "cache set failed", "key", key, "err", err)
	}
	return v, nil
}

// Clear removes a single entry. key is the unprefixed key string.
func (s *Store) Clear(ctx context.Context, key string) {
	s.ClearKeys(ctx, key)
}

// ClearKeys removes several unprefixed keys in one backend call and reports
// how many were requested. Failures are logged and reported as zero.
func (s *Store) ClearKeys(ctx context.Context, ks ...string) int {
	n, err := s.Delete(ctx, ks...)
	if err != nil {
		s.log.WarnContext(ctx, "cache clear failed", "keys", len(ks), "err", err)
		return 0
	}
	if n > 0 {
		s.log.InfoContext(ctx, "cache cleared", "keys", n)
	}
	return n
}

// Delete is ClearKeys with the backend error surfaced, for callers that retry.
// A pass-through store deletes nothing and succeeds.
func (s *Store) Delete(ctx context.Context, ks ...string) (int, error) {
	b := s.acquire(ctx)
	if b == nil || len(ks) == 0 {
		return 0, nil
	}
	full := make([]string, 0, len(ks))
	for _, k := range ks {
		full = append(full, s.prefix+k)
	}
	octx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := b.Del(octx, full...); err != nil {
		return 0, fmt.Errorf("cache delete %d keys: %w", len(full), err)
	}
	return len(full), nil
}

// ClearAll wipes every entry in this store's namespace.
func (s *Store) ClearAll(ctx context.Context) {
	b := s.acquire(ctx)
	if b == nil {
		s.log.WarnContext(ctx, "cache not available, nothing to clear")
		return
	}
	// flushing may walk the keyspace; give it more than a single op
	fctx, cancel := context.WithTimeout(ctx, 10*s.opTimeoutOr(time.Second))
	defer cancel()
	if err := b.Flush(fctx, s.prefix); err != nil {
		s.log.WarnContext(ctx, "cache clear all failed", "err", err)
		return
	}
	s.log.InfoContext(ctx, "cache cleared", "prefix", s.prefix)
}

func (s *Store) opTimeoutOr(d time.Duration) time.Duration {
	if s.opTimeout > 0 {
		return s.opTimeout
	}
	return d
}

// Status reports the backend state for readiness probes.
func (s *Store) Status(ctx context.Context) (string, error) {
	if s == nil {
		return StatusDisabled, nil
	}
	s.mu.Lock()
	disabled := s.backend == nil && s.dial == nil
	s.mu.Unlock()
	if disabled {
		return StatusDisabled, nil
	}
	b := s.acquire(ctx)
	if b == nil {
		s.mu.Lock()
		err := s.lastErr
		s.mu.Unlock()
		if err == nil {
			err = errors.New("cache backend not connected")
		}
		return StatusDegraded, err
	}
	octx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := b.Ping(octx); err != nil {
		return StatusDegraded, err
	}
	return StatusOK, nil
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	b := s.backend
	s.backend = nil
	s.mu.Unlock()
	if b == nil {
		return nil
	}
	return b.Close()
}
