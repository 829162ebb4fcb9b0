package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mohammed-shakir/f1-stats-cache/internal/core/config"
	mylog "github.com/mohammed-shakir/f1-stats-cache/internal/logger"
)

// Factory connects a backend from configuration.
type Factory func(ctx context.Context, cfg config.Config) (Backend, error)

var (
	regMu sync.RWMutex
	reg   = map[string]Factory{}
)

// Register makes a backend available under name. Backends call it from init.
func Register(name string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	reg[name] = f
}

// Drivers lists the registered backend names.
func Drivers() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(reg))
	for n := range reg {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func lookup(name string) (Factory, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	f, ok := reg[name]
	return f, ok
}

// Open builds the store for cfg.CacheDriver. It never fails: "none", or a
// driver nobody registered, yields a pass-through store. The backend itself is
// dialed on first use.
func Open(cfg config.Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = mylog.Discard()
	}
	opts := Options{
		DefaultTTL: cfg.CacheTTL,
		OpTimeout:  cfg.CacheOpTimeout,
		KeyPrefix:  cfg.CacheKeyPrefix,
		Logger:     logger,
	}
	if cfg.CacheDriver == "" || cfg.CacheDriver == "none" {
		logger.Info("cache disabled, all reads go upstream")
		return New(nil, opts)
	}
	f, ok := lookup(cfg.CacheDriver)
	if !ok {
		logger.Warn("unknown cache driver; caching disabled",
			"driver", cfg.CacheDriver, "available", Drivers())
		return New(nil, opts)
	}
	return NewLazy(func(ctx context.Context) (Backend, error) {
		b, err := f(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("cache driver %s: %w", cfg.CacheDriver, err)
		}
		return b, nil
	}, opts)
}
