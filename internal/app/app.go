// Package app wires the cache, upstream client and data service from config.
// Both binaries share it so they see the same cache namespace and policy.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/f1-stats-cache/internal/cache"
	_ "github.com/mohammed-shakir/f1-stats-cache/internal/cache/memstore"
	_ "github.com/mohammed-shakir/f1-stats-cache/internal/cache/redisstore"
	"github.com/mohammed-shakir/f1-stats-cache/internal/core/config"
	"github.com/mohammed-shakir/f1-stats-cache/internal/core/httpclient"
	"github.com/mohammed-shakir/f1-stats-cache/internal/ergast"
	"github.com/mohammed-shakir/f1-stats-cache/internal/upstream"
)

type Stack struct {
	Store    *cache.Store
	Upstream *upstream.Client
	Service  *ergast.Service
	Policy   ergast.Policy
}

// Build never fails: an unreachable cache is logged and the stack serves
// straight from upstream until the backend comes back.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) *Stack {
	store := cache.Open(cfg, logger.With("component", "cache"))

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if st, err := store.Status(pingCtx); err != nil {
		logger.Warn("cache not reachable at startup", "status", st, "err", err)
	} else {
		logger.Info("cache ready", "status", st, "driver", cfg.CacheDriver)
	}

	up := upstream.New(upstream.Options{
		BaseURL:    cfg.BaseURL,
		HTTP:       httpclient.NewOutbound(cfg.UpstreamTimeout),
		Retries:    cfg.UpstreamRetries,
		RetryDelay: cfg.UpstreamRetryDelay,
		Spacing:    cfg.UpstreamRequestSpacing,
		Logger:     logger.With("component", "upstream"),
	})
	policy := ergast.Policy{CompleteTTL: cfg.CacheTTL, LiveTTL: cfg.CacheTTLLive}
	svc := ergast.New(up, store, ergast.Options{
		Policy:      policy,
		PageSize:    cfg.LapsPageSize,
		MaxParallel: cfg.LapsMaxParallel,
		Logger:      logger.With("component", "ergast"),
	})
	return &Stack{Store: store, Upstream: up, Service: svc, Policy: svc.Policy()}
}

func (s *Stack) Close() error { return s.Store.Close() }
