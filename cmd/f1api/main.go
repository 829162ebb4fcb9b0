package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/f1-stats-cache/internal/app"
	"github.com/mohammed-shakir/f1-stats-cache/internal/core/config"
	"github.com/mohammed-shakir/f1-stats-cache/internal/core/health"
	"github.com/mohammed-shakir/f1-stats-cache/internal/core/observability"
	"github.com/mohammed-shakir/f1-stats-cache/internal/core/router"
	"github.com/mohammed-shakir/f1-stats-cache/internal/core/server"
	"github.com/mohammed-shakir/f1-stats-cache/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/f1-stats-cache/internal/logger"
	"github.com/mohammed-shakir/f1-stats-cache/internal/metrics"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to a TOML config file (defaults to $F1_CONFIG)")
	prefetch := flag.String("prefetch", "", "warm the cache for season/round (e.g. 2023/5) before serving")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 2
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Service:   "f1api",
		Component: "api",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting f1api",
		"addr", cfg.Addr,
		"version", Version,
		"upstream", cfg.BaseURL,
		"cache", cfg.CacheDriver)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := app.Build(ctx, cfg, appLog)
	defer func() { _ = st.Close() }()
	store, svc := st.Store, st.Service

	if *prefetch != "" {
		season, round, _ := strings.Cut(*prefetch, "/")
		if round == "" {
			round = "1"
		}
		start := time.Now()
		if err := svc.Prefetch(ctx, season, round); err != nil {
			appLog.Warn("prefetch failed", "season", season, "round", round, "err", err)
		} else {
			appLog.Info("prefetch done", "season", season, "round", round, "took", time.Since(start).String())
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	var consumer health.ReadinessReporter
	if cfg.Invalidation.Enabled {
		c := kafkaconsumer.New(kafkaconsumer.FromConfig(cfg.Invalidation), appLog.With("component", "invalidation"), store)
		consumer = c
		g.Go(func() error {
			// invalidation is optional; losing it leaves entries to expire by TTL
			if err := c.Start(gctx); err != nil {
				appLog.Error("invalidation consumer stopped", "err", err)
			}
			return nil
		})
	}

	if cfg.MetricsEnabled {
		p := metrics.Init(metrics.Config{
			Enabled: true,
			Addr:    cfg.MetricsAddr,
			Path:    cfg.MetricsPath,
			Build: metrics.BuildInfo{
				Version:   Version,
				Revision:  os.Getenv("BUILD_REVISION"),
				Branch:    os.Getenv("BUILD_BRANCH"),
				BuildDate: os.Getenv("BUILD_DATE"),
			},
			Logger: appLog,
		})
		g.Go(func() error { return p.Serve(gctx, appLog) })
	}

	api := router.New(svc, store, appLog)
	h := server.Handler(cfg, appLog, api, health.Readiness(store, consumer))
	g.Go(func() error { return server.Run(gctx, cfg, appLog, h) })

	if err := g.Wait(); err != nil {
		appLog.Error("server error", "err", err)
		return 1
	}
	appLog.Info("shutdown complete")
	return 0
}
