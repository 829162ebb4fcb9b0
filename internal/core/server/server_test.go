package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mohammed-shakir/f1-stats-cache/internal/cache"
	"github.com/mohammed-shakir/f1-stats-cache/internal/core/config"
	"github.com/mohammed-shakir/f1-stats-cache/internal/core/health"
	"github.com/mohammed-shakir/f1-stats-cache/internal/core/router"
	"github.com/mohammed-shakir/f1-stats-cache/internal/ergast"
	mylog "github.com/mohammed-shakir/f1-stats-cache/internal/logger"
	"github.com/mohammed-shakir/f1-stats-cache/internal/upstream"
)

func testHandler(t *testing.T, metrics bool) http.Handler {
	t.Helper()
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"MRData":{"SeasonTable":{"Seasons":[{"season":"2021"}]}}}`))
	}))
	t.Cleanup(up.Close)

	store := cache.New(nil, cache.Options{})
	svc := ergast.New(upstream.New(upstream.Options{BaseURL: up.URL, Retries: 1}), store, ergast.Options{})
	cfg := config.Defaults()
	cfg.MetricsEnabled = metrics
	logger := mylog.Discard()
	return Handler(cfg, logger, router.New(svc, store, logger), health.Readiness(store, nil))
}

func TestHandler_Routes(t *testing.T) {
	h := testHandler(t, true)
	for _, c := range []struct {
		path string
		want string
	}{
		{"/healthz", "ok"},
		{"/readyz", `"cache":"disabled"`},
		{"/api/seasons", `"season":"2021"`},
		{"/metrics", "http_requests_total"},
	} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, c.path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status=%d", c.path, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), c.want) {
			t.Fatalf("%s: body=%s want %s", c.path, rr.Body.String(), c.want)
		}
		if rr.Header().Get("X-Request-ID") == "" {
			t.Fatalf("%s: missing X-Request-ID", c.path)
		}
	}
}

func TestHandler_MetricsDisabled(t *testing.T) {
	rr := httptest.NewRecorder()
	testHandler(t, false).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d want 404", rr.Code)
	}
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	cfg := config.Defaults()
	cfg.Addr = addr
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, mylog.Discard(), testHandler(t, false)) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(11 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
