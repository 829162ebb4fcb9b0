package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLiveness_Handler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	Liveness()(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	ct := rr.Header().Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content-type=%q want text/plain", ct)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "ok" {
		t.Fatalf("body=%q want ok", got)
	}
	if cc := rr.Header().Get("Cache-Control"); cc != "no-store" {
		t.Fatalf("cache-control=%q want no-store", cc)
	}
}

type fakeCache struct {
	st  string
	err error
}

func (f fakeCache) Status(context.Context) (string, error) { return f.st, f.err }

type fakeConsumer struct {
	ready bool
	parts []int32
}

func (f fakeConsumer) Readiness() (bool, []int32) { return f.ready, f.parts }

func readiness(t *testing.T, c CacheStatus, rr ReadinessReporter) map[string]any {
	t.Helper()
	rec := httptest.NewRecorder()
	Readiness(c, rr)(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rec.Code)
	}
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v body=%s", err, rec.Body.String())
	}
	return out
}

func TestReadiness_CacheOK(t *testing.T) {
	out := readiness(t, fakeCache{st: "ok"}, nil)
	if out["status"] != "ready" || out["cache"] != "ok" {
		t.Fatalf("body=%v", out)
	}
	if _, ok := out["invalidation"]; ok {
		t.Fatalf("invalidation should be omitted when nil: %v", out)
	}
}

func TestReadiness_DegradedCacheStill200(t *testing.T) {
	out := readiness(t, fakeCache{st: "degraded", err: errors.New("dial tcp: refused")}, nil)
	if out["status"] != "degraded" || out["cache"] != "degraded" {
		t.Fatalf("body=%v", out)
	}
	if out["cache_error"] != "dial tcp: refused" {
		t.Fatalf("cache_error=%v", out["cache_error"])
	}
}

func TestReadiness_ConsumerPartitions(t *testing.T) {
	out := readiness(t, fakeCache{st: "ok"}, fakeConsumer{ready: true, parts: []int32{0, 2}})
	inv, ok := out["invalidation"].(map[string]any)
	if !ok || inv["ready"] != true {
		t.Fatalf("invalidation=%v", out["invalidation"])
	}
	if parts, _ := inv["partitions"].([]any); len(parts) != 2 {
		t.Fatalf("partitions=%v want 2", inv["partitions"])
	}

	out = readiness(t, nil, fakeConsumer{})
	if out["status"] != "degraded" || out["cache"] != "disabled" {
		t.Fatalf("body=%v", out)
	}
}
