package redisstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mohammed-shakir/f1-stats-cache/internal/metrics"
)

func TestMetrics_Incremented(t *testing.T) {
	p := metrics.Init(metrics.Config{})

	rc, _ := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_ = rc.Set(ctx, "m1", []byte("x"), time.Minute)
	_, _, _ = rc.Get(ctx, "m1")
	_ = rc.Del(ctx, "m1")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, op := range []string{"set", "get", "del", "ping"} {
		if !strings.Contains(body, `cache_op_total{op="`+op+`"`) {
			t.Fatalf("missing cache_op_total for %s; got:\n%s", op, body)
		}
	}
	if !strings.Contains(body, `redis_operation_duration_seconds_bucket{op="set"`) {
		t.Fatalf("missing redis_operation_duration_seconds histogram; got:\n%s", body)
	}
}
