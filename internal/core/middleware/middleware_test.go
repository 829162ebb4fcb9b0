package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mylog "github.com/mohammed-shakir/f1-stats-cache/internal/logger"
)

func TestLogging_AssignsOrEchoesRequestID(t *testing.T) {
	var seen string
	h := Logging(mylog.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = mylog.RequestID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	got := rr.Header().Get("X-Request-ID")
	if got == "" || got != seen {
		t.Fatalf("header=%q ctx=%q want equal and non-empty", got, seen)
	}
	if rr.Code != http.StatusTeapot {
		t.Fatalf("code=%d want 418", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Header().Get("X-Request-ID") != "abc" || seen != "abc" {
		t.Fatalf("incoming id not kept: header=%q ctx=%q", rr.Header().Get("X-Request-ID"), seen)
	}
}

func TestRecover_Returns500(t *testing.T) {
	h := Recover(mylog.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("code=%d want 500", rr.Code)
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	h := CORS()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/api/cache", nil))
	if rr.Code != http.StatusNoContent || called {
		t.Fatalf("code=%d called=%v want 204 and not called", rr.Code, called)
	}
	if !strings.Contains(rr.Header().Get("Access-Control-Allow-Methods"), "DELETE") {
		t.Fatalf("allow-methods=%q", rr.Header().Get("Access-Control-Allow-Methods"))
	}
}

func TestMetrics_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Metrics())
	r.Get("/api/seasons/{season}/races", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	for _, s := range []string{"2021", "2022"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/seasons/"+s+"/races", nil))
	}

	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	want := `http_requests_total{method="GET",route="/api/seasons/{season}/races",status="200"} 2`
	if !strings.Contains(body, want) {
		t.Fatalf("missing %s in:\n%s", want, body)
	}
	if strings.Contains(body, `route="/api/seasons/2021/races"`) {
		t.Fatalf("raw path leaked into route label")
	}
}
