package ergast

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/f1-stats-cache/internal/cache"
	"github.com/mohammed-shakir/f1-stats-cache/internal/cache/redisstore"
	"github.com/mohammed-shakir/f1-stats-cache/internal/upstream"
)

// fakeAPI serves canned upstream responses keyed by request URI and counts hits.
type fakeAPI struct {
	mu     sync.Mutex
	hits   map[string]int
	bodies map[string]string
	status map[string]int
	dyn    func(w http.ResponseWriter, r *http.Request) bool
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{hits: map[string]int{}, bodies: map[string]string{}, status: map[string]int{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uri := r.URL.RequestURI()
		f.mu.Lock()
		f.hits[uri]++
		body, ok := f.bodies[uri]
		st := f.status[uri]
		dyn := f.dyn
		f.mu.Unlock()

		if st != 0 {
			w.WriteHeader(st)
			return
		}
		if ok {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
			return
		}
		if dyn != nil && dyn(w, r) {
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) on(uri, body string) {
	f.mu.Lock()
	f.bodies[uri] = body
	f.mu.Unlock()
}

func (f *fakeAPI) fail(uri string, status int) {
	f.mu.Lock()
	f.status[uri] = status
	f.mu.Unlock()
}

func (f *fakeAPI) count(uri string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[uri]
}

func (f *fakeAPI) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, h := range f.hits {
		n += h
	}
	return n
}

var testNow = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

// newTestService wires the service to the fake API and a miniredis-backed store.
func newTestService(t *testing.T, srv *httptest.Server, opts Options) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rc, err := redisstore.New(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("redisstore: %v", err)
	}
	store := cache.New(rc, cache.Options{DefaultTTL: 24 * time.Hour, OpTimeout: time.Second})
	t.Cleanup(func() { _ = store.Close() })

	up := upstream.New(upstream.Options{BaseURL: srv.URL, Retries: 2})
	if opts.Policy.CompleteTTL == 0 {
		opts.Policy = Policy{CompleteTTL: 24 * time.Hour, LiveTTL: 10 * time.Minute, Now: func() time.Time { return testNow }}
	}
	return New(up, store, opts), mr
}
