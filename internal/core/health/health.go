// Package health serves the liveness and readiness probes.
package health

import "net/http"

// Liveness answers while the process can serve HTTP at all. It never touches
// the cache or upstream.
func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		h := w.Header()
		h.Set("Content-Type", "text/plain; charset=utf-8")
		h.Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
