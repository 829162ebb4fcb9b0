package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// CacheStatus is satisfied by *cache.Store.
type CacheStatus interface {
	Status(ctx context.Context) (string, error)
}

// ReadinessReporter is satisfied by the invalidation consumer.
type ReadinessReporter interface {
	Readiness() (ready bool, partitions []int32)
}

// Readiness answers 200 whenever the process can serve: a degraded cache only
// means reads go upstream. The body says which parts are degraded. consumer
// may be nil when invalidation is disabled.
func Readiness(c CacheStatus, consumer ReadinessReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type invalidation struct {
			Ready      bool    `json:"ready"`
			Partitions []int32 `json:"partitions,omitempty"`
		}
		type resp struct {
			Status       string        `json:"status"`
			Cache        string        `json:"cache"`
			CacheError   string        `json:"cache_error,omitempty"`
			Invalidation *invalidation `json:"invalidation,omitempty"`
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		out := resp{Status: "ready", Cache: "disabled"}
		if c != nil {
			st, err := c.Status(ctx)
			out.Cache = st
			if err != nil {
				out.CacheError = err.Error()
			}
			if st == "degraded" {
				out.Status = "degraded"
			}
		}
		if consumer != nil {
			ready, parts := consumer.Readiness()
			out.Invalidation = &invalidation{Ready: ready, Partitions: parts}
			if !ready {
				out.Status = "degraded"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(out)
	}
}
