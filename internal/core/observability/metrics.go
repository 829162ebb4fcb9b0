// Package observability holds the process-wide Prometheus collectors and the
// small helpers the rest of the code calls to record into them.
package observability

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of single upstream attempts in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	upstreamAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_attempts_total",
			Help: "Upstream attempts by outcome (ok, retry, fail).",
		},
		[]string{"outcome"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Cache lookups by outcome and resource.",
		},
		[]string{"outcome", "resource"},
	)

	cacheOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_op_total",
			Help: "Cache backend operations by op and result.",
		},
		[]string{"op", "result"},
	)

	cacheOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Duration of cache backend operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)

	lapChunks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lap_chunks_total",
			Help: "Lap time page requests by outcome.",
		},
		[]string{"outcome"},
	)

	invalidationEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invalidation_events_total",
			Help: "Cache invalidation events by result.",
		},
		[]string{"result"},
	)

	invalidatedKeys = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "invalidation_keys_deleted_total",
			Help: "Cache keys deleted by invalidation events.",
		},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal, httpRequestDurationSeconds,
		upstreamLatencySeconds, upstreamAttempts,
		cacheResults, cacheOps, cacheOpDuration,
		lapChunks, invalidationEvents, invalidatedKeys,
	}
}

// Init additionally registers the domain collectors with reg, so a dedicated
// metrics listener exposes the same series as the default registry. Build info
// is left out: the dedicated registry carries its own. A conflicting collector
// does not stop the rest from registering; all failures are returned joined.
func Init(reg prometheus.Registerer) error {
	if reg == nil {
		return nil
	}
	var errs []error
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

// IncUpstreamAttempt records one attempt; outcome is ok, retry or fail.
func IncUpstreamAttempt(outcome string) {
	upstreamAttempts.WithLabelValues(outcome).Inc()
}

func IncCacheHit(resource string) {
	cacheResults.WithLabelValues("hit", resourceLabel(resource)).Inc()
}

func IncCacheMiss(resource string) {
	cacheResults.WithLabelValues("miss", resourceLabel(resource)).Inc()
}

// IncCacheBypass counts lookups served without a cache backend or after a
// backend error.
func IncCacheBypass(resource string) {
	cacheResults.WithLabelValues("bypass", resourceLabel(resource)).Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	res := "ok"
	if err != nil {
		res = "error"
	}
	cacheOps.WithLabelValues(op, res).Inc()
	cacheOpDuration.WithLabelValues(op).Observe(durationSeconds)
}

func IncLapChunk(outcome string) {
	lapChunks.WithLabelValues(outcome).Inc()
}

func ObserveInvalidation(result string, keys int) {
	invalidationEvents.WithLabelValues(result).Inc()
	if keys > 0 {
		invalidatedKeys.Add(float64(keys))
	}
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}

func resourceLabel(r string) string {
	if r == "" {
		return "unknown"
	}
	return r
}
