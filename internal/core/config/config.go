// Package config loads process configuration from the environment, with an
// optional TOML file layered underneath.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type InvalidationCfg struct {
	Enabled bool
	Brokers string
	Topic   string
	GroupID string
}

type Config struct {
	Addr       string
	LogLevel   string
	LogConsole bool
	LogSampleN int

	BaseURL string

	CacheDriver     string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	CacheKeyPrefix  string
	CacheTTL        time.Duration
	CacheTTLLive    time.Duration
	CacheOpTimeout  time.Duration
	CacheMemorySize int

	UpstreamRetries        int
	UpstreamRetryDelay     time.Duration
	UpstreamRequestSpacing time.Duration
	UpstreamTimeout        time.Duration

	LapsPageSize    int
	LapsMaxParallel int

	DebounceWindow time.Duration

	MetricsEnabled bool
	MetricsAddr    string
	MetricsPath    string

	Invalidation InvalidationCfg
}

const DefaultBaseURL = "https://api.jolpi.ca/ergast/f1"

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Addr:                   ":8090",
		LogLevel:               "info",
		BaseURL:                DefaultBaseURL,
		CacheDriver:            "redis",
		RedisAddr:              "localhost:6379",
		CacheKeyPrefix:         "",
		CacheTTL:               24 * time.Hour,
		CacheTTLLive:           10 * time.Minute,
		CacheOpTimeout:         250 * time.Millisecond,
		CacheMemorySize:        4096,
		UpstreamRetries:        3,
		UpstreamRetryDelay:     time.Second,
		UpstreamRequestSpacing: 250 * time.Millisecond,
		UpstreamTimeout:        30 * time.Second,
		LapsPageSize:           100,
		LapsMaxParallel:        4,
		DebounceWindow:         300 * time.Millisecond,
		MetricsAddr:            ":9090",
		MetricsPath:            "/metrics",
		Invalidation: InvalidationCfg{
			Brokers: "localhost:9092",
			Topic:   "f1-invalidation",
			GroupID: "f1-cache-invalidator",
		},
	}
}

// FromEnv returns Defaults overridden by environment variables.
func FromEnv() Config {
	return applyEnv(Defaults())
}

func applyEnv(c Config) Config {
	c.Addr = getenv("ADDR", c.Addr)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.LogConsole = getbool("LOG_CONSOLE", c.LogConsole)
	c.LogSampleN = getint("LOG_SAMPLE_N", c.LogSampleN)

	c.BaseURL = strings.TrimRight(getenv("F1_API_BASE_URL", c.BaseURL), "/")

	c.CacheDriver = strings.ToLower(getenv("CACHE_DRIVER", c.CacheDriver))
	c.RedisAddr = getenv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getenv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getint("REDIS_DB", c.RedisDB)
	c.CacheKeyPrefix = getenv("CACHE_KEY_PREFIX", c.CacheKeyPrefix)
	c.CacheTTL = getduration("CACHE_TTL", c.CacheTTL)
	c.CacheTTLLive = getduration("CACHE_TTL_LIVE", c.CacheTTLLive)
	c.CacheOpTimeout = getduration("CACHE_OP_TIMEOUT", c.CacheOpTimeout)
	c.CacheMemorySize = getint("CACHE_MEMORY_SIZE", c.CacheMemorySize)

	c.UpstreamRetries = getint("UPSTREAM_RETRIES", c.UpstreamRetries)
	c.UpstreamRetryDelay = getduration("UPSTREAM_RETRY_DELAY", c.UpstreamRetryDelay)
	c.UpstreamRequestSpacing = getduration("UPSTREAM_REQUEST_SPACING", c.UpstreamRequestSpacing)
	c.UpstreamTimeout = getduration("UPSTREAM_TIMEOUT", c.UpstreamTimeout)

	c.LapsPageSize = getint("LAPS_PAGE_SIZE", c.LapsPageSize)
	c.LapsMaxParallel = getint("LAPS_MAX_PARALLEL", c.LapsMaxParallel)

	c.DebounceWindow = getduration("DEBOUNCE_WINDOW", c.DebounceWindow)

	c.MetricsEnabled = getbool("METRICS_ENABLED", c.MetricsEnabled)
	c.MetricsAddr = getenv("METRICS_ADDR", c.MetricsAddr)
	c.MetricsPath = getenv("METRICS_PATH", c.MetricsPath)

	c.Invalidation.Enabled = getbool("INVALIDATION_ENABLED", c.Invalidation.Enabled)
	c.Invalidation.Brokers = getenv("KAFKA_BROKERS", c.Invalidation.Brokers)
	c.Invalidation.Topic = getenv("KAFKA_TOPIC", c.Invalidation.Topic)
	c.Invalidation.GroupID = getenv("KAFKA_GROUP_ID", c.Invalidation.GroupID)

	return c.normalize()
}

// clamps values the rest of the code relies on
func (c Config) normalize() Config {
	if c.UpstreamRetries < 1 {
		c.UpstreamRetries = 1
	}
	// upstream refuses pages above 100
	if c.LapsPageSize <= 0 || c.LapsPageSize > 100 {
		c.LapsPageSize = 100
	}
	if c.LapsMaxParallel <= 0 {
		c.LapsMaxParallel = 1
	}
	if c.CacheMemorySize <= 0 {
		c.CacheMemorySize = 4096
	}
	if c.CacheTTLLive <= 0 || c.CacheTTLLive > c.CacheTTL {
		c.CacheTTLLive = c.CacheTTL
	}
	switch c.CacheDriver {
	case "redis", "memory", "none":
	default:
		c.CacheDriver = "none"
	}
	return c
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// SplitCSV splits a comma separated list, dropping blanks.
func SplitCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
