package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors the TOML layout; zero values leave defaults untouched.
type fileConfig struct {
	Addr     string `toml:"addr"`
	LogLevel string `toml:"log_level"`
	BaseURL  string `toml:"base_url"`

	Cache struct {
		Driver     string `toml:"driver"`
		RedisAddr  string `toml:"redis_addr"`
		RedisDB    int    `toml:"redis_db"`
		KeyPrefix  string `toml:"key_prefix"`
		TTL        string `toml:"ttl"`
		TTLLive    string `toml:"ttl_live"`
		OpTimeout  string `toml:"op_timeout"`
		MemorySize int    `toml:"memory_size"`
	} `toml:"cache"`

	Upstream struct {
		Retries        int    `toml:"retries"`
		RetryDelay     string `toml:"retry_delay"`
		RequestSpacing string `toml:"request_spacing"`
		Timeout        string `toml:"timeout"`
	} `toml:"upstream"`

	Laps struct {
		PageSize    int `toml:"page_size"`
		MaxParallel int `toml:"max_parallel"`
	} `toml:"laps"`

	UI struct {
		Debounce string `toml:"debounce"`
	} `toml:"ui"`

	Invalidation struct {
		Enabled bool   `toml:"enabled"`
		Brokers string `toml:"brokers"`
		Topic   string `toml:"topic"`
		GroupID string `toml:"group_id"`
	} `toml:"invalidation"`
}

// Load reads the TOML file at path (when non-empty and present) on top of the
// defaults, then applies environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Defaults()

	path = strings.TrimSpace(path)
	if path == "" {
		path = os.Getenv("F1_CONFIG")
	}
	if path != "" {
		resolved, err := expandPath(path)
		if err != nil {
			return Config{}, err
		}
		b, err := readFile(resolved)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, err
		default:
			var fc fileConfig
			if err := toml.Unmarshal(b, &fc); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", resolved, err)
			}
			if cfg, err = fc.apply(cfg); err != nil {
				return Config{}, fmt.Errorf("config %s: %w", resolved, err)
			}
		}
	}
	return applyEnv(cfg), nil
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = f.Close() }()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return b, nil
}

func (fc fileConfig) apply(c Config) (Config, error) {
	setStr(&c.Addr, fc.Addr)
	setStr(&c.LogLevel, fc.LogLevel)
	setStr(&c.BaseURL, strings.TrimRight(fc.BaseURL, "/"))

	setStr(&c.CacheDriver, strings.ToLower(fc.Cache.Driver))
	setStr(&c.RedisAddr, fc.Cache.RedisAddr)
	setInt(&c.RedisDB, fc.Cache.RedisDB)
	setStr(&c.CacheKeyPrefix, fc.Cache.KeyPrefix)
	setInt(&c.CacheMemorySize, fc.Cache.MemorySize)

	setInt(&c.UpstreamRetries, fc.Upstream.Retries)
	setInt(&c.LapsPageSize, fc.Laps.PageSize)
	setInt(&c.LapsMaxParallel, fc.Laps.MaxParallel)

	durs := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"cache.ttl", fc.Cache.TTL, &c.CacheTTL},
		{"cache.ttl_live", fc.Cache.TTLLive, &c.CacheTTLLive},
		{"cache.op_timeout", fc.Cache.OpTimeout, &c.CacheOpTimeout},
		{"upstream.retry_delay", fc.Upstream.RetryDelay, &c.UpstreamRetryDelay},
		{"upstream.request_spacing", fc.Upstream.RequestSpacing, &c.UpstreamRequestSpacing},
		{"upstream.timeout", fc.Upstream.Timeout, &c.UpstreamTimeout},
		{"ui.debounce", fc.UI.Debounce, &c.DebounceWindow},
	}
	for _, d := range durs {
		if strings.TrimSpace(d.raw) == "" {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = v
	}

	if fc.Invalidation.Enabled {
		c.Invalidation.Enabled = true
	}
	setStr(&c.Invalidation.Brokers, fc.Invalidation.Brokers)
	setStr(&c.Invalidation.Topic, fc.Invalidation.Topic)
	setStr(&c.Invalidation.GroupID, fc.Invalidation.GroupID)
	return c, nil
}

func setStr(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return abs, nil
}
