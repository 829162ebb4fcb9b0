// Package upstream performs GET requests against the Ergast-compatible F1 API
// with request spacing and a bounded fixed-delay retry.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mohammed-shakir/f1-stats-cache/internal/core/httpclient"
	"github.com/mohammed-shakir/f1-stats-cache/internal/core/observability"
	mylog "github.com/mohammed-shakir/f1-stats-cache/internal/logger"
)

// ErrStatus marks a non-2xx upstream response.
var ErrStatus = errors.New("upstream status")

const maxBody = 16 << 20

// FetchError is returned once a request has failed for good, either because
// the status was not retryable or because the attempt budget ran out.
type FetchError struct {
	URL       string
	Attempts  int
	Status    int // last HTTP status, 0 when the last attempt never got a response
	Exhausted bool
	Err       error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "fetch %s", e.URL)
	if e.Exhausted {
		fmt.Fprintf(&b, ": gave up after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FetchError) Unwrap() error { return e.Err }

// RateLimited reports whether the upstream was still throttling when we gave up.
func (e *FetchError) RateLimited() bool { return e.Status == http.StatusTooManyRequests }

type Options struct {
	BaseURL    string
	HTTP       *http.Client
	Retries    int           // total attempts per request
	RetryDelay time.Duration // fixed wait between attempts
	Spacing    time.Duration // minimum gap between any two request starts
	Logger     *slog.Logger
}

type Client struct {
	base    string
	http    *http.Client
	retries int
	delay   time.Duration
	limiter *rate.Limiter
	log     *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error // for tests
}

func New(opts Options) *Client {
	if opts.HTTP == nil {
		opts.HTTP = httpclient.NewOutbound(0)
	}
	if opts.Retries < 1 {
		opts.Retries = 3
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.Logger == nil {
		opts.Logger = mylog.Discard()
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if opts.Spacing > 0 {
		lim = rate.NewLimiter(rate.Every(opts.Spacing), 1)
	}
	return &Client{
		base:    strings.TrimRight(opts.BaseURL, "/"),
		http:    opts.HTTP,
		retries: opts.Retries,
		delay:   opts.RetryDelay,
		limiter: lim,
		log:     opts.Logger,
		sleep:   sleepCtx,
	}
}

// BaseURL is the configured upstream root without a trailing slash.
func (c *Client) BaseURL() string { return c.base }

// Get fetches base+path and returns the body of the first 2xx response.
// 429, 503 and network errors are retried after the fixed delay until the
// attempt budget is spent; any other status fails at once.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	url := c.base + path
	if _, err := neturl.ParseRequestURI(url); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	var (
		lastStatus int
		lastErr    error
	)
	for attempt := 1; attempt <= c.retries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, err)
		}

		body, status, err := c.do(ctx, url)
		if err == nil {
			observability.IncUpstreamAttempt("ok")
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, ctx.Err())
		}
		lastStatus, lastErr = status, err

		if !retryable(status) {
			observability.IncUpstreamAttempt("fail")
			return nil, &FetchError{URL: url, Attempts: attempt, Status: status, Err: err}
		}
		if attempt == c.retries {
			observability.IncUpstreamAttempt("fail")
			break
		}

		observability.IncUpstreamAttempt("retry")
		c.log.WarnContext(ctx, "upstream attempt failed, retrying",
			"url", url, "attempt", attempt, "status", status, "err", err, "delay", c.delay.String())
		if err := c.sleep(ctx, c.delay); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, err)
		}
	}
	return nil, &FetchError{URL: url, Attempts: c.retries, Status: lastStatus, Exhausted: true, Err: lastErr}
}

// do performs one attempt. status is 0 when no response was received.
func (c *Client) do(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	observability.ObserveUpstreamLatency("ergast", time.Since(start).Seconds())
	if err != nil {
		return nil, 0, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, resp.StatusCode, fmt.Errorf("%w %d: %s", ErrStatus, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		// a body cut short is a network failure
		return nil, 0, fmt.Errorf("read body: %w", err)
	}
	return b, resp.StatusCode, nil
}

func retryable(status int) bool {
	return status == 0 ||
		status == http.StatusTooManyRequests ||
		status == http.StatusServiceUnavailable
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
