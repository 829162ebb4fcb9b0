// Package httpclient configures the HTTP client used to call the upstream F1 API.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

const userAgent = "f1-stats-cache/1 (+https://github.com/mohammed-shakir/f1-stats-cache)"

// NewOutbound creates the outbound client. A zero timeout uses 30s.
func NewOutbound(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: headerTransport{next: transport},
		Timeout:   timeout,
	}
}

// headerTransport stamps the headers the upstream expects on every request.
type headerTransport struct {
	next http.RoundTripper
}

func (t headerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Header.Get("User-Agent") == "" || r.Header.Get("Accept") == "" {
		r = r.Clone(r.Context())
		if r.Header.Get("User-Agent") == "" {
			r.Header.Set("User-Agent", userAgent)
		}
		if r.Header.Get("Accept") == "" {
			r.Header.Set("Accept", "application/json")
		}
	}
	return t.next.RoundTrip(r)
}
