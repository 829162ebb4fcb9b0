package ergast

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/mohammed-shakir/f1-stats-cache/internal/cache"
	"github.com/mohammed-shakir/f1-stats-cache/internal/cache/keys"
)

// Upstream paths the proxy will forward. Anything else is rejected before
// reaching the network.
var proxyAllow = []*regexp.Regexp{
	regexp.MustCompile(`^/seasons\.json(\?limit=\d{1,3})?$`),
	regexp.MustCompile(`^/(\d{4}|current)\.json$`),
	regexp.MustCompile(`^/(\d{4}|current)/(driverStandings|constructorStandings)(/1)?\.json$`),
	regexp.MustCompile(`^/(\d{4}|current)/(\d{1,2}|last)/(results|pitstops)\.json$`),
	regexp.MustCompile(`^/(\d{4}|current)/(\d{1,2}|last)/laps\.json(\?limit=\d{1,3}(&offset=\d{1,5})?)?$`),
	regexp.MustCompile(`^/(\d{4}|current)/(\d{1,2}|last)/drivers/[a-z0-9_]{1,64}/laps\.json(\?limit=\d{1,3})?$`),
}

// ProxyAllowed reports whether path is a known upstream endpoint.
func ProxyAllowed(path string) bool {
	for _, re := range proxyAllow {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// Proxy returns the raw upstream envelope for an allow-listed path, cached
// like every other resource.
func (s *Service) Proxy(ctx context.Context, path string) (json.RawMessage, error) {
	if !ProxyAllowed(path) {
		return nil, fmt.Errorf("%w: path %q", ErrInvalidParam, path)
	}
	season := proxySeason(path)
	return cache.GetCachedData(ctx, s.store, keys.Proxy(path), s.policy.TTL(season),
		func(ctx context.Context) (json.RawMessage, error) {
			b, err := s.up.Get(ctx, path)
			if err != nil {
				return nil, err
			}
			md, err := decodeEnvelope(b)
			if err != nil {
				return nil, &ShapeError{Endpoint: "proxy", Params: []string{param("path", path)}, Err: err}
			}
			if md == nil {
				return nil, shapeErr("proxy", "MRData", param("path", path))
			}
			return json.RawMessage(b), nil
		})
}

// proxySeason is the first path segment; "/seasons.json" yields "seasons",
// which the policy treats as live.
func proxySeason(path string) string {
	p := strings.TrimPrefix(path, "/")
	if i := strings.IndexAny(p, "/."); i >= 0 {
		p = p[:i]
	}
	return p
}
