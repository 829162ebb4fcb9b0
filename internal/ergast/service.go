// Package ergast fetches, validates and caches resources from an
// Ergast-compatible F1 API.
package ergast

import (
	"context"
	"log/slog"
	"time"

	"github.com/mohammed-shakir/f1-stats-cache/internal/cache"
	mylog "github.com/mohammed-shakir/f1-stats-cache/internal/logger"
)

// Getter is the upstream transport; *upstream.Client satisfies it.
type Getter interface {
	Get(ctx context.Context, path string) ([]byte, error)
}

type Options struct {
	Policy      Policy
	PageSize    int // lap-time page size, at most 100
	MaxParallel int // concurrent lap-time page requests
	Logger      *slog.Logger
}

type Service struct {
	up       Getter
	store    *cache.Store
	policy   Policy
	pageSize int
	parallel int
	log      *slog.Logger
}

// New builds a Service. A nil store disables caching.
func New(up Getter, store *cache.Store, opts Options) *Service {
	if opts.PageSize <= 0 || opts.PageSize > 100 {
		opts.PageSize = 100
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 1
	}
	if opts.Policy.CompleteTTL <= 0 {
		opts.Policy.CompleteTTL = 24 * time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = mylog.Discard()
	}
	return &Service{
		up:       up,
		store:    store,
		policy:   opts.Policy,
		pageSize: opts.PageSize,
		parallel: opts.MaxParallel,
		log:      opts.Logger,
	}
}

// Policy exposes the TTL policy so callers can align their own staleness.
func (s *Service) Policy() Policy { return s.policy }

// get fetches path and unwraps the envelope. Undecodable bodies and a missing
// MRData are shape errors for endpoint.
func (s *Service) get(ctx context.Context, endpoint, path string, params ...string) (*mrData, error) {
	b, err := s.up.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	md, err := decodeEnvelope(b)
	if err != nil {
		return nil, &ShapeError{Endpoint: endpoint, Params: params, Err: err}
	}
	if md == nil {
		return nil, shapeErr(endpoint, "MRData", params...)
	}
	s.log.DebugContext(ctx, "upstream fetched", "endpoint", endpoint, "path", path, "bytes", len(b))
	return md, nil
}
