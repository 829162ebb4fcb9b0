package ergast

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Prefetch warms the cache with the seasons list, a season's calendar and
// one race's results, loaded together. The first failure is returned.
func (s *Service) Prefetch(ctx context.Context, season, round string) error {
	if err := checkRound(season, round); err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.Seasons(gctx)
		return err
	})
	g.Go(func() error {
		_, err := s.Races(gctx, season)
		return err
	})
	g.Go(func() error {
		_, err := s.RaceResults(gctx, season, round)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("prefetch %s/%s: %w", season, round, err)
	}
	s.log.InfoContext(ctx, "prefetch complete", "season", season, "round", round)
	return nil
}
