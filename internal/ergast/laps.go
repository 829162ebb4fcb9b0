package ergast

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/f1-stats-cache/internal/cache"
	"github.com/mohammed-shakir/f1-stats-cache/internal/cache/keys"
	"github.com/mohammed-shakir/f1-stats-cache/internal/core/observability"
)

// LapTimes returns every lap of a race with all drivers' timings. The upstream
// pages timing rows, so the fetch probes the row total, loads every page and
// merges them by offset. Any failed page fails the whole call and nothing is
// cached.
func (s *Service) LapTimes(ctx context.Context, season, round string) ([]LapRecord, error) {
	if err := checkRound(season, round); err != nil {
		return nil, err
	}
	return cache.GetCachedData(ctx, s.store, keys.Laps(season, round), s.policy.TTL(season),
		func(ctx context.Context) ([]LapRecord, error) {
			return s.fetchAllLaps(ctx, season, round)
		})
}

func (s *Service) fetchAllLaps(ctx context.Context, season, round string) ([]LapRecord, error) {
	ps := []string{param("season", season), param("round", round)}
	md, err := s.get(ctx, "lap times", lapsPath(season, round, 1, 0), ps...)
	if err != nil {
		return nil, err
	}
	total, ok := md.total()
	if !ok {
		return nil, shapeErr("lap times", "MRData.total", ps...)
	}
	if total == 0 {
		return []LapRecord{}, nil
	}

	n := (total + s.pageSize - 1) / s.pageSize
	pages := make([][]LapRecord, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)
	// Go blocks once the limit is reached, so pages start in offset order
	for i := range n {
		offset := i * s.pageSize
		g.Go(func() error {
			laps, err := s.lapPage(gctx, season, round, offset)
			if err != nil {
				observability.IncLapChunk("fail")
				return &PaginationError{Season: season, Round: round, Offset: offset, Err: err}
			}
			observability.IncLapChunk("ok")
			pages[i] = laps
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := mergeLapPages(pages)
	if err := verifyLaps(merged, total); err != nil {
		return nil, &PaginationError{Season: season, Round: round, Offset: -1, Err: err}
	}
	s.log.DebugContext(ctx, "lap times merged",
		"season", season, "round", round, "pages", n, "rows", total, "laps", len(merged))
	return merged, nil
}

func (s *Service) lapPage(ctx context.Context, season, round string, offset int) ([]LapRecord, error) {
	ps := []string{param("season", season), param("round", round), param("offset", strconv.Itoa(offset))}
	md, err := s.get(ctx, "lap times", lapsPath(season, round, s.pageSize, offset), ps...)
	if err != nil {
		return nil, err
	}
	r := md.firstRace()
	if r == nil || r.Laps == nil {
		return nil, shapeErr("lap times", "MRData.RaceTable.Races[0].Laps", ps...)
	}
	return r.Laps, nil
}

func lapsPath(season, round string, limit, offset int) string {
	return fmt.Sprintf("/%s/%s/laps.json?limit=%d&offset=%d", season, round, limit, offset)
}

// mergeLapPages concatenates pages in offset order. A page boundary can split
// one lap's timings across two pages; those halves are joined back together.
func mergeLapPages(pages [][]LapRecord) []LapRecord {
	var out []LapRecord
	for _, page := range pages {
		for _, lap := range page {
			if last := len(out) - 1; last >= 0 && out[last].Number == lap.Number {
				out[last].Timings = append(out[last].Timings, lap.Timings...)
				continue
			}
			out = append(out, LapRecord{
				Number:  lap.Number,
				Timings: append([]LapTiming(nil), lap.Timings...),
			})
		}
	}
	if out == nil {
		out = []LapRecord{}
	}
	return out
}

var errLapOrder = errors.New("lap numbers not strictly increasing")

// verifyLaps checks that the merge holds exactly total timing rows and that
// lap numbers strictly increase.
func verifyLaps(laps []LapRecord, total int) error {
	rows, prev := 0, 0
	for i, l := range laps {
		n, err := strconv.Atoi(l.Number)
		if err != nil {
			return fmt.Errorf("lap %q: %w", l.Number, err)
		}
		if i > 0 && n <= prev {
			return fmt.Errorf("%w: lap %d after %d", errLapOrder, n, prev)
		}
		prev = n
		rows += len(l.Timings)
	}
	if rows != total {
		return fmt.Errorf("merged %d timing rows, upstream reported %d", rows, total)
	}
	return nil
}
