package ergast

import (
	"context"
	"fmt"
	"sync"

	"github.com/mohammed-shakir/f1-stats-cache/internal/cache"
	"github.com/mohammed-shakir/f1-stats-cache/internal/cache/keys"
)

func (s *Service) Seasons(ctx context.Context) ([]Season, error) {
	return cache.GetCachedData(ctx, s.store, keys.Seasons(), s.policy.CompleteTTL,
		func(ctx context.Context) ([]Season, error) {
			md, err := s.get(ctx, "seasons", "/seasons.json?limit=100")
			if err != nil {
				return nil, err
			}
			if md.SeasonTable == nil || md.SeasonTable.Seasons == nil {
				return nil, shapeErr("seasons", "MRData.SeasonTable.Seasons")
			}
			return md.SeasonTable.Seasons, nil
		})
}

// Races returns a season's calendar.
func (s *Service) Races(ctx context.Context, season string) ([]Race, error) {
	if err := checkSeason(season); err != nil {
		return nil, err
	}
	return cache.GetCachedData(ctx, s.store, keys.Races(season), s.policy.TTL(season),
		func(ctx context.Context) ([]Race, error) {
			md, err := s.get(ctx, "races", "/"+season+".json", param("season", season))
			if err != nil {
				return nil, err
			}
			rs := md.races()
			if rs == nil {
				return nil, shapeErr("races", "MRData.RaceTable.Races", param("season", season))
			}
			out := make([]Race, 0, len(rs))
			for _, r := range rs {
				out = append(out, r.Race)
			}
			return out, nil
		})
}

func (s *Service) RaceResults(ctx context.Context, season, round string) ([]RaceResult, error) {
	if err := checkRound(season, round); err != nil {
		return nil, err
	}
	return cache.GetCachedData(ctx, s.store, keys.Results(season, round), s.policy.TTL(season),
		func(ctx context.Context) ([]RaceResult, error) {
			ps := []string{param("season", season), param("round", round)}
			md, err := s.get(ctx, "race results", fmt.Sprintf("/%s/%s/results.json", season, round), ps...)
			if err != nil {
				return nil, err
			}
			r := md.firstRace()
			if r == nil || r.Results == nil {
				return nil, shapeErr("race results", "MRData.RaceTable.Races[0].Results", ps...)
			}
			return r.Results, nil
		})
}

func (s *Service) PitStops(ctx context.Context, season, round string) ([]PitStop, error) {
	if err := checkRound(season, round); err != nil {
		return nil, err
	}
	return cache.GetCachedData(ctx, s.store, keys.PitStops(season, round), s.policy.TTL(season),
		func(ctx context.Context) ([]PitStop, error) {
			ps := []string{param("season", season), param("round", round)}
			md, err := s.get(ctx, "pit stops", fmt.Sprintf("/%s/%s/pitstops.json", season, round), ps...)
			if err != nil {
				return nil, err
			}
			r := md.firstRace()
			if r == nil || r.PitStops == nil {
				return nil, shapeErr("pit stops", "MRData.RaceTable.Races[0].PitStops", ps...)
			}
			return r.PitStops, nil
		})
}

// DriverStandings returns the full drivers' table.
func (s *Service) DriverStandings(ctx context.Context, season string) ([]StandingsList, error) {
	return s.standings(ctx, "driver standings", keys.DriverStandings(season), season, "/driverStandings.json")
}

// ConstructorStandings returns the full constructors' table.
func (s *Service) ConstructorStandings(ctx context.Context, season string) ([]StandingsList, error) {
	return s.standings(ctx, "constructor standings", keys.ConstructorStandings(season), season, "/constructorStandings.json")
}

func (s *Service) standings(ctx context.Context, endpoint string, k keys.Key, season, suffix string) ([]StandingsList, error) {
	if err := checkSeason(season); err != nil {
		return nil, err
	}
	return cache.GetCachedData(ctx, s.store, k, s.policy.TTL(season),
		func(ctx context.Context) ([]StandingsList, error) {
			md, err := s.get(ctx, endpoint, "/"+season+suffix, param("season", season))
			if err != nil {
				return nil, err
			}
			ls := md.standingsLists()
			if ls == nil {
				return nil, shapeErr(endpoint, "MRData.StandingsTable.StandingsLists", param("season", season))
			}
			return ls, nil
		})
}

// DriverChampion returns the leader of the drivers' table, which is the
// champion once the season is over.
func (s *Service) DriverChampion(ctx context.Context, season string) (DriverStanding, error) {
	if err := checkSeason(season); err != nil {
		return DriverStanding{}, err
	}
	return cache.GetCachedData(ctx, s.store, keys.DriverChampion(season), s.policy.TTL(season),
		func(ctx context.Context) (DriverStanding, error) {
			const endpoint = "driver champion"
			md, err := s.get(ctx, endpoint, "/"+season+"/driverStandings/1.json", param("season", season))
			if err != nil {
				return DriverStanding{}, err
			}
			ls := md.standingsLists()
			if len(ls) == 0 || len(ls[0].DriverStandings) == 0 {
				return DriverStanding{}, shapeErr(endpoint,
					"MRData.StandingsTable.StandingsLists[0].DriverStandings[0]", param("season", season))
			}
			return ls[0].DriverStandings[0], nil
		})
}

func (s *Service) ConstructorChampion(ctx context.Context, season string) (ConstructorStanding, error) {
	if err := checkSeason(season); err != nil {
		return ConstructorStanding{}, err
	}
	return cache.GetCachedData(ctx, s.store, keys.ConstructorChampion(season), s.policy.TTL(season),
		func(ctx context.Context) (ConstructorStanding, error) {
			const endpoint = "constructor champion"
			md, err := s.get(ctx, endpoint, "/"+season+"/constructorStandings/1.json", param("season", season))
			if err != nil {
				return ConstructorStanding{}, err
			}
			ls := md.standingsLists()
			if len(ls) == 0 || len(ls[0].ConstructorStandings) == 0 {
				return ConstructorStanding{}, shapeErr(endpoint,
					"MRData.StandingsTable.StandingsLists[0].ConstructorStandings[0]", param("season", season))
			}
			return ls[0].ConstructorStandings[0], nil
		})
}

// Champions looks up both champions together. Each side fails on its own; the
// returned error is set only for an invalid season.
func (s *Service) Champions(ctx context.Context, season string) (Champions, error) {
	if err := checkSeason(season); err != nil {
		return Champions{}, err
	}
	out := Champions{Season: season}
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		d, err := s.DriverChampion(ctx, season)
		if err != nil {
			out.DriverErr = err.Error()
			return
		}
		out.Driver = &d
	}()
	go func() {
		defer wg.Done()
		c, err := s.ConstructorChampion(ctx, season)
		if err != nil {
			out.ConstructorErr = err.Error()
			return
		}
		out.Constructor = &c
	}()
	wg.Wait()
	return out, nil
}

// DriverLapTimes returns one driver's laps. A race never exceeds a single
// 100-row page for one driver.
func (s *Service) DriverLapTimes(ctx context.Context, season, round, driverID string) ([]LapRecord, error) {
	if err := checkRound(season, round); err != nil {
		return nil, err
	}
	if err := checkDriver(driverID); err != nil {
		return nil, err
	}
	return cache.GetCachedData(ctx, s.store, keys.DriverLaps(season, round, driverID), s.policy.TTL(season),
		func(ctx context.Context) ([]LapRecord, error) {
			ps := []string{param("season", season), param("round", round), param("driver", driverID)}
			path := fmt.Sprintf("/%s/%s/drivers/%s/laps.json?limit=100", season, round, driverID)
			md, err := s.get(ctx, "driver lap times", path, ps...)
			if err != nil {
				return nil, err
			}
			r := md.firstRace()
			if r == nil || r.Laps == nil {
				return nil, shapeErr("driver lap times", "MRData.RaceTable.Races[0].Laps", ps...)
			}
			return r.Laps, nil
		})
}
