package ergast

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Policy decides how long a season's data may be cached. Completed seasons
// never change, so they get the long TTL; the running season (and anything
// the clock says has not finished) gets the short one.
type Policy struct {
	CompleteTTL time.Duration
	LiveTTL     time.Duration
	Now         func() time.Time
}

func (p Policy) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// Live reports whether season may still change.
func (p Policy) Live(season string) bool {
	if season == "current" {
		return true
	}
	y, err := strconv.Atoi(season)
	if err != nil {
		return true
	}
	return y >= p.now().Year()
}

// TTL is the cache lifetime for data scoped to season.
func (p Policy) TTL(season string) time.Duration {
	if p.Live(season) && p.LiveTTL > 0 {
		return p.LiveTTL
	}
	return p.CompleteTTL
}

var (
	seasonRe = regexp.MustCompile(`^(?:\d{4}|current)$`)
	roundRe  = regexp.MustCompile(`^(?:\d{1,2}|last)$`)
	driverRe = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)
)

func checkSeason(season string) error {
	if !seasonRe.MatchString(season) {
		return fmt.Errorf("%w: season %q", ErrInvalidParam, season)
	}
	return nil
}

func checkRound(season, round string) error {
	if err := checkSeason(season); err != nil {
		return err
	}
	if !roundRe.MatchString(round) {
		return fmt.Errorf("%w: round %q", ErrInvalidParam, round)
	}
	return nil
}

func checkDriver(driverID string) error {
	if !driverRe.MatchString(driverID) {
		return fmt.Errorf("%w: driver %q", ErrInvalidParam, driverID)
	}
	return nil
}
