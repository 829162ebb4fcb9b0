// Package keys builds the deterministic cache keys for every upstream resource.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// Resource names double as metric labels.
const (
	ResSeasons             = "seasons"
	ResRaces               = "races"
	ResResults             = "results"
	ResDriverStandings     = "driver-standings"
	ResConstructorStands   = "constructor-standings"
	ResDriverChampion      = "driver-champion"
	ResConstructorChampion = "constructor-champion"
	ResLaps                = "laps"
	ResDriverLaps          = "driver-laps"
	ResPitStops            = "pitstops"
	ResProxy               = "proxy"
)

const maxKeyLen = 200

type Key struct {
	Resource string
	Params   []string
}

func New(resource string, params ...string) Key {
	return Key{Resource: resource, Params: params}
}

// String renders resource-p1-p2. When sanitising changed a parameter or the
// key had to be truncated, an xxhash of the raw parameters is appended so
// distinct inputs never collide.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(sanitize(strings.TrimSpace(k.Resource)))

	lossy := false
	for _, p := range k.Params {
		raw := strings.TrimSpace(p)
		safe := sanitize(raw)
		if safe != raw {
			lossy = true
		}
		b.WriteByte('-')
		b.WriteString(safe)
	}

	out := b.String()
	if len(out) > maxKeyLen {
		out = out[:maxKeyLen]
		lossy = true
	}
	if lossy {
		sum := xxhash.Sum64String(strings.Join(k.Params, "\x00"))
		out = fmt.Sprintf("%s:h=%016x", out, sum)
	}
	return out
}

func Seasons() Key                      { return New(ResSeasons) }
func Races(season string) Key           { return New(ResRaces, season) }
func Results(season, round string) Key  { return New(ResResults, season, round) }
func DriverStandings(season string) Key { return New(ResDriverStandings, season) }
func ConstructorStandings(season string) Key {
	return New(ResConstructorStands, season)
}
func DriverChampion(season string) Key { return New(ResDriverChampion, season) }
func ConstructorChampion(season string) Key {
	return New(ResConstructorChampion, season)
}
func Laps(season, round string) Key     { return New(ResLaps, season, round) }
func PitStops(season, round string) Key { return New(ResPitStops, season, round) }
func DriverLaps(season, round, driver string) Key {
	return New(ResDriverLaps, season, round, driver)
}

// Proxy keys a raw upstream path such as "/2021/driverStandings.json".
func Proxy(path string) Key { return New(ResProxy, path) }

// SeasonScoped lists the keys whose payload changes when a season's standings move.
func SeasonScoped(season string) []Key {
	return []Key{
		Races(season),
		DriverStandings(season),
		ConstructorStandings(season),
		DriverChampion(season),
		ConstructorChampion(season),
		Proxy("/" + season + ".json"),
		Proxy("/" + season + "/driverStandings.json"),
		Proxy("/" + season + "/constructorStandings.json"),
		Proxy("/" + season + "/driverStandings/1.json"),
		Proxy("/" + season + "/constructorStandings/1.json"),
	}
}

// RoundScoped lists the keys tied to one race. Per-driver lap keys are not
// enumerable here and are left to expire.
func RoundScoped(season, round string) []Key {
	return []Key{
		Results(season, round),
		Laps(season, round),
		PitStops(season, round),
		Proxy("/" + season + "/" + round + "/results.json"),
		Proxy("/" + season + "/" + round + "/pitstops.json"),
	}
}

// Strings renders ks with prefix applied.
func Strings(prefix string, ks ...Key) []string {
	out := make([]string, 0, len(ks))
	for _, k := range ks {
		out = append(out, prefix+k.String())
	}
	return out
}

func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-' || r == '.':
			out = r
		default:
			// any other rune (including non-ASCII and '/') becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r < unicode.MaxASCII && unicode.IsDigit(r))
}
