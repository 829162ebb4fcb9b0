// Package invalidation describes the events that tell the cache a season or
// race has new data upstream.
package invalidation

import (
	"fmt"
	"regexp"
	"time"

	"github.com/mohammed-shakir/f1-stats-cache/internal/cache/keys"
)

const (
	OpRaceCompleted   = "race_completed"
	OpSeasonCompleted = "season_completed"
	OpCorrection      = "correction"
)

var (
	seasonRe = regexp.MustCompile(`^\d{4}$`)
	roundRe  = regexp.MustCompile(`^\d{1,2}$`)
)

type Event struct {
	Version int       `json:"version"`
	Op      string    `json:"op"`
	Season  string    `json:"season"`
	Round   string    `json:"round,omitempty"`
	TS      time.Time `json:"ts"`
	// Seq orders events from one producer; zero falls back to TS.
	Seq    uint64 `json:"seq,omitempty"`
	Source string `json:"source,omitempty"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case OpRaceCompleted, OpSeasonCompleted, OpCorrection:
	default:
		return fmt.Errorf("op must be race_completed|season_completed|correction")
	}
	if !seasonRe.MatchString(e.Season) {
		return fmt.Errorf("season must be a four digit year")
	}
	if e.Round != "" && !roundRe.MatchString(e.Round) {
		return fmt.Errorf("round must be numeric")
	}
	if e.Op == OpRaceCompleted && e.Round == "" {
		return fmt.Errorf("round is required for race_completed")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	return nil
}

// Keys lists the cache entries the event makes stale, unprefixed.
func (e Event) Keys() []string {
	ks := keys.SeasonScoped(e.Season)
	if e.Round != "" {
		ks = append(ks, keys.RoundScoped(e.Season, e.Round)...)
	}
	return keys.Strings("", ks...)
}

// DedupeKey identifies the key set an event targets.
func (e Event) DedupeKey() string {
	return e.Season + "/" + e.Round
}

// Order is the monotonic value compared when deduplicating.
func (e Event) Order() uint64 {
	if e.Seq > 0 {
		return e.Seq
	}
	n := e.TS.UnixNano()
	if n < 0 {
		return 0
	}
	return uint64(n)
}
