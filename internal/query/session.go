package query

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mohammed-shakir/f1-stats-cache/internal/ergast"
	mylog "github.com/mohammed-shakir/f1-stats-cache/internal/logger"
)

// Source is the data the Session browses; *ergast.Service implements it.
type Source interface {
	Seasons(ctx context.Context) ([]ergast.Season, error)
	Races(ctx context.Context, season string) ([]ergast.Race, error)
	RaceResults(ctx context.Context, season, round string) ([]ergast.RaceResult, error)
	PitStops(ctx context.Context, season, round string) ([]ergast.PitStop, error)
	DriverStandings(ctx context.Context, season string) ([]ergast.StandingsList, error)
	ConstructorStandings(ctx context.Context, season string) ([]ergast.StandingsList, error)
	DriverLapTimes(ctx context.Context, season, round, driverID string) ([]ergast.LapRecord, error)
}

// Stage is how far down the season, race, driver chain the user has selected.
type Stage int

const (
	StageIdle Stage = iota
	StageSeason
	StageRace
	StageDriver
)

func (s Stage) String() string {
	switch s {
	case StageSeason:
		return "season_selected"
	case StageRace:
		return "race_selected"
	case StageDriver:
		return "driver_selected"
	default:
		return "idle"
	}
}

type Selection struct {
	Season string
	Round  string
	Driver string
}

func (s Selection) Stage() Stage {
	switch {
	case s.Season == "":
		return StageIdle
	case s.Round == "":
		return StageSeason
	case s.Driver == "":
		return StageRace
	default:
		return StageDriver
	}
}

type raceKey struct{ Season, Round string }

type lapKey struct{ Season, Round, Driver string }

// Resource names used in Snapshot.Errors.
const (
	ResSeasons              = "seasons"
	ResRaces                = "races"
	ResResults              = "results"
	ResPitStops             = "pitstops"
	ResDriverStandings      = "driver_standings"
	ResConstructorStandings = "constructor_standings"
	ResLapTimes             = "lap_times"
)

type Options struct {
	Debounce time.Duration
	// Policy marks live seasons, whose settled results go stale after
	// Policy.LiveTTL. Completed seasons are never refetched. Policy.Now is
	// also the clock staleness is measured with.
	Policy    ergast.Policy
	CacheSize int
	Logger    *slog.Logger
}

// Session is one user's browsing state. Selections are debounced before any
// dependent query runs, and each query runs only once its inputs are set.
type Session struct {
	id     string
	log    *slog.Logger
	cancel context.CancelFunc
	deb    *Debouncer[Selection]

	mu  sync.Mutex
	sel Selection

	seasons      *Query[struct{}, []ergast.Season]
	races        *Query[string, []ergast.Race]
	driverStands *Query[string, []ergast.StandingsList]
	constrStands *Query[string, []ergast.StandingsList]
	results      *Query[raceKey, []ergast.RaceResult]
	pitStops     *Query[raceKey, []ergast.PitStop]
	laps         *Query[lapKey, []ergast.LapRecord]

	updates chan struct{}
}

func NewSession(parent context.Context, src Source, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = mylog.Discard()
	}
	ctx, cancel := context.WithCancel(parent)
	id := uuid.NewString()
	ctx = mylog.WithRequestID(mylog.WithComponent(ctx, "session"), id)

	s := &Session{
		id:      id,
		log:     opts.Logger.With("session", id),
		cancel:  cancel,
		updates: make(chan struct{}, 1),
	}
	notify := s.notify
	now := opts.Policy.Now

	live := func(season string) time.Duration {
		if opts.Policy.Live(season) {
			return opts.Policy.LiveTTL
		}
		return 0
	}
	hasSeason := func(k string) bool { return k != "" }
	hasRace := func(k raceKey) bool { return k.Season != "" && k.Round != "" }

	s.seasons = NewQuery(ctx, ResSeasons,
		func(ctx context.Context, _ struct{}) ([]ergast.Season, error) { return src.Seasons(ctx) },
		QueryOptions[struct{}]{OnChange: notify, CacheSize: 1, Now: now})
	s.races = NewQuery(ctx, ResRaces, src.Races,
		QueryOptions[string]{Enabled: hasSeason, StaleAfter: live, CacheSize: opts.CacheSize, OnChange: notify, Now: now})
	s.driverStands = NewQuery(ctx, ResDriverStandings, src.DriverStandings,
		QueryOptions[string]{Enabled: hasSeason, StaleAfter: live, CacheSize: opts.CacheSize, OnChange: notify, Now: now})
	s.constrStands = NewQuery(ctx, ResConstructorStandings, src.ConstructorStandings,
		QueryOptions[string]{Enabled: hasSeason, StaleAfter: live, CacheSize: opts.CacheSize, OnChange: notify, Now: now})
	s.results = NewQuery(ctx, ResResults,
		func(ctx context.Context, k raceKey) ([]ergast.RaceResult, error) {
			return src.RaceResults(ctx, k.Season, k.Round)
		},
		QueryOptions[raceKey]{Enabled: hasRace, CacheSize: opts.CacheSize, OnChange: notify, Now: now,
			StaleAfter: func(k raceKey) time.Duration { return live(k.Season) }})
	s.pitStops = NewQuery(ctx, ResPitStops,
		func(ctx context.Context, k raceKey) ([]ergast.PitStop, error) {
			return src.PitStops(ctx, k.Season, k.Round)
		},
		QueryOptions[raceKey]{Enabled: hasRace, CacheSize: opts.CacheSize, OnChange: notify, Now: now,
			StaleAfter: func(k raceKey) time.Duration { return live(k.Season) }})
	s.laps = NewQuery(ctx, ResLapTimes,
		func(ctx context.Context, k lapKey) ([]ergast.LapRecord, error) {
			return src.DriverLapTimes(ctx, k.Season, k.Round, k.Driver)
		},
		QueryOptions[lapKey]{
			Enabled:    func(k lapKey) bool { return k.Season != "" && k.Round != "" && k.Driver != "" },
			StaleAfter: func(k lapKey) time.Duration { return live(k.Season) },
			CacheSize:  opts.CacheSize,
			OnChange:   notify,
			Now:        now,
		})

	s.deb = NewDebouncer(opts.Debounce, s.apply)
	return s
}

func (s *Session) ID() string { return s.id }

// Start loads the season list; it has no inputs to wait for.
func (s *Session) Start() {
	s.seasons.Set(struct{}{})
}

// Updates signals whenever any state visible in Snapshot may have changed.
// Signals coalesce; read Snapshot after each one.
func (s *Session) Updates() <-chan struct{} { return s.updates }

func (s *Session) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// SelectSeason clears the race and driver selections.
func (s *Session) SelectSeason(season string) {
	s.update(func(Selection) Selection { return Selection{Season: season} })
}

// SelectRace clears the driver selection. It is ignored until a season is set.
func (s *Session) SelectRace(round string) {
	s.update(func(sel Selection) Selection {
		if sel.Season == "" {
			return sel
		}
		return Selection{Season: sel.Season, Round: round}
	})
}

// SelectDriver is ignored until a race is set.
func (s *Session) SelectDriver(driverID string) {
	s.update(func(sel Selection) Selection {
		if sel.Season == "" || sel.Round == "" {
			return sel
		}
		sel.Driver = driverID
		return sel
	})
}

func (s *Session) update(f func(Selection) Selection) {
	s.mu.Lock()
	next := f(s.sel)
	changed := next != s.sel
	s.sel = next
	s.mu.Unlock()
	if !changed {
		return
	}
	s.log.Debug("selection changed", "stage", next.Stage().String(),
		"season", next.Season, "round", next.Round, "driver", next.Driver)
	s.deb.Set(next)
	s.notify()
}

// apply runs once the debounce window settles on sel.
func (s *Session) apply(sel Selection) {
	s.races.Set(sel.Season)
	s.driverStands.Set(sel.Season)
	s.constrStands.Set(sel.Season)
	s.results.Set(raceKey{sel.Season, sel.Round})
	s.pitStops.Set(raceKey{sel.Season, sel.Round})
	s.laps.Set(lapKey{sel.Season, sel.Round, sel.Driver})
}

// Retry refetches every resource currently in error.
func (s *Session) Retry() {
	s.seasons.RetryFailed()
	s.races.RetryFailed()
	s.driverStands.RetryFailed()
	s.constrStands.RetryFailed()
	s.results.RetryFailed()
	s.pitStops.RetryFailed()
	s.laps.RetryFailed()
}

// Close stops pending debounces and cancels in-flight fetches.
func (s *Session) Close() {
	s.deb.Stop()
	s.cancel()
}

// Snapshot is a consistent read of the session for rendering.
type Snapshot struct {
	ID        string
	Selection Selection
	Stage     Stage

	Seasons              []ergast.Season
	Races                []ergast.Race
	Results              []ergast.RaceResult
	PitStops             []ergast.PitStop
	DriverStandings      []ergast.StandingsList
	ConstructorStandings []ergast.StandingsList
	LapTimes             []ergast.LapRecord

	// Loading is true from a selection change until the debounce settles and
	// every fetch it started has resolved.
	Loading     bool
	Debouncing  bool
	LapsLoading bool
	// Errors holds one message per failing resource.
	Errors map[string]string
}

// Err returns the first error message in display order, or "".
func (sn Snapshot) Err() string {
	for _, r := range []string{ResSeasons, ResRaces, ResResults, ResLapTimes, ResPitStops, ResDriverStandings, ResConstructorStandings} {
		if m := sn.Errors[r]; m != "" {
			return m
		}
	}
	return ""
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	sel := s.sel
	s.mu.Unlock()

	sn := Snapshot{
		ID:         s.id,
		Selection:  sel,
		Stage:      sel.Stage(),
		Debouncing: s.deb.Pending(),
		Errors:     map[string]string{},
	}

	seasons := s.seasons.State()
	race := raceKey{sel.Season, sel.Round}
	races := viewOf(s.races.State(), sel.Season)
	ds := viewOf(s.driverStands.State(), sel.Season)
	cs := viewOf(s.constrStands.State(), sel.Season)
	results := viewOf(s.results.State(), race)
	stops := viewOf(s.pitStops.State(), race)
	laps := viewOf(s.laps.State(), lapKey{sel.Season, sel.Round, sel.Driver})

	sn.Seasons = seasons.Data
	// while debouncing the queries still describe the previous selection
	if !sn.Debouncing {
		sn.Races = races.data
		sn.DriverStandings = ds.data
		sn.ConstructorStandings = cs.data
		sn.Results = results.data
		sn.PitStops = stops.data
		sn.LapTimes = laps.data
	}

	collect := func(name string, err error) {
		if err != nil && !sn.Debouncing {
			sn.Errors[name] = err.Error()
		}
	}
	collect(ResRaces, races.err)
	collect(ResDriverStandings, ds.err)
	collect(ResConstructorStandings, cs.err)
	collect(ResResults, results.err)
	collect(ResPitStops, stops.err)
	collect(ResLapTimes, laps.err)
	// the season list does not depend on the selection
	if seasons.Status == StatusError && seasons.Err != nil {
		sn.Errors[ResSeasons] = seasons.Err.Error()
	}

	sn.LapsLoading = sn.Debouncing || laps.loading
	sn.Loading = sn.Debouncing ||
		seasons.Status == StatusLoading ||
		races.loading ||
		ds.loading ||
		cs.loading ||
		results.loading ||
		stops.loading ||
		laps.loading
	return sn
}

type view[T any] struct {
	data    T
	err     error
	loading bool
}

// viewOf exposes st only when it belongs to want. A query still keyed to an
// earlier selection has not been re-keyed yet and counts as loading.
func viewOf[K comparable, T any](st State[K, T], want K) view[T] {
	if st.Key != want {
		return view[T]{loading: true}
	}
	v := view[T]{data: st.Data, loading: st.Status == StatusLoading}
	if st.Status == StatusError {
		v.err = st.Err
	}
	return v
}
