package ergast

import (
	"encoding/json"
	"strconv"
)

// Every upstream response is wrapped in MRData. Nil slices mean the field was
// absent, which is how shape validation tells "missing" from "empty".
type envelope struct {
	MRData *mrData `json:"MRData"`
}

type mrData struct {
	Limit  string `json:"limit"`
	Offset string `json:"offset"`
	Total  string `json:"total"`

	SeasonTable    *seasonTable    `json:"SeasonTable"`
	RaceTable      *raceTable      `json:"RaceTable"`
	StandingsTable *standingsTable `json:"StandingsTable"`
}

type seasonTable struct {
	Seasons []Season `json:"Seasons"`
}

type raceTable struct {
	Season string     `json:"season"`
	Round  string     `json:"round"`
	Races  []raceData `json:"Races"`
}

type raceData struct {
	Race
	Results  []RaceResult `json:"Results"`
	Laps     []LapRecord  `json:"Laps"`
	PitStops []PitStop    `json:"PitStops"`
}

type standingsTable struct {
	Season         string          `json:"season"`
	StandingsLists []StandingsList `json:"StandingsLists"`
}

func decodeEnvelope(b []byte) (*mrData, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, err
	}
	return env.MRData, nil
}

func (m *mrData) races() []raceData {
	if m == nil || m.RaceTable == nil {
		return nil
	}
	return m.RaceTable.Races
}

// firstRace is Races[0], or nil when the table is missing or empty.
func (m *mrData) firstRace() *raceData {
	rs := m.races()
	if len(rs) == 0 {
		return nil
	}
	return &rs[0]
}

func (m *mrData) standingsLists() []StandingsList {
	if m == nil || m.StandingsTable == nil {
		return nil
	}
	return m.StandingsTable.StandingsLists
}

func (m *mrData) total() (int, bool) {
	if m == nil || m.Total == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m.Total)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
