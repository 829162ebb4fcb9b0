// Package tui is a terminal browser over a query.Session: pick a season, then
// a race, then a driver, and the dependent tables load behind a debounce.
package tui

import (
	"slices"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mohammed-shakir/f1-stats-cache/internal/ergast"
	"github.com/mohammed-shakir/f1-stats-cache/internal/query"
)

// Session is the subset of *query.Session the UI drives.
type Session interface {
	Start()
	Updates() <-chan struct{}
	Snapshot() query.Snapshot
	SelectSeason(season string)
	SelectRace(round string)
	SelectDriver(driverID string)
	Retry()
	Close()
}

type pane int

const (
	paneSeasons pane = iota
	paneRaces
	paneResults
	paneCount
)

type tab int

const (
	tabResults tab = iota
	tabPitStops
	tabDriverStandings
	tabConstructorStandings
	tabLaps
	tabCount
)

func (t tab) String() string {
	switch t {
	case tabPitStops:
		return "Pit stops"
	case tabDriverStandings:
		return "Drivers"
	case tabConstructorStandings:
		return "Constructors"
	case tabLaps:
		return "Lap times"
	default:
		return "Results"
	}
}

// updateMsg means the session state changed and a fresh Snapshot is due.
type updateMsg struct{}

func waitForUpdate(s Session) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-s.Updates(); !ok {
			return nil
		}
		return updateMsg{}
	}
}

// Model is the root Bubble Tea model.
type Model struct {
	sess   Session
	keys   keyMap
	styles styles
	spin   spinner.Model

	snap   query.Snapshot
	focus  pane
	tab    tab
	cursor [paneCount]int

	width    int
	height   int
	showHelp bool
}

func New(s Session) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		sess:   s,
		keys:   defaultKeyMap(),
		styles: defaultStyles(),
		spin:   sp,
		snap:   s.Snapshot(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	s := m.sess
	return tea.Batch(
		func() tea.Msg {
			s.Start()
			return updateMsg{}
		},
		waitForUpdate(s),
		m.spin.Tick,
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case updateMsg:
		m.refresh()
		return m, waitForUpdate(m.sess)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.sess.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
	case key.Matches(msg, m.keys.Up):
		if m.cursor[m.focus] > 0 {
			m.cursor[m.focus]--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor[m.focus] < m.paneLen(m.focus)-1 {
			m.cursor[m.focus]++
		}
	case key.Matches(msg, m.keys.Select):
		m.selectCurrent()
	case key.Matches(msg, m.keys.Back):
		if m.focus > paneSeasons {
			m.focus--
		}
	case key.Matches(msg, m.keys.NextTab):
		m.tab = (m.tab + 1) % tabCount
	case key.Matches(msg, m.keys.Retry):
		m.sess.Retry()
	}
	m.refresh()
	return m, nil
}

func (m *Model) selectCurrent() {
	c := m.cursor[m.focus]
	switch m.focus {
	case paneSeasons:
		seasons := m.seasons()
		if c >= len(seasons) {
			return
		}
		m.sess.SelectSeason(seasons[c].Season)
		m.focus = paneRaces
		m.cursor[paneRaces] = 0
		m.cursor[paneResults] = 0
		m.tab = tabResults
	case paneRaces:
		if c >= len(m.snap.Races) {
			return
		}
		m.sess.SelectRace(m.snap.Races[c].Round)
		m.focus = paneResults
		m.cursor[paneResults] = 0
		m.tab = tabResults
	case paneResults:
		if c >= len(m.snap.Results) {
			return
		}
		m.sess.SelectDriver(m.snap.Results[c].Driver.DriverID)
		m.tab = tabLaps
	}
}

func (m *Model) refresh() {
	m.snap = m.sess.Snapshot()
	for p := paneSeasons; p < paneCount; p++ {
		n := m.paneLen(p)
		if m.cursor[p] >= n {
			m.cursor[p] = max(n-1, 0)
		}
	}
}

// seasons lists the newest season first.
func (m Model) seasons() []ergast.Season {
	out := slices.Clone(m.snap.Seasons)
	slices.Reverse(out)
	return out
}

func (m Model) paneLen(p pane) int {
	switch p {
	case paneSeasons:
		return len(m.snap.Seasons)
	case paneRaces:
		return len(m.snap.Races)
	default:
		return len(m.snap.Results)
	}
}
