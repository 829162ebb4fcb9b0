package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mohammed-shakir/f1-stats-cache/internal/ergast"
)

const (
	seasonsWidth = 8
	racesWidth   = 28
)

// View implements tea.Model.
func (m Model) View() string {
	if m.showHelp {
		return m.renderHelp()
	}

	rows := m.listRows()
	seasonLines, selSeason := m.seasonLines()
	raceLines, selRace := m.raceLines()
	seasons := m.renderPane(paneSeasons, "Season", seasonsWidth, seasonLines, selSeason, rows)
	races := m.renderPane(paneRaces, "Race", racesWidth, raceLines, selRace, rows)

	detailWidth := m.width - seasonsWidth - racesWidth - 12
	if detailWidth < 40 {
		detailWidth = 60
	}
	detail := m.renderDetail(detailWidth, rows)

	body := lipgloss.JoinHorizontal(lipgloss.Top, seasons, races, detail)
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderFooter())
}

func (m Model) listRows() int {
	if m.height <= 0 {
		return 20
	}
	return max(m.height-8, 3)
}

func (m Model) renderHeader() string {
	sel := m.snap.Selection
	crumbs := []string{"F1"}
	if sel.Season != "" {
		crumbs = append(crumbs, sel.Season)
	}
	if sel.Round != "" {
		crumbs = append(crumbs, "Round "+sel.Round)
	}
	if sel.Driver != "" {
		crumbs = append(crumbs, sel.Driver)
	}
	out := m.styles.Title.Render("F1 Stats") + "  " + m.styles.Crumb.Render(strings.Join(crumbs, " › "))
	if m.snap.Loading {
		out += "  " + m.spin.View() + m.styles.Muted.Render(" loading")
	}
	return out
}

func (m Model) renderFooter() string {
	if msg := m.snap.Err(); msg != "" {
		return m.styles.Error.Render("error: "+msg) + m.styles.Muted.Render("  (r to retry)")
	}
	return m.styles.Muted.Render("enter select · esc back · tab view · r retry · ? help · q quit")
}

func (m Model) renderHelp() string {
	var b strings.Builder
	b.WriteString(m.styles.Title.Render("Keys"))
	b.WriteString("\n\n")
	for _, k := range m.keys.bindings() {
		h := k.Help()
		fmt.Fprintf(&b, "  %-10s %s\n", h.Key, h.Desc)
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Muted.Render("press any key to close"))
	return b.String()
}

// renderPane draws a list; selected marks the row matching the session's
// selection, which may differ from the cursor.
func (m Model) renderPane(p pane, title string, width int, lines []string, selected, rows int) string {
	st := m.styles.Pane
	if m.focus == p {
		st = m.styles.Focused
	}
	start, end := window(len(lines), m.cursor[p], rows)

	var b strings.Builder
	b.WriteString(m.styles.Heading.Render(title))
	for i := start; i < end; i++ {
		b.WriteByte('\n')
		line := truncate(lines[i], width)
		switch {
		case i == m.cursor[p] && m.focus == p:
			line = m.styles.Cursor.Render(line)
		case i == selected:
			line = m.styles.Selected.Render(line)
		}
		b.WriteString(line)
	}
	return st.Width(width).Render(b.String())
}

func (m Model) seasonLines() ([]string, int) {
	seasons := m.seasons()
	out := make([]string, 0, len(seasons))
	sel := -1
	for i, s := range seasons {
		if s.Season == m.snap.Selection.Season {
			sel = i
		}
		out = append(out, s.Season)
	}
	return out, sel
}

func (m Model) raceLines() ([]string, int) {
	out := make([]string, 0, len(m.snap.Races))
	sel := -1
	for i, r := range m.snap.Races {
		if r.Round == m.snap.Selection.Round {
			sel = i
		}
		out = append(out, fmt.Sprintf("%2s %s", r.Round, r.RaceName))
	}
	return out, sel
}

func (m Model) renderDetail(width, rows int) string {
	st := m.styles.Pane
	if m.focus == paneResults {
		st = m.styles.Focused
	}

	tabs := make([]string, 0, tabCount)
	for t := tab(0); t < tabCount; t++ {
		if t == m.tab {
			tabs = append(tabs, m.styles.TabOn.Render(t.String()))
		} else {
			tabs = append(tabs, m.styles.Tab.Render(t.String()))
		}
	}

	var lines []string
	cursor := -1
	switch m.tab {
	case tabResults:
		lines = resultLines(m.snap.Results)
		if m.focus == paneResults {
			cursor = m.cursor[paneResults]
		}
	case tabPitStops:
		lines = pitStopLines(m.snap.PitStops)
	case tabDriverStandings:
		lines = driverStandingLines(m.snap.DriverStandings)
	case tabConstructorStandings:
		lines = constructorStandingLines(m.snap.ConstructorStandings)
	case tabLaps:
		lines = m.lapLines()
	}
	if len(lines) == 0 {
		lines = []string{m.styles.Muted.Render(m.emptyText())}
	}

	start, end := window(len(lines), max(cursor, 0), rows)
	var b strings.Builder
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
	for i := start; i < end; i++ {
		b.WriteByte('\n')
		line := truncate(lines[i], width)
		if i == cursor {
			line = m.styles.Cursor.Render(line)
		}
		b.WriteString(line)
	}
	return st.Width(width).Render(b.String())
}

func (m Model) emptyText() string {
	switch {
	case m.snap.Loading:
		return "loading…"
	case m.snap.Selection.Season == "":
		return "select a season"
	case m.snap.Selection.Round == "" && m.tab != tabDriverStandings && m.tab != tabConstructorStandings:
		return "select a race"
	case m.tab == tabLaps && m.snap.Selection.Driver == "":
		return "select a driver in Results"
	default:
		return "no data"
	}
}

func resultLines(rs []ergast.RaceResult) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, fmt.Sprintf("%3s  %-22s %-16s %-18s %5s",
			r.PositionText,
			r.Driver.GivenName+" "+r.Driver.FamilyName,
			r.Constructor.Name,
			ergast.FormatStatus(r.Status),
			r.Points))
	}
	return out
}

func pitStopLines(ps []ergast.PitStop) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, fmt.Sprintf("lap %3s  stop %s  %-18s %ss", p.Lap, p.Stop, p.DriverID, p.Duration))
	}
	return out
}

func driverStandingLines(ls []ergast.StandingsList) []string {
	if len(ls) == 0 {
		return nil
	}
	var out []string
	for _, d := range ls[0].DriverStandings {
		team := ""
		if len(d.Constructors) > 0 {
			team = d.Constructors[0].Name
		}
		out = append(out, fmt.Sprintf("%3s  %-22s %-16s %6s pts  %2s wins",
			d.Position, d.Driver.GivenName+" "+d.Driver.FamilyName, team, d.Points, d.Wins))
	}
	return out
}

func constructorStandingLines(ls []ergast.StandingsList) []string {
	if len(ls) == 0 {
		return nil
	}
	var out []string
	for _, c := range ls[0].ConstructorStandings {
		out = append(out, fmt.Sprintf("%3s  %-22s %6s pts  %2s wins", c.Position, c.Constructor.Name, c.Points, c.Wins))
	}
	return out
}

// lapRow is one lap of the selected driver with the change from the lap before.
type lapRow struct {
	Lap      string
	Position string
	Time     string
	Delta    float64
	HasDelta bool
}

func lapRows(laps []ergast.LapRecord, driverID string) []lapRow {
	var (
		out  []lapRow
		prev string
	)
	for _, l := range laps {
		for _, t := range l.Timings {
			if t.DriverID != driverID {
				continue
			}
			row := lapRow{Lap: l.Number, Position: t.Position, Time: t.Time}
			if prev != "" {
				row.Delta, row.HasDelta = ergast.LapDelta(t.Time, prev)
			}
			prev = t.Time
			out = append(out, row)
		}
	}
	return out
}

func (m Model) lapLines() []string {
	if m.snap.Selection.Driver == "" {
		return nil
	}
	rows := lapRows(m.snap.LapTimes, m.snap.Selection.Driver)
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		line := fmt.Sprintf("lap %3s  P%-3s %10s", r.Lap, r.Position, r.Time)
		if r.HasDelta {
			d := fmt.Sprintf("%+.3f", r.Delta)
			if r.Delta < 0 {
				d = m.styles.Faster.Render(d)
			} else if r.Delta > 0 {
				d = m.styles.Slower.Render(d)
			}
			line += "  " + d
		}
		out = append(out, line)
	}
	return out
}

// window returns the [start,end) slice of n rows that keeps cursor visible.
func window(n, cursor, rows int) (int, int) {
	if n <= rows {
		return 0, n
	}
	start := cursor - rows/2
	if start < 0 {
		start = 0
	}
	if start+rows > n {
		start = n - rows
	}
	return start, start + rows
}

// truncate shortens plain text to width cells; styled text is left alone.
func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width || strings.Contains(s, "\x1b") {
		return s
	}
	r := []rune(s)
	if width <= 1 || len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
