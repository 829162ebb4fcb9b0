package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	Title    lipgloss.Style
	Crumb    lipgloss.Style
	Pane     lipgloss.Style
	Focused  lipgloss.Style
	Heading  lipgloss.Style
	Cursor   lipgloss.Style
	Selected lipgloss.Style
	Muted    lipgloss.Style
	Error    lipgloss.Style
	Faster   lipgloss.Style
	Slower   lipgloss.Style
	Tab      lipgloss.Style
	TabOn    lipgloss.Style
}

func defaultStyles() styles {
	border := lipgloss.RoundedBorder()
	return styles{
		Title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E10600")),
		Crumb: lipgloss.NewStyle().Foreground(lipgloss.Color("#A0A0A0")),
		Pane: lipgloss.NewStyle().
			Border(border).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1),
		Focused: lipgloss.NewStyle().
			Border(border).
			BorderForeground(lipgloss.Color("#E10600")).
			Padding(0, 1),
		Heading:  lipgloss.NewStyle().Bold(true).Underline(true),
		Cursor:   lipgloss.NewStyle().Reverse(true),
		Selected: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700")),
		Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("#777777")),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555")).Bold(true),
		Faster:   lipgloss.NewStyle().Foreground(lipgloss.Color("#50FA7B")),
		Slower:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555")),
		Tab:      lipgloss.NewStyle().Foreground(lipgloss.Color("#777777")).Padding(0, 1),
		TabOn:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#E10600")).Padding(0, 1),
	}
}
