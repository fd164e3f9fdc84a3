package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Spotify green for success states, purple for section titles.
const (
	colorTitle = "#7D56F4"
	colorOK    = "#1DB954"
	colorErr   = "#FF0000"
	colorWarn  = "#FFA500"
)

var styles = palette{
	title: bold(colorTitle).MarginBottom(1),
	ok:    bold(colorOK),
	err:   bold(colorErr),
	warn:  fg(colorWarn),
}

// palette holds the [lipgloss.Style] set shared by every view.
type palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
}

func fg(c string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(c))
}

func bold(c string) lipgloss.Style {
	return fg(c).Bold(true)
}
