package tui

import "github.com/charmbracelet/lipgloss"

// Color palette for the dashboard chrome; per-core colours come from frame.
const (
	colorPrimary = lipgloss.Color("#7C3AED") // Purple
	colorMuted   = lipgloss.Color("#6B7280") // Gray
)

// Styles used throughout the TUI.
var (
	styleHeader lipgloss.Style
	styleFooter lipgloss.Style
	styleTitle  lipgloss.Style
	stylePaused lipgloss.Style
)

func init() {
	styleHeader = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(colorMuted).
		MarginBottom(1)

	styleFooter = lipgloss.NewStyle().
		Foreground(colorMuted).
		MarginTop(1)

	styleTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(colorPrimary)

	stylePaused = lipgloss.NewStyle().
		Foreground(colorMuted).
		Italic(true)
}
