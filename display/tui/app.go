// Package tui is the Bubble Tea front end for core-pulse. It shows each
// rendered window as one progress bar per core.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/core-pulse/display/frame"
	"gitlab.com/tinyland/lab/core-pulse/internal/format"
)

// FrameMsg carries one closed window into the program.
type FrameMsg frame.Frame

// minBarWidth keeps bars readable on narrow terminals.
const minBarWidth = 10

// Model is the top-level Bubble Tea model.
type Model struct {
	frame   frame.Frame
	frames  int
	started time.Time
	width   int
	height  int
	paused  bool
	help    help.Model
	ready   bool
}

// NewModel returns an empty Model.
func NewModel() Model {
	return Model{help: help.New()}
}

// Init implements tea.Model. No initial commands are needed.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true

	case FrameMsg:
		if !m.paused {
			m.frame = frame.Frame(msg)
			m.frames++
			if m.started.IsZero() {
				m.started = m.frame.At
			}
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := styleHeader.Width(m.width).Render(styleTitle.Render("core-pulse"))
	return lipgloss.JoinVertical(lipgloss.Left, header, m.renderRows(), m.renderFooter())
}

// renderRows renders one line per core: label, percentage, bar.
func (m Model) renderRows() string {
	if len(m.frame.Rows) == 0 {
		return stylePaused.Render("waiting for the first window...")
	}

	labelWidth := 0
	for _, r := range m.frame.Rows {
		if w := lipgloss.Width(frame.RenderRow(r)); w > labelWidth {
			labelWidth = w
		}
	}
	barWidth := m.width - labelWidth - 2
	if barWidth < minBarWidth {
		barWidth = minBarWidth
	}

	lines := make([]string, 0, len(m.frame.Rows))
	for _, r := range m.frame.Rows {
		text := frame.RenderRow(r)
		pad := strings.Repeat(" ", labelWidth-lipgloss.Width(text))
		lines = append(lines, text+pad+"  "+renderBar(r.Percent, barWidth))
	}
	return strings.Join(lines, "\n")
}

// renderBar draws a bar filled to pct in the colour of its load level.
func renderBar(pct float64, width int) string {
	bar := progress.New(
		progress.WithSolidFill(string(frame.LevelColor(frame.Classify(pct)))),
		progress.WithoutPercentage(),
		progress.WithWidth(width),
	)
	return bar.ViewAs(pct / 100)
}

// renderFooter renders the help line and frame status.
func (m Model) renderFooter() string {
	status := fmt.Sprintf("  frames: %d", m.frames)
	if !m.frame.At.IsZero() {
		status += fmt.Sprintf("  updated: %s", m.frame.At.Format("15:04:05"))
	}
	if up := format.Elapsed(m.started, m.frame.At); up != "" {
		status += "  up: " + up
	}
	if m.paused {
		status += "  " + stylePaused.Render("paused")
	}
	return styleFooter.Width(m.width).Render(m.help.View(keys) + status)
}
