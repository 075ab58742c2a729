// Package frame renders one averaging window as colour-coded terminal lines.
package frame

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/core-pulse/collectors/procstat"
)

// Level is the load class a percentage falls into.
type Level int

const (
	LevelLow Level = iota
	LevelMid
	LevelHigh
)

// Thresholds between the load classes, in percent.
const (
	LowThreshold  = 30.0
	HighThreshold = 70.0
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelLow:
		return "low"
	case LevelMid:
		return "mid"
	case LevelHigh:
		return "high"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Classify maps an average percentage to its level: below 30 is low,
// above 70 is high, everything in between (inclusive) is mid.
func Classify(avg float64) Level {
	switch {
	case avg < LowThreshold:
		return LevelLow
	case avg > HighThreshold:
		return LevelHigh
	default:
		return LevelMid
	}
}

// Colors for each level; ANSI indexes so they degrade on 16-colour terminals.
var (
	ColorLow   = lipgloss.Color("2")
	ColorMid   = lipgloss.Color("3")
	ColorHigh  = lipgloss.Color("1")
	colorTotal = lipgloss.Color("7")
)

// LevelColor returns the colour used for l.
func LevelColor(l Level) lipgloss.Color {
	switch l {
	case LevelHigh:
		return ColorHigh
	case LevelMid:
		return ColorMid
	default:
		return ColorLow
	}
}

var styleTotal = lipgloss.NewStyle().Underline(true).Foreground(colorTotal)

// TotalPrefix marks the aggregate line.
const TotalPrefix = "TOTAL"

// Row is one core's averaged utilisation.
type Row struct {
	Label   string
	Percent float64
}

// IsTotal reports whether r is the aggregate line.
func (r Row) IsTotal() bool {
	return r.Label == procstat.AggregateLabel
}

// Frame is everything printed for one closed window.
type Frame struct {
	Rows []Row
	At   time.Time
}

// FormatPercent formats p with one decimal digit.
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}

// RenderRow renders one line without a trailing newline.
func RenderRow(r Row) string {
	pct := lipgloss.NewStyle().Foreground(LevelColor(Classify(r.Percent))).Render(FormatPercent(r.Percent))
	if r.IsTotal() {
		return styleTotal.Render(TotalPrefix+" "+r.Label+":") + " " + pct
	}
	return r.Label + ": " + pct
}

// Render renders every row of f, one per line, in order.
func Render(f Frame) string {
	var b strings.Builder
	for _, r := range f.Rows {
		b.WriteString(RenderRow(r))
		b.WriteByte('\n')
	}
	return b.String()
}
