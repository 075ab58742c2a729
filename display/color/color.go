// Package color decides whether core-pulse output is coloured.
//
// It implements the NO_COLOR convention (https://no-color.org/) and
// pipe/redirect detection. When colour is off, lipgloss is switched to the
// Ascii profile so every styled render produces plain text.
package color

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Mode selects how colour output is decided.
type Mode string

const (
	// ModeAuto colours output only on a terminal without NO_COLOR.
	ModeAuto Mode = "auto"
	// ModeAlways forces colour, even through a pipe.
	ModeAlways Mode = "always"
	// ModeNever disables colour.
	ModeNever Mode = "never"
)

// ParseMode validates a mode string. The empty string means ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeAlways, ModeNever:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("color: unknown mode %q (want auto, always or never)", s)
	}
}

// isTerminal is overridable for testing.
var isTerminal = func(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ShouldDisableColor reports whether output on f should be plain text
// under mode.
func ShouldDisableColor(mode Mode, f *os.File) bool {
	switch mode {
	case ModeNever:
		return true
	case ModeAlways:
		return false
	}

	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return true
	}
	return f == nil || !isTerminal(f.Fd())
}

// Apply configures the global lipgloss renderer for output on f and
// reports whether colour is enabled.
func Apply(mode Mode, f *os.File) bool {
	if ShouldDisableColor(mode, f) {
		ForceDisable()
		return false
	}
	if mode == ModeAlways && lipgloss.ColorProfile() == termenv.Ascii {
		lipgloss.SetColorProfile(termenv.ANSI)
	}
	return true
}

// ForceDisable switches lipgloss to plain text unconditionally.
func ForceDisable() {
	lipgloss.SetColorProfile(termenv.Ascii)
}
