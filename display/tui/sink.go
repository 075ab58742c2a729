package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"gitlab.com/tinyland/lab/core-pulse/display/frame"
)

// sender is the part of *tea.Program the sink needs.
type sender interface {
	Send(msg tea.Msg)
}

// Sink forwards frames to a running Bubble Tea program.
type Sink struct {
	program sender
}

// NewSink creates a Sink for p.
func NewSink(p *tea.Program) *Sink {
	return &Sink{program: p}
}

// Show sends f to the program. It never blocks once the program has exited.
func (s *Sink) Show(f frame.Frame) error {
	s.program.Send(FrameMsg(f))
	return nil
}
