package frame

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/muesli/termenv"
)

// TerminalSink writes each frame to a terminal, clearing the screen first.
type TerminalSink struct {
	mu    sync.Mutex
	w     io.Writer
	clear bool
}

// NewTerminalSink creates a sink writing to w. When clear is false (output
// is piped) frames are appended without the clear-screen sequence.
func NewTerminalSink(w io.Writer, clear bool) *TerminalSink {
	return &TerminalSink{w: w, clear: clear}
}

// Show writes f in a single write call.
func (s *TerminalSink) Show(f Frame) error {
	var buf bytes.Buffer
	if s.clear {
		fmt.Fprintf(&buf, termenv.CSI+termenv.CursorPositionSeq, 1, 1)
		fmt.Fprintf(&buf, termenv.CSI+termenv.EraseDisplaySeq, 2)
	}
	buf.WriteString(Render(f))

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("frame: write: %w", err)
	}
	return nil
}
