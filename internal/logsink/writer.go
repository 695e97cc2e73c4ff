package logsink

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// WriterSurface renders entries onto plain writers. Stdout chunks are
// written verbatim to Out; stderr chunks go verbatim to Err; system
// notices are written to Err as "[system] ..." lines.
type WriterSurface struct {
	Out io.Writer
	Err io.Writer

	mu sync.Mutex
}

// NewWriterSurface returns a surface writing to out and errOut.
func NewWriterSurface(out, errOut io.Writer) *WriterSurface {
	return &WriterSurface{Out: out, Err: errOut}
}

// Render implements Surface.
func (w *WriterSurface) Render(_ int, e Entry) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch e.Origin {
	case OriginStdout:
		_, _ = io.WriteString(w.Out, e.Text)
	case OriginStderr:
		_, _ = io.WriteString(w.Err, e.Text)
	default:
		_, _ = fmt.Fprintf(w.Err, "[%s] %s\n", e.Origin, strings.TrimRight(e.Text, "\n"))
	}
}

// ScrollTo implements Surface. Streams have no view position.
func (w *WriterSurface) ScrollTo(int) {}

// Clear implements Surface. Text already written cannot be retracted.
func (w *WriterSurface) Clear() {}

var _ Surface = (*WriterSurface)(nil)
