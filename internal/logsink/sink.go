package logsink

import (
	"sync"

	"github.com/zjrosen/replpane/internal/log"
)

// Surface is the display capability a host attaches to a Sink.
// Implementations must not block: they are called with the sink locked,
// from whichever goroutine appended the entry.
type Surface interface {
	// Render displays e in slot index.
	Render(index int, e Entry)
	// ScrollTo moves the visible position to slot index.
	ScrollTo(index int)
	// Clear removes everything the surface displays.
	Clear()
}

// Appender is the narrow interface producers use.
type Appender interface {
	Append(e Entry)
}

// Sink is an ordered, append-only sequence of entries.
// It is safe for concurrent use.
type Sink struct {
	mu      sync.Mutex
	surface Surface
	entries []Entry
	cursor  int
}

// New returns a detached sink.
func New() *Sink {
	return &Sink{cursor: -1}
}

// Attach binds a display surface and starts a fresh view.
// Any previously attached surface is replaced.
func (s *Sink) Attach(surface Surface) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.surface = surface
	s.clearLocked()
	log.Debug(log.CatSink, "surface attached")
}

// Detach unbinds the current surface. Entries appended while detached are
// dropped.
func (s *Sink) Detach() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.surface != nil {
		log.Debug(log.CatSink, "surface detached", "entries", len(s.entries))
	}
	s.surface = nil
}

// Attached reports whether a surface is bound.
func (s *Sink) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface != nil
}

// Append adds e at the end of the sequence, renders it and moves the view
// to it. It never blocks and never fails.
func (s *Sink) Append(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.surface == nil {
		return
	}

	s.entries = append(s.entries, e)
	idx := len(s.entries) - 1
	s.surface.Render(idx, e)
	s.cursor = idx
	s.surface.ScrollTo(idx)
}

// Clear discards every entry.
func (s *Sink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

func (s *Sink) clearLocked() {
	s.entries = nil
	s.cursor = -1
	if s.surface != nil {
		s.surface.Clear()
	}
}

// Entries returns a copy of the current sequence.
func (s *Sink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Cursor returns the index of the entry the view is positioned on, or -1
// when the sequence is empty.
func (s *Sink) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

var _ Appender = (*Sink)(nil)
