package supervisor

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/replpane/internal/logsink"
)

var errKilled = errors.New("signal: killed")

// fakeProcess is an in-memory Process. Stdin writes are recorded; stdout and
// stderr are pipes the test writes into.
type fakeProcess struct {
	pid     int
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
	stderrR *io.PipeReader
	stderrW *io.PipeWriter

	// exitOn makes the process exit cleanly when this exact line is written.
	exitOn string

	// blockStdin, when set, holds every stdin write until it is closed or
	// the process is closed, like a pipe nobody reads.
	blockStdin chan struct{}

	mu       sync.Mutex
	stdin    bytes.Buffer
	stdinErr error

	kills    atomic.Int32
	exitOnce sync.Once
	exited   chan struct{}
	exitErr  error

	closes    atomic.Int32
	closeOnce sync.Once
	released  chan struct{}
}

func newFakeProcess(pid int) *fakeProcess {
	p := &fakeProcess{pid: pid, exited: make(chan struct{}), released: make(chan struct{})}
	p.stdoutR, p.stdoutW = io.Pipe()
	p.stderrR, p.stderrW = io.Pipe()
	return p
}

func (p *fakeProcess) PID() int          { return p.pid }
func (p *fakeProcess) Stdin() io.Writer  { return fakeStdin{p} }
func (p *fakeProcess) Stdout() io.Reader { return p.stdoutR }
func (p *fakeProcess) Stderr() io.Reader { return p.stderrR }

func (p *fakeProcess) Wait() error {
	<-p.exited
	return p.exitErr
}

func (p *fakeProcess) Kill() error {
	p.kills.Add(1)
	p.exit(errKilled)
	return nil
}

// Close ends both output streams on the reading side.
func (p *fakeProcess) Close() error {
	p.closes.Add(1)
	p.closeOnce.Do(func() { close(p.released) })
	_ = p.stdoutR.Close()
	_ = p.stderrR.Close()
	return nil
}

// exit closes both output streams and lets Wait return err.
func (p *fakeProcess) exit(err error) {
	p.exitOnce.Do(func() {
		p.exitErr = err
		_ = p.stdoutW.Close()
		_ = p.stderrW.Close()
		close(p.exited)
	})
}

func (p *fakeProcess) written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stdin.String()
}

func (p *fakeProcess) breakStdin(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stdinErr = err
}

type fakeStdin struct{ p *fakeProcess }

func (w fakeStdin) Write(b []byte) (int, error) {
	p := w.p
	if p.blockStdin != nil {
		select {
		case <-p.blockStdin:
		case <-p.released:
			return 0, io.ErrClosedPipe
		}
	}
	p.mu.Lock()
	if p.stdinErr != nil {
		err := p.stdinErr
		p.mu.Unlock()
		return 0, err
	}
	p.stdin.Write(b)
	exit := p.exitOn != "" && strings.TrimSuffix(string(b), "\n") == p.exitOn
	p.mu.Unlock()

	if exit {
		p.exit(nil)
	}
	return len(b), nil
}

// fakeSpawner hands out fakeProcesses and records every spawn.
type fakeSpawner struct {
	mu        sync.Mutex
	procs     []*fakeProcess
	paths     []string
	err       error
	configure func(*fakeProcess)
}

func (s *fakeSpawner) Spawn(path string) (Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.paths = append(s.paths, path)
	if s.err != nil {
		return nil, s.err
	}
	p := newFakeProcess(1000 + len(s.procs))
	if s.configure != nil {
		s.configure(p)
	}
	s.procs = append(s.procs, p)
	return p, nil
}

func (s *fakeSpawner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paths)
}

func (s *fakeSpawner) last() *fakeProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.procs) == 0 {
		return nil
	}
	return s.procs[len(s.procs)-1]
}

// recordingAppender collects every entry the pump delivers.
type recordingAppender struct {
	mu      sync.Mutex
	entries []logsink.Entry
}

func (a *recordingAppender) Append(e logsink.Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

func (a *recordingAppender) snapshot() []logsink.Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]logsink.Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// text concatenates the text of every entry with the given origin.
func (a *recordingAppender) text(origin logsink.Origin) string {
	var b strings.Builder
	for _, e := range a.snapshot() {
		if e.Origin == origin {
			b.WriteString(e.Text)
		}
	}
	return b.String()
}

func (a *recordingAppender) system() []string {
	var out []string
	for _, e := range a.snapshot() {
		if e.Origin == logsink.OriginSystem {
			out = append(out, e.Text)
		}
	}
	return out
}

func (a *recordingAppender) hasSystem(substr string) bool {
	for _, text := range a.system() {
		if strings.Contains(text, substr) {
			return true
		}
	}
	return false
}

var testSettings = Settings{
	ExecutablePath:     "sclang",
	InterruptDirective: "CmdPeriod.run;",
	QuitDirective:      "0.exit;",
}

func newTestSupervisor(t testing.TB, sp Spawner, opts ...Option) (*Supervisor, *recordingAppender) {
	t.Helper()
	sink := &recordingAppender{}
	s := New(StaticSettings(testSettings), sink, append([]Option{WithSpawner(sp)}, opts...)...)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s, sink
}
