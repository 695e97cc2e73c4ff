package supervisor

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/zjrosen/replpane/internal/log"
)

// session is one spawned process and the handles the supervisor holds on it.
type session struct {
	id        string
	path      string
	proc      Process
	interrupt string
	quit      string

	readers sync.WaitGroup
	writer  sync.WaitGroup
	exited  chan struct{}

	// Pending stdin lines, written in order by the session's writer.
	queueMu sync.Mutex
	queue   []string
	wake    chan struct{}
	ended   chan struct{}
	endOnce sync.Once

	killMu    sync.Mutex
	killOnce  sync.Once
	killed    atomic.Bool
	killTimer *time.Timer
}

func newSession(proc Process, settings Settings) *session {
	return &session{
		id:        uuid.New().String(),
		path:      settings.ExecutablePath,
		proc:      proc,
		interrupt: settings.InterruptDirective,
		quit:      settings.QuitDirective,
		exited:    make(chan struct{}),
		wake:      make(chan struct{}, 1),
		ended:     make(chan struct{}),
	}
}

// enqueue appends line to the stdin queue. It never blocks.
func (s *session) enqueue(line string) {
	s.queueMu.Lock()
	s.queue = append(s.queue, line)
	s.queueMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *session) next() (string, bool) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	if len(s.queue) == 0 {
		return "", false
	}
	line := s.queue[0]
	s.queue[0] = ""
	s.queue = s.queue[1:]
	return line, true
}

// writeLoop writes queued lines until the session ends or a write fails.
// Each line goes out in a single Write so lines never interleave. Lines
// still queued when the session ends are dropped.
func (s *session) writeLoop(onErr func(error)) {
	defer s.writer.Done()
	stdin := s.proc.Stdin()
	for {
		line, ok := s.next()
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.ended:
				return
			}
		}
		select {
		case <-s.ended:
			return
		default:
		}
		if _, err := io.WriteString(stdin, line+"\n"); err != nil {
			onErr(err)
			return
		}
	}
}

// end stops the writer.
func (s *session) end() {
	s.endOnce.Do(func() { close(s.ended) })
}

// gone reports whether the process has exited or been killed, after which
// stdin failures are expected.
func (s *session) gone() bool {
	if s.killed.Load() {
		return true
	}
	select {
	case <-s.exited:
		return true
	default:
		return false
	}
}

// kill force-terminates the process at most once.
func (s *session) kill() {
	s.killOnce.Do(func() {
		s.killed.Store(true)
		log.Debug(log.CatProc, "Killing interpreter", "session", s.id, "pid", s.proc.PID())
		if err := s.proc.Kill(); err != nil {
			log.ErrorErr(log.CatProc, "Kill failed", err, "session", s.id)
		}
	})
}

// scheduleKill arms a one-shot timer that kills the process unless it has
// exited by then. Repeated calls keep the first timer.
func (s *session) scheduleKill(after time.Duration) {
	s.killMu.Lock()
	defer s.killMu.Unlock()

	if s.killTimer != nil {
		return
	}
	s.killTimer = time.AfterFunc(after, func() {
		select {
		case <-s.exited:
			return
		default:
		}
		log.Info(log.CatProc, "Grace interval elapsed, forcing termination", "session", s.id)
		s.kill()
	})
}

// markExited records process exit and disarms any pending kill.
func (s *session) markExited() {
	close(s.exited)

	s.killMu.Lock()
	defer s.killMu.Unlock()
	if s.killTimer != nil {
		s.killTimer.Stop()
	}
}

// waitReaders waits up to d for both output streams to reach end of stream.
func (s *session) waitReaders(d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.readers.Wait()
		close(done)
	}()
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-done:
		return true
	case <-t.C:
		return false
	}
}
