package supervisor

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/zjrosen/replpane/internal/log"
	"github.com/zjrosen/replpane/internal/logsink"
	"github.com/zjrosen/replpane/internal/pubsub"
	"github.com/zjrosen/replpane/internal/tracing"
)

const (
	// DefaultGraceInterval is how long Stop waits after the shutdown
	// directives before killing the process.
	DefaultGraceInterval = 100 * time.Millisecond

	defaultChunkSize   = 4096
	entryQueueCapacity = 256

	// outputDrainTimeout bounds how long output is still read after the
	// process exits, for when a descendant keeps the pipes open.
	outputDrainTimeout = 250 * time.Millisecond
)

// Settings is the part of the configuration read on every Start.
type Settings struct {
	ExecutablePath     string
	InterruptDirective string
	QuitDirective      string
}

// SettingsFunc supplies Settings. It is called once per Start.
type SettingsFunc func() Settings

// StaticSettings returns a SettingsFunc that always yields s.
func StaticSettings(s Settings) SettingsFunc {
	return func() Settings { return s }
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithSpawner replaces the os/exec spawner.
func WithSpawner(sp Spawner) Option {
	return func(s *Supervisor) { s.spawner = sp }
}

// WithTracer sets the tracer used for lifecycle spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Supervisor) { s.tracer = t }
}

// WithGraceInterval overrides DefaultGraceInterval.
func WithGraceInterval(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.grace = d
		}
	}
}

// WithChunkSize sets the maximum size of one forwarded output chunk.
func WithChunkSize(n int) Option {
	return func(s *Supervisor) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// Supervisor owns at most one interpreter process at a time.
// All methods are safe for concurrent use.
type Supervisor struct {
	settings  SettingsFunc
	sink      logsink.Appender
	spawner   Spawner
	tracer    trace.Tracer
	grace     time.Duration
	chunkSize int

	mu     sync.Mutex
	state  State
	sess   *session
	closed bool

	entries   chan logsink.Entry
	events    *pubsub.Broker[StateEvent]
	observers sync.WaitGroup
	done      chan struct{}
	pumpDone  chan struct{}
	closeOnce sync.Once
}

// New creates a stopped supervisor forwarding output to sink.
// Call Close to release it.
func New(settings SettingsFunc, sink logsink.Appender, opts ...Option) *Supervisor {
	s := &Supervisor{
		settings:  settings,
		sink:      sink,
		spawner:   ExecSpawner{},
		tracer:    tracing.Noop(),
		grace:     DefaultGraceInterval,
		chunkSize: defaultChunkSize,
		state:     StateStopped,
		entries:   make(chan logsink.Entry, entryQueueCapacity),
		events:    pubsub.NewBroker[StateEvent](pubsub.WithReplay()),
		done:      make(chan struct{}),
		pumpDone:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.pump()
	return s
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SessionID returns the live session's ID, or "" when none exists.
func (s *Supervisor) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return ""
	}
	return s.sess.id
}

// PID returns the live process ID, or 0 when none exists.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return 0
	}
	return s.sess.proc.PID()
}

// Events returns state transition notifications. New subscribers receive
// the most recent transition first.
func (s *Supervisor) Events() pubsub.Subscriber[StateEvent] {
	return s.events
}

// Start spawns the interpreter if none is live. It is a no-op when a
// process is already starting, running or stopping.
func (s *Supervisor) Start(ctx context.Context) error {
	return s.start(ctx)
}

func (s *Supervisor) start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state != StateStopped {
		s.mu.Unlock()
		return nil
	}
	s.transitionLocked(StateStarting, nil, nil)
	s.mu.Unlock()

	settings := s.settings()

	_, span := tracing.Start(ctx, s.tracer, tracing.SpanStart,
		attribute.String(tracing.AttrProcessPath, settings.ExecutablePath),
	)
	defer span.End()

	log.Debug(log.CatProc, "Spawning interpreter", "path", settings.ExecutablePath)
	proc, err := s.spawner.Spawn(settings.ExecutablePath)
	if err != nil {
		spawnErr := &SpawnError{Path: settings.ExecutablePath, Err: err}
		s.mu.Lock()
		s.transitionLocked(StateStopped, nil, spawnErr)
		s.mu.Unlock()

		log.ErrorErr(log.CatProc, "Failed to start interpreter", err, "path", settings.ExecutablePath)
		s.emit(logsink.System("failed to start %s: %v", settings.ExecutablePath, err))
		tracing.RecordError(span, spawnErr)
		return spawnErr
	}

	sess := newSession(proc, settings)

	s.mu.Lock()
	if s.closed {
		// Close ran while we were spawning; nobody will observe this process.
		s.transitionLocked(StateStopped, nil, ErrClosed)
		s.mu.Unlock()
		sess.kill()
		go func() {
			_ = proc.Wait()
			_ = proc.Close()
		}()
		tracing.RecordError(span, ErrClosed)
		return ErrClosed
	}
	s.sess = sess
	s.transitionLocked(StateRunning, sess, nil)
	s.mu.Unlock()

	span.SetAttributes(
		attribute.String(tracing.AttrSessionID, sess.id),
		attribute.Int(tracing.AttrProcessPID, proc.PID()),
	)
	span.AddEvent(tracing.EventSpawned)
	log.Info(log.CatProc, "Interpreter started", "session", sess.id, "pid", proc.PID(), "path", sess.path)
	s.emit(logsink.System("started %s (pid %d)", sess.path, proc.PID()))

	sess.readers.Add(2)
	go s.drain(sess, logsink.OriginStdout, proc.Stdout())
	go s.drain(sess, logsink.OriginStderr, proc.Stderr())
	sess.writer.Add(1)
	go sess.writeLoop(func(err error) { s.writeFailed(sess, err) })

	s.observers.Add(1)
	go s.observe(sess)

	return nil
}

// Submit queues code followed by a newline for the interpreter's stdin,
// starting the interpreter first if it is not running. It does not wait for
// the write or any acknowledgment; a failed write ends the session with a
// StreamTerminatedError reported through Events and the sink.
func (s *Supervisor) Submit(ctx context.Context, code string) error {
	ctx, span := tracing.Start(ctx, s.tracer, tracing.SpanSubmit,
		attribute.Int(tracing.AttrPayloadSize, len(code)+1),
	)
	defer span.End()

	if s.State() != StateRunning {
		span.AddEvent(tracing.EventImplicitStart)
		if err := s.start(ctx); err != nil {
			tracing.RecordError(span, err)
			return err
		}
	}

	// Queue under s.mu so a concurrent Stop cannot slip its directives
	// ahead of this line.
	s.mu.Lock()
	sess, state := s.sess, s.state
	if sess != nil && state == StateRunning {
		sess.enqueue(code)
	}
	s.mu.Unlock()

	if sess == nil || state != StateRunning {
		err := &NotReadyError{State: state}
		tracing.RecordError(span, err)
		return err
	}
	span.SetAttributes(attribute.String(tracing.AttrSessionID, sess.id))
	return nil
}

// Stop asks the interpreter to shut down and schedules a forced kill after
// the grace interval. It returns without waiting; the supervisor reaches
// Stopped when the process exits. Stop is a no-op unless Running.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateRunning || s.sess == nil {
		s.mu.Unlock()
		return nil
	}
	sess := s.sess
	s.transitionLocked(StateStopping, sess, nil)

	// Arm the kill before any directive is queued. Interrupt strictly
	// before quit; the writer skips the quit if the interrupt fails.
	sess.scheduleKill(s.grace)
	for _, directive := range []string{sess.interrupt, sess.quit} {
		if directive != "" {
			sess.enqueue(directive)
		}
	}
	s.mu.Unlock()

	_, span := tracing.Start(ctx, s.tracer, tracing.SpanStop,
		attribute.String(tracing.AttrSessionID, sess.id),
		attribute.Int(tracing.AttrProcessPID, sess.proc.PID()),
	)
	defer span.End()

	log.Info(log.CatProc, "Stopping interpreter", "session", sess.id, "grace", s.grace)
	span.AddEvent(tracing.EventKillScheduled)
	span.AddEvent(tracing.EventDirectivesSent)
	return nil
}

// Close kills any live process, waits for it to be reaped and stops
// forwarding output. The supervisor cannot be restarted afterwards.
func (s *Supervisor) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		sess := s.sess
		s.mu.Unlock()

		if sess != nil {
			sess.kill()
		}
		s.observers.Wait()

		close(s.done)
		<-s.pumpDone
		s.events.Close()
	})
	return nil
}

// drain forwards chunks from one output stream until it ends.
func (s *Supervisor) drain(sess *session, origin logsink.Origin, r io.Reader) {
	defer sess.readers.Done()

	// The decoder holds back a multi-byte sequence split across reads and
	// replaces invalid bytes with U+FFFD.
	dec := transform.NewReader(r, unicode.UTF8.NewDecoder())
	buf := make([]byte, s.chunkSize)

	for {
		n, err := dec.Read(buf)
		if n > 0 {
			s.emit(logsink.Entry{Origin: origin, Text: string(buf[:n]), Time: time.Now()})
		}
		if err == nil {
			continue
		}
		if !isEndOfStream(err) {
			log.ErrorErr(log.CatProc, "Output stream failed", err, "session", sess.id, "stream", origin)
			s.terminate(sess, &StreamTerminatedError{Stream: string(origin), Err: err})
		}
		return
	}
}

// observe waits for the process to exit and returns the supervisor to
// Stopped.
func (s *Supervisor) observe(sess *session) {
	defer s.observers.Done()

	err := sess.proc.Wait()
	sess.markExited()

	// A descendant may still hold the pipes; forward what is already
	// buffered, then close our ends so the readers and the writer return.
	if !sess.waitReaders(outputDrainTimeout) {
		log.Warn(log.CatProc, "Output still open after exit, closing pipes", "session", sess.id)
	}
	sess.end()
	if cerr := sess.proc.Close(); cerr != nil {
		log.Debug(log.CatProc, "Closing pipes", "session", sess.id, "error", cerr)
	}
	sess.readers.Wait()
	sess.writer.Wait()

	s.mu.Lock()
	owned := s.sess == sess
	if owned {
		s.sess = nil
		s.transitionLocked(StateStopped, sess, nil)
	}
	s.mu.Unlock()

	log.Info(log.CatProc, "Interpreter exited", "session", sess.id, "status", exitStatus(err), "owned", owned)
	if owned {
		s.emit(logsink.System("process exited (%s)", exitStatus(err)))
	}
}

// writeFailed handles a stdin write error from the session's writer. Errors
// after the process exited or was killed are expected and only logged.
func (s *Supervisor) writeFailed(sess *session, err error) {
	if sess.gone() {
		log.Debug(log.CatProc, "Dropped stdin write after exit", "session", sess.id, "error", err)
		return
	}
	log.ErrorErr(log.CatProc, "Stdin write failed", err, "session", sess.id)
	s.terminate(sess, &StreamTerminatedError{Stream: "stdin", Err: err})
}

// terminate handles an unexpected stream failure as process death.
func (s *Supervisor) terminate(sess *session, cause error) {
	s.mu.Lock()
	if s.sess != sess {
		s.mu.Unlock()
		return
	}
	s.sess = nil
	s.transitionLocked(StateStopped, sess, cause)
	s.mu.Unlock()

	sess.kill()
	s.emit(logsink.System("%v", cause))
}

// transitionLocked records a state change and publishes it. s.mu must be held.
func (s *Supervisor) transitionLocked(to State, sess *session, cause error) {
	from := s.state
	s.state = to

	event := StateEvent{From: from, To: to, Err: cause}
	if sess != nil {
		event.SessionID = sess.id
		event.PID = sess.proc.PID()
	}
	s.events.Publish(pubsub.StateChangedEvent, event)
}

// emit queues an entry for the sink. Entries emitted after Close are dropped.
func (s *Supervisor) emit(e logsink.Entry) {
	select {
	case s.entries <- e:
	case <-s.done:
	}
}

// pump is the single consumer that appends queued entries to the sink.
func (s *Supervisor) pump() {
	defer close(s.pumpDone)
	for {
		select {
		case e := <-s.entries:
			s.sink.Append(e)
		case <-s.done:
			for {
				select {
				case e := <-s.entries:
					s.sink.Append(e)
				default:
					return
				}
			}
		}
	}
}

func isEndOfStream(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}

func exitStatus(err error) string {
	if err == nil {
		return "exit status 0"
	}
	return err.Error()
}
