// Package supervisor owns the lifecycle of a single external interpreter
// process.
//
// A Supervisor moves through four states:
//
//	Stopped -> Starting -> Running -> Stopping -> Stopped
//
// Start spawns the configured executable with no arguments and attaches one
// reader goroutine per output stream. Each chunk read is decoded as UTF-8
// and forwarded, tagged with its origin, to a logsink.Appender through a
// single pump goroutine, so chunks from the same stream keep their order
// while stdout and stderr never wait on each other.
//
// Submit queues a code fragment plus one newline for the interpreter's
// stdin, spawning the interpreter first when none is running. One writer
// goroutine per session performs the writes in order, so neither Submit nor
// Stop blocks on a full pipe. Stop arms a forced kill after a short grace
// interval and then queues the interrupt and quit directives; the
// transition back to Stopped is observed when the process actually exits.
//
// Exit is detected by waiting on the process, not by end of output, because
// a background child can keep the pipes open indefinitely.
//
// Errors that happen inside the background readers and writer are never
// returned to callers. They become state transitions plus system entries in the sink.
package supervisor
