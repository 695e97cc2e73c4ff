package supervisor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Process is a live interpreter process. Stdout and Stderr are each read by
// exactly one goroutine and Stdin is written by one. Wait returns when the
// process exits, even if a descendant still holds the other pipe ends.
// Close releases the parent's pipe ends and unblocks pending reads and
// writes.
type Process interface {
	PID() int
	Stdin() io.Writer
	Stdout() io.Reader
	Stderr() io.Reader
	Wait() error
	Kill() error
	Close() error
}

// Spawner launches interpreter processes.
type Spawner interface {
	Spawn(path string) (Process, error)
}

// SpawnerFunc adapts a function to Spawner.
type SpawnerFunc func(path string) (Process, error)

// Spawn calls f.
func (f SpawnerFunc) Spawn(path string) (Process, error) { return f(path) }

// ExecSpawner starts processes with os/exec, connected through pipes.
// The child inherits the parent's environment and working directory.
type ExecSpawner struct{}

// Spawn starts path with no arguments.
func (ExecSpawner) Spawn(path string) (Process, error) {
	if path == "" {
		return nil, errors.New("executable path is empty")
	}

	// The pipes are created here rather than with cmd.StdoutPipe so that
	// Wait does not depend on the read ends reaching EOF.
	var parent, child []*os.File
	closeAll := func(files []*os.File) {
		for _, f := range files {
			_ = f.Close()
		}
	}
	pipe := func(name string, childReads bool) (*os.File, error) {
		r, w, err := os.Pipe()
		if err != nil {
			return nil, fmt.Errorf("failed to create %s pipe: %w", name, err)
		}
		if childReads {
			parent, child = append(parent, w), append(child, r)
			return r, nil
		}
		parent, child = append(parent, r), append(child, w)
		return w, nil
	}

	// #nosec G204 -- path comes from the user's own configuration
	cmd := exec.Command(path)

	var err error
	if cmd.Stdin, err = pipe("stdin", true); err != nil {
		closeAll(parent)
		closeAll(child)
		return nil, err
	}
	if cmd.Stdout, err = pipe("stdout", false); err != nil {
		closeAll(parent)
		closeAll(child)
		return nil, err
	}
	if cmd.Stderr, err = pipe("stderr", false); err != nil {
		closeAll(parent)
		closeAll(child)
		return nil, err
	}

	err = cmd.Start()
	closeAll(child)
	if err != nil {
		closeAll(parent)
		return nil, err
	}

	return &execProcess{cmd: cmd, stdin: parent[0], stdout: parent[1], stderr: parent[2]}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdin  *os.File
	stdout *os.File
	stderr *os.File
}

func (p *execProcess) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *execProcess) Stdin() io.Writer  { return p.stdin }
func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Stderr() io.Reader { return p.stderr }

// Wait reaps the process. The pipes stay open until Close.
func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (p *execProcess) Close() error {
	return errors.Join(p.stdin.Close(), p.stdout.Close(), p.stderr.Close())
}

var _ Spawner = ExecSpawner{}
