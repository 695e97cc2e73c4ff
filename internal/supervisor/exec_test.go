package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/replpane/internal/logsink"
)

// echoInterpreter answers every line on both streams and exits 3 on "quit".
const echoInterpreter = `#!/bin/sh
while IFS= read -r line; do
	if [ "$line" = "quit" ]; then
		exit 3
	fi
	echo "out:$line"
	echo "err:$line" >&2
done
`

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "interp.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755)) //nolint:gosec // test script must be executable
	return path
}

func TestExecSpawner_EmptyPath(t *testing.T) {
	_, err := ExecSpawner{}.Spawn("")
	require.Error(t, err)
}

func TestExecSpawner_MissingExecutable(t *testing.T) {
	s := New(StaticSettings(Settings{ExecutablePath: filepath.Join(t.TempDir(), "nope")}), &recordingAppender{})
	t.Cleanup(func() { _ = s.Close() })

	err := s.Start(context.Background())
	require.ErrorIs(t, err, ErrSpawn)
	require.Equal(t, StateStopped, s.State())
}

func TestExecSpawner_RoundTrip(t *testing.T) {
	path := writeScript(t, echoInterpreter)
	sink := &recordingAppender{}
	s := New(StaticSettings(Settings{
		ExecutablePath:     path,
		InterruptDirective: "interrupt",
		QuitDirective:      "quit",
	}), sink)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Submit(context.Background(), "hello"))
	require.Positive(t, s.PID())

	require.Eventually(t, func() bool {
		return strings.Contains(sink.text(logsink.OriginStdout), "out:hello\n") &&
			strings.Contains(sink.text(logsink.OriginStderr), "err:hello\n")
	}, waitFor, tick)

	require.NoError(t, s.Stop(context.Background()))

	require.Eventually(t, func() bool { return s.State() == StateStopped }, waitFor, tick)
	require.Eventually(t, func() bool { return strings.Contains(sink.text(logsink.OriginStdout), "out:interrupt\n") }, waitFor, tick)
	require.Eventually(t, func() bool { return sink.hasSystem("exit status 3") }, waitFor, tick)
}

func TestExecSpawner_KillsUnresponsiveProcess(t *testing.T) {
	path := writeScript(t, "#!/bin/sh\ntrap '' INT TERM\nwhile :; do :; done\n")
	sink := &recordingAppender{}
	s := New(StaticSettings(Settings{ExecutablePath: path, QuitDirective: "quit"}), sink)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))

	require.Eventually(t, func() bool { return s.State() == StateStopped }, waitFor, tick)
	require.Eventually(t, func() bool { return sink.hasSystem("killed") }, waitFor, tick)
}

func TestExecSpawner_BackgroundChildDoesNotPinSession(t *testing.T) {
	// The backgrounded sleep inherits stdout and stderr and outlives its parent.
	path := writeScript(t, "#!/bin/sh\nsleep 5 &\necho ready\nexit 0\n")
	sink := &recordingAppender{}
	s := New(StaticSettings(Settings{ExecutablePath: path, QuitDirective: "quit"}), sink)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return s.State() == StateStopped }, waitFor, tick)
	require.Eventually(t, func() bool { return sink.hasSystem("process exited (exit status 0)") }, waitFor, tick)
	require.Contains(t, sink.text(logsink.OriginStdout), "ready\n")

	require.NoError(t, s.Submit(context.Background(), "again"))
	require.Eventually(t, func() bool {
		exits := 0
		for _, text := range sink.system() {
			if strings.Contains(text, "process exited") {
				exits++
			}
		}
		return exits == 2 && s.State() == StateStopped
	}, waitFor, tick)

	closed := make(chan error, 1)
	go func() { closed <- s.Close() }()
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close blocked on pipes held by a background child")
	}
}

func TestExecSpawner_StopWithUnreadStdin(t *testing.T) {
	// Never reads stdin, so a large submission fills the pipe.
	path := writeScript(t, "#!/bin/sh\nwhile :; do sleep 1; done\n")
	sink := &recordingAppender{}
	s := New(StaticSettings(Settings{
		ExecutablePath:     path,
		InterruptDirective: "interrupt",
		QuitDirective:      "quit",
	}), sink)
	t.Cleanup(func() { _ = s.Close() })

	submitted := make(chan error, 1)
	go func() { submitted <- s.Submit(context.Background(), strings.Repeat("x", 128*1024)) }()
	select {
	case err := <-submitted:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full stdin")
	}

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop(context.Background()) }()
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a full stdin")
	}

	require.Eventually(t, func() bool { return s.State() == StateStopped }, waitFor, tick)
	require.Eventually(t, func() bool { return sink.hasSystem("killed") }, waitFor, tick)
}
