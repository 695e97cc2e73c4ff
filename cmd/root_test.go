package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/replpane/internal/config"
	"github.com/zjrosen/replpane/internal/supervisor"
)

const echoScript = `#!/bin/sh
while IFS= read -r line; do
	if [ "$line" = "bye" ]; then
		exit 0
	fi
	echo "out:$line"
	echo "err:$line" >&2
done
`

func writeEchoScript(t *testing.T) string {
	t.Helper()
	if goruntime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "interp.sh")
	require.NoError(t, os.WriteFile(path, []byte(echoScript), 0o755)) //nolint:gosec // test script must be executable
	return path
}

func TestLoadConfig_WritesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, used, err := loadConfig(viper.New(), path)
	require.NoError(t, err)
	require.Equal(t, path, used)
	require.Equal(t, config.Defaults().Interpreter, cfg.Interpreter)
	require.Equal(t, config.PlacementBelow, cfg.UI.Placement())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, config.DefaultConfigTemplate(), string(data))
}

func TestLoadConfig_ReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`interpreter:
  executable_path: /opt/sc/sclang
ui:
  panel_placement: beside
`), 0o600))

	cfg, used, err := loadConfig(viper.New(), path)
	require.NoError(t, err)
	require.Equal(t, path, used)
	require.Equal(t, "/opt/sc/sclang", cfg.Interpreter.ExecutablePath)
	require.Equal(t, config.DefaultQuitDirective, cfg.Interpreter.QuitDirective, "unset keys keep defaults")
	require.Equal(t, config.PlacementBeside, cfg.UI.Placement())
}

func TestLoadConfig_RejectsInvalidPlacement(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ui:\n  panel_placement: sideways\n"), 0o600))

	_, _, err := loadConfig(viper.New(), path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "panel_placement")
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("interpreter: [unclosed\n"), 0o600))

	_, _, err := loadConfig(viper.New(), path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "reading config")
}

func TestSettingsFrom_ExecutableOverride(t *testing.T) {
	store := config.NewStore(config.Defaults(), "")
	t.Cleanup(store.Close)

	require.Equal(t, config.DefaultExecutable, settingsFrom(store, "")().ExecutablePath)

	s := settingsFrom(store, "/usr/local/bin/sclang")()
	require.Equal(t, "/usr/local/bin/sclang", s.ExecutablePath)
	require.Equal(t, config.DefaultInterruptDirective, s.InterruptDirective)
	require.Equal(t, config.DefaultQuitDirective, s.QuitDirective)
}

func TestSettingsFrom_FollowsStoreReplace(t *testing.T) {
	store := config.NewStore(config.Defaults(), "")
	t.Cleanup(store.Close)
	settings := settingsFrom(store, "")

	cfg := config.Defaults()
	cfg.Interpreter.ExecutablePath = "/other/sclang"
	store.Replace(cfg)

	require.Equal(t, "/other/sclang", settings().ExecutablePath)
}

func TestTracingConfig_DefaultFilePath(t *testing.T) {
	tc := config.Defaults().Tracing
	tc.Enabled = true

	out := tracingConfig(tc)
	require.True(t, strings.HasSuffix(out.FilePath, filepath.Join("replpane", "traces", "traces.jsonl")))

	tc.FilePath = "/tmp/t.jsonl"
	require.Equal(t, "/tmp/t.jsonl", tracingConfig(tc).FilePath)

	tc.Enabled = false
	tc.FilePath = ""
	require.Empty(t, tracingConfig(tc).FilePath)
}

func newPipeRuntime(t *testing.T, executable string) *runtime {
	t.Helper()
	cfg := config.Defaults()
	cfg.Interpreter.ExecutablePath = executable
	cfg.Interpreter.InterruptDirective = "interrupt"
	cfg.Interpreter.QuitDirective = "bye"

	rt, err := newRuntime(cfg, "", runtimeOptions{})
	require.NoError(t, err)
	return rt
}

func TestRunPipe_SubmitsLinesAndStops(t *testing.T) {
	rt := newPipeRuntime(t, writeEchoScript(t))
	var out, errOut bytes.Buffer

	err := runPipe(context.Background(), strings.NewReader("one\ntwo\n"), &out, &errOut, rt, 2*time.Second)
	require.NoError(t, err)
	require.Equal(t, supervisor.StateStopped, rt.supervisor.State())

	require.NoError(t, rt.Close())
	rt.sink.Detach()

	require.Equal(t, "out:one\nout:two\nout:interrupt\n", out.String())
	require.Contains(t, errOut.String(), "err:one\nerr:two\n")
	require.Contains(t, errOut.String(), "[system] process exited (exit status 0)")
}

func TestRunPipe_SpawnFailureAborts(t *testing.T) {
	rt := newPipeRuntime(t, filepath.Join(t.TempDir(), "missing"))
	t.Cleanup(func() { _ = rt.Close() })
	var out, errOut bytes.Buffer

	err := runPipe(context.Background(), strings.NewReader("one\n"), &out, &errOut, rt, time.Second)
	require.ErrorIs(t, err, supervisor.ErrSpawn)
	require.Empty(t, out.String())
}

func TestRunPipe_CancelledContextStillStops(t *testing.T) {
	rt := newPipeRuntime(t, writeEchoScript(t))
	ctx, cancel := context.WithCancel(context.Background())
	var out, errOut bytes.Buffer

	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { _ = pw.Close(); _ = pr.Close() })

	done := make(chan error, 1)
	go func() { done <- runPipe(ctx, pr, &out, &errOut, rt, 2*time.Second) }()

	require.Eventually(t, func() bool { return rt.supervisor.State() == supervisor.StateRunning },
		2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runPipe did not return after cancel")
	}
	require.Equal(t, supervisor.StateStopped, rt.supervisor.State())
	require.NoError(t, rt.Close())
	rt.sink.Detach()
}
