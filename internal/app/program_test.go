package app

import (
	"bytes"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/replpane/internal/logsink"
	"github.com/zjrosen/replpane/internal/pubsub"
	"github.com/zjrosen/replpane/internal/supervisor"
)

func TestProgram_StateAndOutputReachScreen(t *testing.T) {
	interp := newFakeInterpreter()
	t.Cleanup(interp.events.Close)
	sink := logsink.New()
	m := New(Options{Interpreter: interp, Sink: sink})
	t.Cleanup(func() { _ = m.Close() })

	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(100, 30))

	interp.events.Publish(pubsub.StateChangedEvent, supervisor.StateEvent{
		From: supervisor.StateStarting,
		To:   supervisor.StateRunning,
		PID:  777,
	})
	sink.Append(logsink.Stdout("sc3> ready\n"))

	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return bytes.Contains(out, []byte("pid 777")) && bytes.Contains(out, []byte("sc3> ready"))
	}, teatest.WithDuration(3*time.Second), teatest.WithCheckInterval(20*time.Millisecond))

	tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})
	tm.WaitFinished(t, teatest.WithFinalTimeout(3*time.Second))

	final, ok := tm.FinalModel(t).(Model)
	require.True(t, ok)
	require.Equal(t, supervisor.StateRunning, final.state)

	interp.mu.Lock()
	defer interp.mu.Unlock()
	require.Equal(t, 1, interp.stops)
}
