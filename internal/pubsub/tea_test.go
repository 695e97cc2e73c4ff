package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestListenCmd_ReceivesEvent(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := broker.Subscribe(ctx)
	broker.Publish(StateChangedEvent, "stopped")

	msg := ListenCmd(ctx, ch)()

	event, ok := msg.(Event[string])
	require.True(t, ok, "msg should be Event[string]")
	require.Equal(t, "stopped", event.Payload)
}

func TestListenCmd_ContextCancelled(t *testing.T) {
	ch := make(chan Event[string])
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Nil(t, ListenCmd(ctx, ch)())
}

func TestListenCmd_ChannelClosed(t *testing.T) {
	ch := make(chan Event[string])
	close(ch)

	require.Nil(t, ListenCmd(context.Background(), ch)())
}

func TestContinuousListener_ListenRepeatedly(t *testing.T) {
	broker := NewBroker[int]()
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener := NewContinuousListener[int](ctx, broker)

	broker.Publish(StateChangedEvent, 1)
	broker.Publish(StateChangedEvent, 2)

	first := listener.Listen()().(Event[int])
	second := listener.Listen()().(Event[int])
	require.Equal(t, 1, first.Payload)
	require.Equal(t, 2, second.Payload)
}

func TestWaitFor(t *testing.T) {
	broker := NewBroker[string]()
	defer broker.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ch := broker.Subscribe(ctx)
	go func() {
		broker.Publish(StateChangedEvent, "stopping")
		broker.Publish(StateChangedEvent, "stopped")
	}()

	ok := WaitFor(ctx, ch, func(e Event[string]) bool { return e.Payload == "stopped" })
	require.True(t, ok)
}

func TestWaitFor_TimesOut(t *testing.T) {
	ch := make(chan Event[string])

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.False(t, WaitFor(ctx, ch, func(Event[string]) bool { return true }))
}
