package pubsub

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// ListenCmd creates a Bubble Tea command that listens for events on a channel.
// Returns the event as a tea.Msg when received.
// Returns nil if the context is cancelled or the channel is closed.
func ListenCmd[T any](ctx context.Context, ch <-chan Event[T]) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			return event
		}
	}
}

// ContinuousListener maintains subscription state for the Bubble Tea update loop.
type ContinuousListener[T any] struct {
	ctx context.Context
	ch  <-chan Event[T]
}

// NewContinuousListener creates a new listener that subscribes to the broker.
// The subscription is cleaned up when the context is cancelled.
func NewContinuousListener[T any](ctx context.Context, sub Subscriber[T]) *ContinuousListener[T] {
	return &ContinuousListener[T]{
		ctx: ctx,
		ch:  sub.Subscribe(ctx),
	}
}

// Listen returns a tea.Cmd that waits for the next event.
// Call it again from Update after handling each event.
func (l *ContinuousListener[T]) Listen() tea.Cmd {
	return ListenCmd(l.ctx, l.ch)
}

// WaitFor blocks until an event on ch satisfies match, the channel closes,
// or ctx is done. It reports whether a matching event was seen.
func WaitFor[T any](ctx context.Context, ch <-chan Event[T], match func(Event[T]) bool) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-ch:
			if !ok {
				return false
			}
			if match(event) {
				return true
			}
		}
	}
}
