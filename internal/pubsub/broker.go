package pubsub

import (
	"context"
	"sync"
	"time"
)

const defaultBufferSize = 64

// Option configures a Broker.
type Option func(*options)

type options struct {
	bufferSize int
	replay     bool
}

// WithBuffer sets the per-subscriber channel capacity.
func WithBuffer(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.bufferSize = size
		}
	}
}

// WithReplay makes new subscribers receive the most recently published
// event immediately, so late subscribers observe the current state.
func WithReplay() Option {
	return func(o *options) {
		o.replay = true
	}
}

// Broker is a generic pub/sub event broker.
// Publish never blocks: a subscriber whose buffer is full misses the event.
type Broker[T any] struct {
	subs map[chan Event[T]]struct{}
	mu   sync.RWMutex
	done chan struct{}
	opts options

	last    Event[T]
	hasLast bool
}

// NewBroker creates a new broker. The default buffer size is 64.
func NewBroker[T any](opts ...Option) *Broker[T] {
	o := options{bufferSize: defaultBufferSize}
	for _, opt := range opts {
		opt(&o)
	}
	return &Broker[T]{
		subs: make(map[chan Event[T]]struct{}),
		done: make(chan struct{}),
		opts: o,
	}
}

// Subscribe creates a new subscription channel.
// The channel is closed when ctx is cancelled or the broker is closed.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		ch := make(chan Event[T])
		close(ch)
		return ch
	default:
	}

	sub := make(chan Event[T], b.opts.bufferSize)
	if b.opts.replay && b.hasLast {
		sub <- b.last
	}
	b.subs[sub] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[sub]; !ok {
			return
		}
		delete(b.subs, sub)
		close(sub)
	}()

	return sub
}

// Publish sends an event to all subscribers.
func (b *Broker[T]) Publish(eventType EventType, payload T) {
	// Write lock: replay state and delivery must be atomic w.r.t. Subscribe.
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		return
	default:
	}

	event := Event[T]{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	b.last, b.hasLast = event, true

	for sub := range b.subs {
		select {
		case sub <- event:
		default:
			// Full
		}
	}
}

// Close shuts down the broker and all subscriber channels.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		return
	default:
	}

	close(b.done)
	for sub := range b.subs {
		close(sub)
	}
	b.subs = map[chan Event[T]]struct{}{}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
