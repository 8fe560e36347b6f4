package bus

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
)

// Bus is an in-process publish/subscribe event bus with namespace filtering.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscription
	next int

	dropped atomic.Uint64
	onDrop  func(kind string)
}

type subscription struct {
	namespace string
	ch        chan Event
}

// Option configures a Bus.
type Option func(*Bus)

// WithDropHook registers fn to be called for every event dropped because a
// subscriber buffer was full.
func WithDropHook(fn func(kind string)) Option {
	return func(b *Bus) { b.onDrop = fn }
}

// New creates a new event bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		subs: make(map[int]*subscription),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Publish sends an event to all subscribers whose namespace is a prefix of
// event.Kind. It never blocks: a full subscriber misses the event.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if strings.HasPrefix(evt.Kind, sub.namespace) {
			select {
			case sub.ch <- evt:
			default:
				b.dropped.Add(1)
				if b.onDrop != nil {
					b.onDrop(evt.Kind)
				}
			}
		}
	}
}

// PublishContext delivers evt to every matching subscriber, waiting for
// buffer space until ctx is done. Used for events that must not be lost,
// such as inbound platform messages.
func (b *Bus) PublishContext(ctx context.Context, evt Event) error {
	b.mu.RLock()
	targets := make([]chan Event, 0, len(b.subs))
	for _, sub := range b.subs {
		if strings.HasPrefix(evt.Kind, sub.namespace) {
			targets = append(targets, sub.ch)
		}
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- evt:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Subscribe returns a channel that receives events matching the given namespace prefix.
// bufSize controls the channel buffer. Returns the channel and an unsubscribe function.
func (b *Bus) Subscribe(namespace string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{namespace: namespace, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Dropped returns the number of events dropped so far.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
