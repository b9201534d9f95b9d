// Package eventbus provides the in-process publish/subscribe bus carrying
// the observability events of the dispatch and flush subsystems.
package eventbus

import (
	"sync"
	"sync/atomic"
)

// DefaultSubscriberBuffer is the channel capacity of a plain Subscribe.
// Command bursts produce several events per call (request, lifecycle,
// response), so subscribers that sample more than one verb should size
// their buffer accordingly via SubscribeBuffered.
const DefaultSubscriberBuffer = 16

// Event represents an arbitrary event passed on the bus.
type Event interface{}

// EventBus implements a simple publish/subscribe event bus. Delivery is
// non-blocking: a slow subscriber drops events instead of stalling the
// publisher, so event handlers can never break the dispatch contract.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	SubscribeBuffered(size int) <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// Bus is the default EventBus implementation using fan-out channels.
type Bus struct {
	mu      sync.RWMutex
	subs    []chan Event
	closed  bool
	dropped atomic.Uint64
}

// New creates a new Bus.
func New() *Bus { return &Bus{} }

// Publish sends the event to all subscribers. Delivery is non-blocking;
// an event a full subscriber missed is counted, not retried.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribe registers a new subscriber with the default buffer and
// returns its channel.
func (b *Bus) Subscribe() <-chan Event {
	return b.SubscribeBuffered(DefaultSubscriberBuffer)
}

// SubscribeBuffered registers a subscriber with an explicit channel
// capacity. A non-positive size falls back to the default.
func (b *Bus) SubscribeBuffered(size int) <-chan Event {
	if size <= 0 {
		size = DefaultSubscriberBuffer
	}
	ch := make(chan Event, size)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs = append(b.subs, ch)
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Bus) Unsubscribe(sub <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, ch := range b.subs {
		if ch == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			if !b.closed {
				close(ch)
			}
			return
		}
	}
}

// Dropped returns how many events were lost to full subscriber buffers
// since the bus was created.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }

// Close closes all subscriber channels and clears the list.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
	b.mu.Unlock()
}
