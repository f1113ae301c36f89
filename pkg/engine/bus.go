package engine

import (
	"sync"
	"time"
)

// defaultBusBuffer decouples the orchestrator from momentary subscriber
// stalls; once the buffer is full, Publish blocks (natural backpressure).
const defaultBusBuffer = 64

// Bus is the per-run event stream: one producer side (the orchestrator, plus
// the manager for cancellation errors), one consumer (the transport). Events
// are delivered in emission order and never dropped while the subscriber is
// attached. After Unsubscribe or CloseSend, publishes are discarded.
type Bus struct {
	mu         sync.Mutex // serializes Publish against CloseSend
	ch         chan Event
	done       chan struct{}
	sendClosed bool
	doneOnce   sync.Once
}

// NewBus creates a bus with the default buffer.
func NewBus() *Bus {
	return &Bus{
		ch:   make(chan Event, defaultBusBuffer),
		done: make(chan struct{}),
	}
}

// Publish delivers an event to the subscriber, blocking if the buffer is
// full. Returns false when the stream is closed or the subscriber has
// detached (the event is discarded).
func (b *Bus) Publish(e Event) bool {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendClosed {
		return false
	}
	select {
	case <-b.done:
		return false
	default:
	}
	select {
	case b.ch <- e:
		return true
	case <-b.done:
		return false
	}
}

// Events returns the subscriber's receive channel. The channel is closed by
// CloseSend after the final event.
func (b *Bus) Events() <-chan Event {
	return b.ch
}

// CloseSend closes the stream from the producer side; later publishes are
// discarded. Idempotent.
func (b *Bus) CloseSend() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.sendClosed {
		b.sendClosed = true
		close(b.ch)
	}
}

// Unsubscribe detaches the consumer. Idempotent and safe to call
// concurrently with Publish; subsequent publishes are discarded.
func (b *Bus) Unsubscribe() {
	b.doneOnce.Do(func() { close(b.done) })
}

// Detached reports whether the subscriber has unsubscribed.
func (b *Bus) Detached() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}
