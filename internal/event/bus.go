package event

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Bus fans notifications out to subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the notification.
type Bus struct {
	mu      sync.RWMutex
	subs    []chan Notification
	closed  bool
	dropped atomic.Uint64
}

// NewBus creates a new notification bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe returns a channel receiving every notification published from now on.
func (b *Bus) Subscribe(buffer int) <-chan Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Notification, buffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Publish delivers n to every subscriber with room for it.
func (b *Bus) Publish(n Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- n:
		default:
			b.dropped.Add(1)
			slog.Warn("Notification dropped", slog.String("type", string(n.GetType())), slog.Uint64("seq", n.GetSeq()))
		}
	}
}

// Dropped returns how many deliveries were skipped.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
