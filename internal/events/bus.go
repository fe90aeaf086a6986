package events

import (
	"context"
	"sync"
	"sync/atomic"
)

// Bus fans envelopes out to in-process subscribers. A subscriber that falls
// behind loses envelopes rather than stalling the publisher.
type Bus struct {
	mu      sync.RWMutex
	nextID  int
	subs    map[int]chan Envelope
	dropped atomic.Uint64
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Envelope)}
}

// Subscribe registers a subscriber with the given buffer size. Call cancel
// to unsubscribe; the channel is closed afterwards.
func (b *Bus) Subscribe(buffer int) (<-chan Envelope, func()) {
	ch := make(chan Envelope, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (b *Bus) Publish(_ context.Context, e Envelope) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped because a subscriber's
// buffer was full.
func (b *Bus) Dropped() uint64 { return b.dropped.Load() }
