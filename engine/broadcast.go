// ABOUTME: Broadcaster fans processed changes out to change-stream subscriptions without blocking the writer.
// ABOUTME: A subscription whose buffer is full misses the change; the miss is counted so the client can resync.
package engine

import (
	"sync"
	"sync/atomic"
)

// Subscription is one subscriber's feed of changes. C is closed when the
// subscription is cancelled or the broadcaster shuts down.
type Subscription struct {
	C <-chan Change

	ch     chan Change
	missed atomic.Uint64
}

// Missed returns how many changes were skipped because C was full. A
// subscriber that sees this grow holds a stale picture and should reread
// the view.
func (s *Subscription) Missed() uint64 {
	return s.missed.Load()
}

// Broadcaster delivers each change to every open subscription. Delivery
// never blocks: a full subscription misses the change and onMiss is called.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool
	onMiss func()
}

// NewBroadcaster creates a broadcaster whose subscriptions buffer up to
// buffer changes. onMiss may be nil.
func NewBroadcaster(buffer int, onMiss func()) *Broadcaster {
	if buffer <= 0 {
		buffer = 256
	}
	if onMiss == nil {
		onMiss = func() {}
	}
	return &Broadcaster{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
		onMiss: onMiss,
	}
}

// Subscribe opens a subscription. After Close it returns one that is
// already closed, so a late subscriber ends immediately.
func (b *Broadcaster) Subscribe() *Subscription {
	ch := make(chan Change, b.buffer)
	sub := &Subscription{C: ch, ch: ch}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Unsubscribe cancels sub and closes its channel. Cancelling twice, or
// after Close, is a no-op.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
}

// Broadcast offers c to every open subscription.
func (b *Broadcaster) Broadcast(c Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		select {
		case sub.ch <- c:
		default:
			sub.missed.Add(1)
			b.onMiss()
		}
	}
}

// Close ends every subscription and refuses new ones.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
	}
	clear(b.subs)
}

// Len returns the number of open subscriptions.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
