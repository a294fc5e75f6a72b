// ABOUTME: Handle runs an Engine on its own goroutine: one writer processes events and commands in order.
// ABOUTME: Readers take a read lock; every applied change is fanned out through a non-blocking Broadcaster.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/2389-research/playgraph/event"
	"github.com/2389-research/playgraph/graph"
)

var (
	// ErrHandleClosed indicates the handle's goroutine has stopped.
	ErrHandleClosed = errors.New("engine handle closed")

	// ErrHandleBusy indicates the command buffer is full.
	ErrHandleBusy = errors.New("engine command buffer full")
)

// Change describes one processed event or command for subscribers.
type Change struct {
	Seq     uint64      `json:"seq"`
	Kind    string      `json:"kind"`
	Type    string      `json:"type"`
	EventID string      `json:"event_id,omitempty"`
	Result  ApplyResult `json:"result"`
	Stats   graph.Stats `json:"stats"`
	Error   string      `json:"error,omitempty"`
	At      time.Time   `json:"at"`
}

type message struct {
	event *event.Event
	cmd   Command
	reply chan reply
}

type reply struct {
	result ApplyResult
	err    error
}

// Handle is safe for concurrent use.
type Handle struct {
	msgCh       chan message
	done        chan struct{}
	closeOnce   sync.Once
	broadcaster *Broadcaster

	mu     sync.RWMutex
	engine *Engine
	seq    uint64
}

// Spawn starts the goroutine that owns e and returns its handle.
func Spawn(e *Engine) *Handle {
	h := &Handle{
		msgCh:       make(chan message, 64),
		done:        make(chan struct{}),
		broadcaster: NewBroadcaster(256, e.metrics.RecordMissedChange),
		engine:      e,
	}
	go h.run()
	return h
}

func (h *Handle) run() {
	for {
		select {
		case <-h.done:
			return
		case msg := <-h.msgCh:
			msg.reply <- h.process(msg)
		}
	}
}

func (h *Handle) process(msg message) reply {
	h.mu.Lock()
	var (
		r      reply
		change Change
	)
	if msg.event != nil {
		r.result = h.engine.Apply(*msg.event)
		change = Change{Kind: "event", Type: msg.event.Type, EventID: msg.event.ID.String(), Result: r.result}
	} else {
		r.err = h.engine.Execute(msg.cmd)
		r.result = ApplyResult{Type: msg.cmd.CommandType()}
		change = Change{Kind: "command", Type: msg.cmd.CommandType()}
	}
	h.seq++
	change.Seq = h.seq
	change.Stats = h.engine.store.Stats()
	change.Error = h.engine.ErrorMessage()
	if r.err != nil {
		change.Error = r.err.Error()
	}
	change.At = time.Now().UTC()
	h.mu.Unlock()

	h.broadcaster.Broadcast(change)
	return r
}

// Submit enqueues an event and waits for it to be applied. It blocks while
// the queue is full, until ctx is done.
func (h *Handle) Submit(ctx context.Context, ev event.Event) (ApplyResult, error) {
	r, err := h.send(ctx, message{event: &ev}, true)
	return r.result, err
}

// Execute runs a user command. It fails fast with ErrHandleBusy when the
// queue is full.
func (h *Handle) Execute(ctx context.Context, cmd Command) error {
	r, err := h.send(ctx, message{cmd: cmd}, false)
	if err != nil {
		return err
	}
	return r.err
}

func (h *Handle) send(ctx context.Context, msg message, wait bool) (reply, error) {
	msg.reply = make(chan reply, 1)
	select {
	case <-h.done:
		return reply{}, ErrHandleClosed
	default:
	}
	if wait {
		select {
		case h.msgCh <- msg:
		case <-ctx.Done():
			return reply{}, ctx.Err()
		case <-h.done:
			return reply{}, ErrHandleClosed
		}
	} else {
		select {
		case h.msgCh <- msg:
		default:
			return reply{}, ErrHandleBusy
		}
	}
	select {
	case r := <-msg.reply:
		return r, nil
	case <-h.done:
		return reply{}, ErrHandleClosed
	}
}

// Read calls fn with a read lock on the engine. fn must not mutate the
// engine or keep references after returning.
func (h *Handle) Read(fn func(e *Engine)) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn(h.engine)
}

// Subscribe opens a subscription to every processed change.
func (h *Handle) Subscribe() *Subscription {
	return h.broadcaster.Subscribe()
}

// Unsubscribe cancels sub and closes its channel.
func (h *Handle) Unsubscribe(sub *Subscription) {
	h.broadcaster.Unsubscribe(sub)
}

// Close stops the goroutine and ends every subscription. Pending and later
// calls return ErrHandleClosed.
func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.broadcaster.Close()
	})
}
