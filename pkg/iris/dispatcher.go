package iris

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Listener is a handler bound to a named event. The dispatcher ignores its
// return value beyond logging; listeners are fire-and-forget.
type Listener func(payload any) error

// ListenerHandle identifies one subscription for later removal. Subscribing
// the same function twice yields two distinct handles, and the listener
// fires once per registration.
type ListenerHandle struct {
	event string
	seq   uint64
}

// Event returns the event name the handle is subscribed to
func (h ListenerHandle) Event() string {
	return h.event
}

type subscription struct {
	seq uint64
	fn  Listener
}

// Dispatcher delivers published events to their listeners in registration
// order. It is one of the host's two synchronization points: all operations
// are safe for concurrent use.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners map[string][]subscription
	seq       uint64

	log *zerolog.Logger
}

// NewDispatcher creates an empty event dispatcher
func NewDispatcher(log *zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		listeners: make(map[string][]subscription),
		log:       log,
	}
}

// Subscribe appends the listener to the event's delivery list
func (d *Dispatcher) Subscribe(event string, fn Listener) ListenerHandle {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	d.listeners[event] = append(d.listeners[event], subscription{seq: d.seq, fn: fn})
	return ListenerHandle{event: event, seq: d.seq}
}

// Unsubscribe removes the subscription identified by the handle. Removing an
// already-removed handle is a no-op.
func (d *Dispatcher) Unsubscribe(h ListenerHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	subs := d.listeners[h.event]
	for i, sub := range subs {
		if sub.seq == h.seq {
			d.listeners[h.event] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(d.listeners[h.event]) == 0 {
		delete(d.listeners, h.event)
	}
}

// Publish invokes every listener currently subscribed to the event, in
// registration order. A listener's error or panic is logged and swallowed
// so the remaining listeners still run.
func (d *Dispatcher) Publish(event string, payload any) {
	d.mu.RLock()
	subs := make([]subscription, len(d.listeners[event]))
	copy(subs, d.listeners[event])
	d.mu.RUnlock()

	for _, sub := range subs {
		if err := dispatch(sub.fn, payload); err != nil {
			d.log.Error().Err(err).Str("event", event).Msg("event listener failed")
		}
	}
}

// ListenerCount returns the number of subscriptions for the event
func (d *Dispatcher) ListenerCount(event string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.listeners[event])
}

func dispatch(fn Listener, payload any) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("listener panic: %v", rec)
		}
	}()
	return fn(payload)
}
