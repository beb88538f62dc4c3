package gateway

import (
	"context"
	"sync"
)

// AuthEventType enumerates notifications delivered by the auth stream.
type AuthEventType string

const (
	SignedIn  AuthEventType = "SIGNED_IN"
	SignedOut AuthEventType = "SIGNED_OUT"
)

// AuthEvent carries the session payload for sign-in notifications.
// Session is nil for SIGNED_OUT.
type AuthEvent struct {
	Type    AuthEventType `json:"type"`
	Session *Session      `json:"session,omitempty"`
}

// Events fan-outs auth notifications to all active subscribers.
type Events struct {
	mu   sync.RWMutex
	subs map[int]chan AuthEvent
	next int
}

// NewEvents initialises an empty event stream.
func NewEvents() *Events {
	return &Events{subs: make(map[int]chan AuthEvent)}
}

// Subscribe registers a subscriber and returns a channel which will
// receive events. The channel is closed when the provided context ends.
func (e *Events) Subscribe(ctx context.Context) <-chan AuthEvent {
	ch := make(chan AuthEvent, 16)

	e.mu.Lock()
	id := e.next
	e.next++
	e.subs[id] = ch
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.mu.Lock()
		delete(e.subs, id)
		close(ch)
		e.mu.Unlock()
	}()

	return ch
}

// Publish delivers the event to every subscriber. Slow subscribers with
// full buffers miss the event rather than blocking the publisher.
func (e *Events) Publish(ev AuthEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
