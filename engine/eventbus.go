package engine

import (
	"sync"
	"time"
)

// SubscriberID identifies a bus subscription for later removal.
type SubscriberID uint64

// SubscriberFunc receives dispatched events.
type SubscriberFunc func(Event)

type subscription struct {
	id    SubscriberID
	fn    SubscriberFunc
	types []EventType // empty means all types
}

func (s subscription) wants(t EventType) bool {
	if len(s.types) == 0 {
		return true
	}
	for _, w := range s.types {
		if w == t {
			return true
		}
	}
	return false
}

// EventBus fans dosing-session, push-stream, and scale events out to the
// journal wiring, the browser SSE hub, and the plant reporters. Dispatch
// is synchronous on the emitting goroutine, so the journal sees events in
// emission order and a dose row exists before its report is enqueued.
type EventBus struct {
	mu     sync.RWMutex
	subs   []subscription
	lastID SubscriberID
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers fn for every event type.
func (b *EventBus) Subscribe(fn SubscriberFunc) SubscriberID {
	return b.SubscribeTypes(fn)
}

// SubscribeTypes registers fn for the given event types only. With no
// types it behaves like Subscribe.
func (b *EventBus) SubscribeTypes(fn SubscriberFunc, types ...EventType) SubscriberID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastID++
	b.subs = append(b.subs, subscription{id: b.lastID, fn: fn, types: types})
	return b.lastID
}

// Unsubscribe removes a subscription. Unknown IDs are ignored.
func (b *EventBus) Unsubscribe(id SubscriberID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Emit stamps the event and dispatches it to matching subscribers in
// registration order.
func (b *EventBus) Emit(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if s.wants(evt.Type) {
			s.fn(evt)
		}
	}
}
