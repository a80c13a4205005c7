package dosing

import "sync"

// Timer registry keys. Every timer the session arms lives under one of
// these names so a transition can cancel the full set before arming
// anything new.
const (
	timerPoll              = "poll"
	timerMismatch          = "mismatch"
	timerOverweightAlert   = "overweight_alert"
	timerOverweightTimeout = "overweight_timeout"
)

// timerRegistry tracks cancel functions for all timers owned by a session.
// Arming a name that is already armed cancels the old timer first, so at
// most one timer per name exists by construction.
type timerRegistry struct {
	mu      sync.Mutex
	cancels map[string]func()
}

func newTimerRegistry() *timerRegistry {
	return &timerRegistry{cancels: make(map[string]func())}
}

// arm registers a cancel function under a name, cancelling any previous
// timer with the same name.
func (t *timerRegistry) arm(name string, cancel func()) {
	t.mu.Lock()
	prev := t.cancels[name]
	t.cancels[name] = cancel
	t.mu.Unlock()
	if prev != nil {
		prev()
	}
}

// cancel stops and removes a single named timer.
func (t *timerRegistry) cancel(name string) {
	t.mu.Lock()
	c := t.cancels[name]
	delete(t.cancels, name)
	t.mu.Unlock()
	if c != nil {
		c()
	}
}

// cancelAll stops and removes every registered timer.
func (t *timerRegistry) cancelAll() {
	t.mu.Lock()
	cancels := make([]func(), 0, len(t.cancels))
	for _, c := range t.cancels {
		cancels = append(cancels, c)
	}
	t.cancels = make(map[string]func())
	t.mu.Unlock()
	for _, c := range cancels {
		c()
	}
}
