package transport

import (
	"context"
	"sync"
)

// InFlightRegistry tracks streaming exchanges that are still producing
// chunks, keyed by completion ID. A registered exchange can be
// cancelled individually or swept wholesale when the server drains on
// shutdown, which releases SSE connections that would otherwise hold
// the drain open until the deadline.
//
// All methods are safe for concurrent use.
type InFlightRegistry struct {
	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewInFlightRegistry creates a new empty registry.
func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{active: make(map[string]context.CancelFunc)}
}

// Register adds a streaming exchange to the registry.
func (r *InFlightRegistry) Register(id string, cancel context.CancelFunc) {
	r.mu.Lock()
	r.active[id] = cancel
	r.mu.Unlock()
}

// Remove drops an exchange without cancelling it. Called when a stream
// completes normally.
func (r *InFlightRegistry) Remove(id string) {
	r.mu.Lock()
	delete(r.active, id)
	r.mu.Unlock()
}

// Cancel cancels a single exchange. It reports false when the ID is not
// registered, either because the stream already finished or never
// existed.
func (r *InFlightRegistry) Cancel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.active[id]
	if !ok {
		return false
	}
	delete(r.active, id)
	cancel()
	return true
}

// CancelAll cancels every registered exchange.
func (r *InFlightRegistry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, cancel := range r.active {
		delete(r.active, id)
		cancel()
	}
}

// Len reports how many exchanges are currently streaming.
func (r *InFlightRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}
