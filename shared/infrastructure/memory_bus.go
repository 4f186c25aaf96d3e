package infrastructure

import (
	"context"
	"sync"

	"github.com/relaymart/order-system/shared/events"
)

// MemoryBus is a process-local event bus implementing both events.Publisher
// and events.Subscriber. It is the default wiring when no broker is
// configured and doubles as the transport in tests.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers []events.EventHandler
	history  []*events.Event
}

// NewMemoryBus creates an in-memory event bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

// Publish delivers events synchronously to every registered handler. Handler
// errors do not stop delivery to the remaining handlers.
func (b *MemoryBus) Publish(ctx context.Context, evts ...*events.Event) error {
	b.mu.Lock()
	b.history = append(b.history, evts...)
	handlers := make([]events.EventHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.Unlock()

	var firstErr error
	for _, event := range evts {
		for _, handler := range handlers {
			if err := handler.Handle(ctx, event); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Subscribe registers a handler for all subsequently published events.
func (b *MemoryBus) Subscribe(_ context.Context, handler events.EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
	return nil
}

// History returns a copy of every event published so far (for inspection in
// tests).
func (b *MemoryBus) History() []*events.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	history := make([]*events.Event, len(b.history))
	copy(history, b.history)
	return history
}

// Close is a no-op; the bus holds no external resources.
func (b *MemoryBus) Close() error {
	return nil
}
