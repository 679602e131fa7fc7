package realtime

import (
	"context"
	"sync"

	wstypes "ticketsync/internal/domain/realtime"
)

// EventHandler is implemented by each module that reacts to pushed events.
type EventHandler interface {
	// HandleEvent processes a frame for one of the handler's events
	HandleEvent(ctx context.Context, env *wstypes.Envelope) error

	// SupportedEvents returns the list of event types this handler supports
	SupportedEvents() []wstypes.EventType
}

// Dispatcher routes frames to the handler registered for their event.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[wstypes.EventType]EventHandler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[wstypes.EventType]EventHandler),
	}
}

// Register registers a handler for its supported events
func (d *Dispatcher) Register(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, eventType := range handler.SupportedEvents() {
		d.handlers[eventType] = handler
	}
}

// Handler returns the handler for a given event type
func (d *Dispatcher) Handler(eventType wstypes.EventType) (EventHandler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	handler, exists := d.handlers[eventType]
	return handler, exists
}

// Dispatch hands env to its handler. Events nobody registered for are
// ignored; handled reports whether a handler ran.
func (d *Dispatcher) Dispatch(ctx context.Context, env *wstypes.Envelope) (handled bool, err error) {
	handler, ok := d.Handler(env.Event)
	if !ok {
		return false, nil
	}
	return true, handler.HandleEvent(ctx, env)
}
