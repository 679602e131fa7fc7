package realtime

import (
	"sync"

	"go.uber.org/zap"

	wstypes "ticketsync/internal/domain/realtime"
)

// Listeners is the registry of ticket-update subscribers. Callbacks run in
// no particular order, each isolated from the others' panics.
type Listeners struct {
	mu     sync.RWMutex
	subs   map[uint64]func(wstypes.TicketEvent)
	nextID uint64
	log    *zap.Logger
}

func NewListeners(log *zap.Logger) *Listeners {
	if log == nil {
		log = zap.NewNop()
	}
	return &Listeners{
		subs: make(map[uint64]func(wstypes.TicketEvent)),
		log:  log,
	}
}

// Subscribe registers fn and returns the func that removes it. Calling the
// returned func more than once is harmless.
func (l *Listeners) Subscribe(fn func(wstypes.TicketEvent)) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}
}

func (l *Listeners) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.subs)
}

// Publish delivers evt to every subscriber registered at the time of the call.
func (l *Listeners) Publish(evt wstypes.TicketEvent) {
	l.mu.RLock()
	fns := make([]func(wstypes.TicketEvent), 0, len(l.subs))
	for _, fn := range l.subs {
		fns = append(fns, fn)
	}
	l.mu.RUnlock()

	for _, fn := range fns {
		l.deliver(fn, evt)
	}
}

func (l *Listeners) deliver(fn func(wstypes.TicketEvent), evt wstypes.TicketEvent) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("ticket subscriber panicked",
				zap.String("event", string(evt.Event)),
				zap.String("ticket_id", evt.TicketID),
				zap.Any("panic", r),
			)
		}
	}()
	fn(evt)
}
