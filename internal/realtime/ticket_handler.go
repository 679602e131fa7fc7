package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"ticketsync/internal/cache"
	"ticketsync/internal/domain/notification"
	wstypes "ticketsync/internal/domain/realtime"
	"ticketsync/internal/domain/ticket"
)

// TicketHandler applies ticket events to the shared cache, adds a
// notification where one is due and fans the event out to subscribers.
type TicketHandler struct {
	tickets       *cache.Tickets
	notifications *cache.Notifications
	listeners     *Listeners
	log           *zap.Logger
}

func NewTicketHandler(tickets *cache.Tickets, notifications *cache.Notifications, listeners *Listeners, log *zap.Logger) *TicketHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &TicketHandler{
		tickets:       tickets,
		notifications: notifications,
		listeners:     listeners,
		log:           log,
	}
}

// SupportedEvents returns events this handler supports
func (h *TicketHandler) SupportedEvents() []wstypes.EventType {
	return []wstypes.EventType{
		wstypes.EventTicketCreated,
		wstypes.EventTicketUpdated,
		wstypes.EventTicketDeleted,
	}
}

// HandleEvent processes ticket-related frames
func (h *TicketHandler) HandleEvent(_ context.Context, env *wstypes.Envelope) error {
	switch env.Event {
	case wstypes.EventTicketCreated:
		t, err := decodeTicket(env)
		if err != nil {
			return err
		}
		h.tickets.Prepend(*t)
		h.notifications.Add(notification.Draft{
			Type:     notification.TypeTicket,
			Title:    "New ticket",
			Message:  t.Title,
			TicketID: t.ID,
		})
		h.listeners.Publish(wstypes.TicketEvent{Event: env.Event, Ticket: t, TicketID: t.ID})

	case wstypes.EventTicketUpdated:
		t, err := decodeTicket(env)
		if err != nil {
			return err
		}
		h.tickets.Replace(*t)
		h.notifications.Add(notification.Draft{
			Type:     notification.TypeTicket,
			Title:    "Ticket updated",
			Message:  fmt.Sprintf("%q is now %s", t.Title, t.Status.Label()),
			TicketID: t.ID,
		})
		h.listeners.Publish(wstypes.TicketEvent{Event: env.Event, Ticket: t, TicketID: t.ID})

	case wstypes.EventTicketDeleted:
		id, err := decodeTicketID(env.Data)
		if err != nil {
			return err
		}
		h.tickets.Remove(id)
		h.listeners.Publish(wstypes.TicketEvent{Event: env.Event, TicketID: id})

	default:
		return fmt.Errorf("unsupported event type: %s", env.Event)
	}

	h.log.Debug("applied ticket event", zap.String("event", string(env.Event)))
	return nil
}

func decodeTicket(env *wstypes.Envelope) (*ticket.Ticket, error) {
	var t ticket.Ticket
	if err := json.Unmarshal(env.Data, &t); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", env.Event, err)
	}
	if t.ID == "" {
		return nil, fmt.Errorf("%s payload has no id", env.Event)
	}
	return &t, nil
}

// decodeTicketID accepts the bare id string the server sends, and an
// object carrying an id.
func decodeTicketID(data json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(data, &id); err == nil && id != "" {
		return id, nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && obj.ID != "" {
		return obj.ID, nil
	}
	return "", fmt.Errorf("ticket:deleted payload has no id: %s", string(data))
}
