// internal/domain/realtime/types.go
package realtime

import (
	"encoding/json"
	"fmt"

	"ticketsync/internal/domain/ticket"
)

// EventType represents the server-pushed event names
type EventType string

const (
	EventTicketCreated EventType = "ticket:created"
	EventTicketUpdated EventType = "ticket:updated"
	EventTicketDeleted EventType = "ticket:deleted"
)

// Envelope is the universal push frame: {"event": "...", "data": ...}
type Envelope struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals data into a frame.
func NewEnvelope(event EventType, data any) (*Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return &Envelope{Event: event, Data: raw}, nil
}

func (e *Envelope) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.Event == "" {
		return nil, fmt.Errorf("frame has no event name")
	}
	return &env, nil
}

// TicketEvent is what ticket-update subscribers receive. Ticket is set for
// created/updated events; TicketID is always set (for deletes it is the
// only payload).
type TicketEvent struct {
	Event    EventType
	Ticket   *ticket.Ticket
	TicketID string
}

// ConnState is the push connection lifecycle state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateOpen
	// StateFailed means the reconnect policy gave up.
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
