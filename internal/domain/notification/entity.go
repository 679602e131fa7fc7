// internal/domain/notification/entity.go
package notification

import "time"

type NotificationType string

const (
	TypeInfo    NotificationType = "info"
	TypeSuccess NotificationType = "success"
	TypeWarning NotificationType = "warning"
	TypeError   NotificationType = "error"
	TypeTicket  NotificationType = "ticket"
)

// Notification is a client-side entry in the notification list.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Read      bool             `json:"read"`
	TicketID  string           `json:"ticketId,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Draft is what callers supply; the list assigns ID, Read and CreatedAt.
type Draft struct {
	Type     NotificationType
	Title    string
	Message  string
	TicketID string
}
