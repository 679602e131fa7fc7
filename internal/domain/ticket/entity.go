// internal/domain/ticket/entity.go
package ticket

import "time"

type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusPending    Status = "PENDING"
	StatusResolved   Status = "RESOLVED"
	StatusClosed     Status = "CLOSED"
)

var statusLabels = map[Status]string{
	StatusOpen:       "Open",
	StatusInProgress: "In Progress",
	StatusPending:    "Pending",
	StatusResolved:   "Resolved",
	StatusClosed:     "Closed",
}

// Label returns the human-readable label for the status. Unknown statuses
// are returned verbatim.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

type Category string

const (
	CategoryElectrical Category = "ELECTRICAL"
	CategoryPlumbing   Category = "PLUMBING"
	CategoryHVAC       Category = "HVAC"
	CategoryIT         Category = "IT"
	CategoryGeneral    Category = "GENERAL"
	CategoryOther      Category = "OTHER"
)

// UserRef is the embedded user summary the API attaches to tickets,
// comments and logs.
type UserRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

type Ticket struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Status       Status       `json:"status"`
	Priority     Priority     `json:"priority"`
	Category     Category     `json:"category"`
	Location     string       `json:"location,omitempty"`
	CreatedByID  string       `json:"createdById"`
	CreatedBy    *UserRef     `json:"createdBy,omitempty"`
	AssignedToID string       `json:"assignedToId,omitempty"`
	AssignedTo   *UserRef     `json:"assignedTo,omitempty"`
	Attachments  []Attachment `json:"attachments,omitempty"`
	DueDate      *time.Time   `json:"dueDate,omitempty"`
	ResolvedAt   *time.Time   `json:"resolvedAt,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

type Attachment struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	URL       string    `json:"url"`
	Type      string    `json:"type"`
	Size      int64     `json:"size"`
	TicketID  string    `json:"ticketId"`
	CreatedAt time.Time `json:"createdAt"`
}

type Comment struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	TicketID  string    `json:"ticketId"`
	UserID    string    `json:"userId"`
	User      *UserRef  `json:"user,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Log struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticketId"`
	Action    string    `json:"action"`
	OldValue  string    `json:"oldValue,omitempty"`
	NewValue  string    `json:"newValue,omitempty"`
	UserID    string    `json:"userId"`
	User      *UserRef  `json:"user,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Stats struct {
	Total      int64 `json:"total"`
	Open       int64 `json:"open"`
	InProgress int64 `json:"inProgress"`
	Resolved   int64 `json:"resolved"`
	Pending    int64 `json:"pending"`
}
