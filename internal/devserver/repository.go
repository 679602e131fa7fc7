// Package devserver is a stand-in for the ticket REST API and its push
// endpoint, for local development and integration tests.
package devserver

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"ticketsync/internal/domain/ticket"
	"ticketsync/internal/domain/user"
	xerrors "ticketsync/internal/pkg/errors"
)

// Repository is the devserver's persistence. Lookups of unknown ids return
// xerrors.ErrNotFound; a duplicate email returns xerrors.ErrConflict.
type Repository interface {
	CreateUser(ctx context.Context, name, email, password string, role user.Role) (*user.User, error)
	// Authenticate yields ErrNotFound for an unknown email and
	// ErrUnauthorized for a wrong password.
	Authenticate(ctx context.Context, email, password string) (*user.User, error)
	User(ctx context.Context, id string) (*user.User, error)
	ListUsers(ctx context.Context, filters user.Filters) ([]user.User, error)
	// UpdateUser applies fn to the stored user atomically.
	UpdateUser(ctx context.Context, id string, fn func(u *user.User)) (*user.User, error)
	ChangePassword(ctx context.Context, id, current, next string) error
	DeleteUser(ctx context.Context, id string) error

	// RevokeRefresh blacklists a refresh token id until it would have expired.
	RevokeRefresh(ctx context.Context, jti string, expires time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)

	CreateTicket(ctx context.Context, t ticket.Ticket) (*ticket.Ticket, error)
	Ticket(ctx context.Context, id string) (*ticket.Ticket, error)
	// ListTickets returns the requested page, newest first, and the total
	// number of matches.
	ListTickets(ctx context.Context, f TicketFilter) ([]ticket.Ticket, int, error)
	UpdateTicket(ctx context.Context, id, editorID string, ch TicketChanges) (*ticket.Ticket, error)
	// Assign hands the ticket to a technician and moves it to IN_PROGRESS.
	Assign(ctx context.Context, id, technicianID, assignerID string) (*ticket.Ticket, error)
	DeleteTicket(ctx context.Context, id string) error
	Stats(ctx context.Context) (ticket.Stats, error)

	AddComment(ctx context.Context, ticketID, userID, content string) (*ticket.Comment, error)
	Comments(ctx context.Context, ticketID string) ([]ticket.Comment, error)
	Logs(ctx context.Context, ticketID string) ([]ticket.Log, error)
	AddAttachment(ctx context.Context, a ticket.Attachment) (*ticket.Attachment, error)
	Attachments(ctx context.Context, ticketID string) ([]ticket.Attachment, error)
}

// TicketFilter selects a page of tickets. Zero fields match everything.
type TicketFilter struct {
	Status       ticket.Status
	Priority     ticket.Priority
	Category     ticket.Category
	AssignedToID string
	Search       string
	Page         int
	Limit        int
}

func (f TicketFilter) normalized() TicketFilter {
	if f.Limit <= 0 {
		f.Limit = ticket.DefaultPageSize
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	return f
}

// TicketChanges carries the optional fields of an update.
type TicketChanges struct {
	Title       string
	Description string
	Status      ticket.Status
	Priority    ticket.Priority
}

// Ticket history actions
const (
	actionCreated         = "CREATED"
	actionStatusChanged   = "STATUS_CHANGED"
	actionPriorityChanged = "PRIORITY_CHANGED"
	actionAssigned        = "ASSIGNED"
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, xerrors.Wrap(err, "hash password")
	}
	return hash, nil
}

func withTicketDefaults(t ticket.Ticket) ticket.Ticket {
	if t.Status == "" {
		t.Status = ticket.StatusOpen
	}
	if t.Priority == "" {
		t.Priority = ticket.PriorityMedium
	}
	if t.Category == "" {
		t.Category = ticket.CategoryGeneral
	}
	return t
}

func attachmentURL(id, filename string) string {
	return "/uploads/" + id + "/" + filename
}
