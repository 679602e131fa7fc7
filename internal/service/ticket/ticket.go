package ticket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"ticketsync/internal/cache"
	"ticketsync/internal/domain/ticket"
	xerrors "ticketsync/internal/pkg/errors"
	"ticketsync/internal/pkg/httpx"
	"ticketsync/internal/pkg/response"
)

// Requester is the authenticated request function of the session manager.
type Requester interface {
	Call(ctx context.Context, method, path string, query url.Values, body, out any) (*response.Envelope, error)
	Do(ctx context.Context, req httpx.Request) (*httpx.Response, error)
}

type TicketService struct {
	api     Requester
	tickets *cache.Tickets
	logger  *zap.Logger
}

func NewTicketService(api Requester, tickets *cache.Tickets, logger *zap.Logger) *TicketService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		api:     api,
		tickets: tickets,
		logger:  logger,
	}
}

// List fetches the page selected by the cached filters and pagination and
// installs it in the cache. A response overtaken by a newer List is
// returned to the caller but not cached.
func (s *TicketService) List(ctx context.Context) (*ticket.ListResponse, error) {
	filters := s.tickets.Filters()
	page := s.tickets.Pagination()
	gen := s.tickets.BeginLoad()

	var list []ticket.Ticket
	env, err := s.api.Call(ctx, http.MethodGet, "/tickets", filters.Query(page.Page, page.Limit), nil, &list)
	if err != nil {
		s.tickets.AbortLoad(gen)
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}

	meta := page
	if len(env.Meta) > 0 {
		if err := json.Unmarshal(env.Meta, &meta); err != nil {
			s.tickets.AbortLoad(gen)
			return nil, fmt.Errorf("failed to decode list meta: %w", err)
		}
	}

	if !s.tickets.CommitLoad(gen, list, meta) {
		s.logger.Debug("discarding stale ticket list", zap.Uint64("generation", gen))
	}
	return &ticket.ListResponse{Data: list, Meta: meta}, nil
}

// Search replaces the filters, goes back to page one and lists.
func (s *TicketService) Search(ctx context.Context, filters ticket.Filters) (*ticket.ListResponse, error) {
	s.tickets.SetFilters(filters)
	return s.List(ctx)
}

// Page moves to page and lists.
func (s *TicketService) Page(ctx context.Context, page int) (*ticket.ListResponse, error) {
	s.tickets.SetPage(page)
	return s.List(ctx)
}

// Get fetches one ticket and makes it the current one.
func (s *TicketService) Get(ctx context.Context, id string) (*ticket.Ticket, error) {
	var t ticket.Ticket
	if _, err := s.api.Call(ctx, http.MethodGet, ticketPath(id), nil, nil, &t); err != nil {
		return nil, fmt.Errorf("failed to get ticket %s: %w", id, err)
	}
	s.tickets.SetCurrent(&t)
	return &t, nil
}

func (s *TicketService) Create(ctx context.Context, req *ticket.CreateRequest) (*ticket.Ticket, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "title is required")
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "description is required")
	}

	var t ticket.Ticket
	if _, err := s.api.Call(ctx, http.MethodPost, "/tickets", nil, req, &t); err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}
	s.tickets.Prepend(t)

	s.logger.Info("ticket created", zap.String("ticket_id", t.ID), zap.String("priority", string(t.Priority)))
	return &t, nil
}

func (s *TicketService) Update(ctx context.Context, id string, req *ticket.UpdateRequest) (*ticket.Ticket, error) {
	if req.Status != "" && !req.Status.Valid() {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, fmt.Sprintf("unknown status %q", req.Status))
	}

	var t ticket.Ticket
	if _, err := s.api.Call(ctx, http.MethodPatch, ticketPath(id), nil, req, &t); err != nil {
		return nil, fmt.Errorf("failed to update ticket %s: %w", id, err)
	}
	s.tickets.Replace(t)
	return &t, nil
}

func (s *TicketService) Delete(ctx context.Context, id string) error {
	if _, err := s.api.Call(ctx, http.MethodDelete, ticketPath(id), nil, nil, nil); err != nil {
		return fmt.Errorf("failed to delete ticket %s: %w", id, err)
	}
	s.tickets.Remove(id)
	s.logger.Info("ticket deleted", zap.String("ticket_id", id))
	return nil
}

func (s *TicketService) Stats(ctx context.Context) (*ticket.Stats, error) {
	var stats ticket.Stats
	if _, err := s.api.Call(ctx, http.MethodGet, "/tickets/stats", nil, nil, &stats); err != nil {
		return nil, fmt.Errorf("failed to get ticket stats: %w", err)
	}
	return &stats, nil
}

func (s *TicketService) Assign(ctx context.Context, id, technicianID string) (*ticket.Ticket, error) {
	var t ticket.Ticket
	body := ticket.AssignRequest{TechnicianID: technicianID}
	if _, err := s.api.Call(ctx, http.MethodPost, ticketPath(id)+"/assign", nil, body, &t); err != nil {
		return nil, fmt.Errorf("failed to assign ticket %s: %w", id, err)
	}
	// Some servers answer with a message only; the push update fills the gap.
	if t.ID != "" {
		s.tickets.Replace(t)
	}
	return &t, nil
}

func (s *TicketService) Comments(ctx context.Context, id string) ([]ticket.Comment, error) {
	var comments []ticket.Comment
	if _, err := s.api.Call(ctx, http.MethodGet, ticketPath(id)+"/comments", nil, nil, &comments); err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}

func (s *TicketService) AddComment(ctx context.Context, id, content string) (*ticket.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "comment is empty")
	}

	var c ticket.Comment
	if _, err := s.api.Call(ctx, http.MethodPost, ticketPath(id)+"/comments", nil, ticket.CommentRequest{Content: content}, &c); err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}
	return &c, nil
}

func (s *TicketService) Logs(ctx context.Context, id string) ([]ticket.Log, error) {
	var logs []ticket.Log
	if _, err := s.api.Call(ctx, http.MethodGet, ticketPath(id)+"/logs", nil, nil, &logs); err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	return logs, nil
}

func (s *TicketService) Attachments(ctx context.Context, id string) ([]ticket.Attachment, error) {
	var atts []ticket.Attachment
	if _, err := s.api.Call(ctx, http.MethodGet, ticketPath(id)+"/attachments", nil, nil, &atts); err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	return atts, nil
}

// Upload sends r as the multipart field "file".
func (s *TicketService) Upload(ctx context.Context, id, filename string, r io.Reader) (*ticket.Attachment, error) {
	req, err := httpx.Multipart(http.MethodPost, ticketPath(id)+"/attachments", "file", filename, r)
	if err != nil {
		return nil, err
	}

	resp, err := s.api.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to upload attachment: %w", err)
	}
	env, err := resp.Envelope()
	if err != nil {
		return nil, err
	}

	var att ticket.Attachment
	if err := env.DecodeData(&att); err != nil {
		return nil, fmt.Errorf("failed to decode attachment: %w", err)
	}
	return &att, nil
}

func ticketPath(id string) string {
	return "/tickets/" + url.PathEscape(id)
}
