// internal/domain/ticket/dto.go
package ticket

import (
	"net/url"
	"strconv"
)

type CreateRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	Category    Category `json:"category"`
	Location    string   `json:"location,omitempty"`
}

type UpdateRequest struct {
	Title        string   `json:"title,omitempty"`
	Description  string   `json:"description,omitempty"`
	Status       Status   `json:"status,omitempty"`
	Priority     Priority `json:"priority,omitempty"`
	AssignedToID string   `json:"assignedToId,omitempty"`
}

type AssignRequest struct {
	TechnicianID string `json:"technicianId"`
}

type CommentRequest struct {
	Content string `json:"content"`
}

// Filters narrow a ticket list query. Zero values are omitted.
type Filters struct {
	Status       Status
	Priority     Priority
	AssignedToID string
	Search       string
}

// Pagination mirrors the "meta" block of a list response.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

const DefaultPageSize = 10

func DefaultPagination() Pagination {
	return Pagination{Page: 1, Limit: DefaultPageSize}
}

// Query encodes filters and paging for GET /tickets.
func (f Filters) Query(page, limit int) url.Values {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Priority != "" {
		q.Set("priority", string(f.Priority))
	}
	if f.AssignedToID != "" {
		q.Set("assignedToId", f.AssignedToID)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return q
}

type ListResponse struct {
	Data []Ticket   `json:"data"`
	Meta Pagination `json:"meta"`
}
