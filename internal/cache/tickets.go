// Package cache holds the client-side state shared by every view: the
// ticket list and detail, and the notification list.
package cache

import (
	"sync"

	"ticketsync/internal/domain/ticket"
)

// Tickets is the shared ticket cache. Entries are keyed by id and the last
// write wins, whether it comes from a REST response or a push event.
type Tickets struct {
	mu         sync.RWMutex
	list       []ticket.Ticket
	current    *ticket.Ticket
	filters    ticket.Filters
	pagination ticket.Pagination
	loading    bool
	gen        uint64
}

func NewTickets() *Tickets {
	return &Tickets{pagination: ticket.DefaultPagination()}
}

// List returns a copy of the cached list, in display order.
func (c *Tickets) List() []ticket.Ticket {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]ticket.Ticket(nil), c.list...)
}

func (c *Tickets) Get(id string) (ticket.Ticket, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := c.indexOf(id); i >= 0 {
		return c.list[i], true
	}
	return ticket.Ticket{}, false
}

func (c *Tickets) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.list)
}

// Current returns a copy of the ticket open in the detail view, or nil.
func (c *Tickets) Current() *ticket.Ticket {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return nil
	}
	cp := *c.current
	return &cp
}

func (c *Tickets) SetCurrent(t *ticket.Ticket) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t == nil {
		c.current = nil
		return
	}
	cp := *t
	c.current = &cp
}

func (c *Tickets) Filters() ticket.Filters {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filters
}

// SetFilters replaces the filters and goes back to the first page.
func (c *Tickets) SetFilters(f ticket.Filters) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = f
	c.pagination.Page = 1
}

func (c *Tickets) Pagination() ticket.Pagination {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pagination
}

func (c *Tickets) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pagination.Page = page
}

func (c *Tickets) SetLimit(limit int) {
	if limit < 1 {
		limit = ticket.DefaultPageSize
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pagination.Limit = limit
}

func (c *Tickets) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// BeginLoad marks a list load in flight and returns its generation. Only
// the newest generation may commit.
func (c *Tickets) BeginLoad() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.loading = true
	return c.gen
}

// CommitLoad installs a list response. It returns false, changing nothing,
// when a newer load has started since gen.
func (c *Tickets) CommitLoad(gen uint64, list []ticket.Ticket, meta ticket.Pagination) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.list = append([]ticket.Ticket(nil), list...)
	if meta.Limit == 0 {
		meta.Limit = c.pagination.Limit
	}
	if meta.Page == 0 {
		meta.Page = c.pagination.Page
	}
	c.pagination = meta
	c.loading = false
	return true
}

// AbortLoad ends a failed load if it is still the newest one.
func (c *Tickets) AbortLoad(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.gen {
		c.loading = false
	}
}

// Prepend puts t at the front of the list. An entry with the same id is
// dropped first so a local create and its push echo do not duplicate.
func (c *Tickets) Prepend(t ticket.Ticket) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(t.ID); i >= 0 {
		c.list = append(c.list[:i], c.list[i+1:]...)
	}
	c.list = append([]ticket.Ticket{t}, c.list...)
}

// Replace overwrites the entry with t's id in the list and, when it is the
// one open, the current ticket. Nothing is inserted when the id is unknown.
// It reports whether anything changed.
func (c *Tickets) Replace(t ticket.Ticket) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := false
	if i := c.indexOf(t.ID); i >= 0 {
		c.list[i] = t
		changed = true
	}
	if c.current != nil && c.current.ID == t.ID {
		cp := t
		c.current = &cp
		changed = true
	}
	return changed
}

// Remove drops id from the list and clears the current ticket if it is id.
func (c *Tickets) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := false
	if i := c.indexOf(id); i >= 0 {
		c.list = append(c.list[:i], c.list[i+1:]...)
		removed = true
	}
	if c.current != nil && c.current.ID == id {
		c.current = nil
		removed = true
	}
	return removed
}

// Reset empties the cache, e.g. on logout.
func (c *Tickets) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = nil
	c.current = nil
	c.filters = ticket.Filters{}
	c.pagination = ticket.DefaultPagination()
	c.loading = false
	c.gen++
}

func (c *Tickets) indexOf(id string) int {
	for i := range c.list {
		if c.list[i].ID == id {
			return i
		}
	}
	return -1
}
