package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketsync/internal/domain/ticket"
)

func seeded(ids ...string) *Tickets {
	c := NewTickets()
	list := make([]ticket.Ticket, 0, len(ids))
	for _, id := range ids {
		list = append(list, ticket.Ticket{ID: id, Title: "title " + id, Status: ticket.StatusOpen})
	}
	c.CommitLoad(c.BeginLoad(), list, ticket.Pagination{Page: 1, Limit: 10, Total: len(ids), TotalPages: 1})
	return c
}

func TestReplaceIsFullReplace(t *testing.T) {
	t.Parallel()

	c := seeded("a", "b")
	c.SetCurrent(&ticket.Ticket{ID: "b", Title: "old", Location: "Room 4"})

	payload := ticket.Ticket{ID: "b", Title: "new", Status: ticket.StatusResolved}
	assert.True(t, c.Replace(payload))

	got, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, payload, got)
	assert.Equal(t, payload, *c.Current())
	assert.Empty(t, c.Current().Location)
}

func TestReplaceUnknownIDInsertsNothing(t *testing.T) {
	t.Parallel()

	c := seeded("a")
	assert.False(t, c.Replace(ticket.Ticket{ID: "zzz"}))
	assert.Equal(t, 1, c.Len())
}

func TestPrependDeduplicates(t *testing.T) {
	t.Parallel()

	c := seeded("a", "b")
	c.Prepend(ticket.Ticket{ID: "c"})
	c.Prepend(ticket.Ticket{ID: "b", Title: "echo"})

	ids := []string{}
	for _, tk := range c.List() {
		ids = append(ids, tk.ID)
	}
	assert.Equal(t, []string{"b", "c", "a"}, ids)
}

func TestRemoveDropsListEntryAndCurrent(t *testing.T) {
	t.Parallel()

	c := seeded("abc123", "x")
	c.SetCurrent(&ticket.Ticket{ID: "abc123"})

	assert.True(t, c.Remove("abc123"))
	_, ok := c.Get("abc123")
	assert.False(t, ok)
	assert.Nil(t, c.Current())
	assert.False(t, c.Remove("abc123"))
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	t.Parallel()

	c := NewTickets()
	first := c.BeginLoad()
	second := c.BeginLoad()

	assert.True(t, c.CommitLoad(second, []ticket.Ticket{{ID: "new"}}, ticket.Pagination{Total: 1}))
	assert.False(t, c.CommitLoad(first, []ticket.Ticket{{ID: "old"}}, ticket.Pagination{Total: 9}))

	list := c.List()
	require.Len(t, list, 1)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, 1, c.Pagination().Total)
	assert.Equal(t, ticket.DefaultPageSize, c.Pagination().Limit)
	assert.False(t, c.Loading())
}

func TestSetFiltersResetsPage(t *testing.T) {
	t.Parallel()

	c := NewTickets()
	c.SetPage(4)
	c.SetFilters(ticket.Filters{Status: ticket.StatusPending})

	assert.Equal(t, 1, c.Pagination().Page)
	assert.Equal(t, ticket.StatusPending, c.Filters().Status)
}

func TestListReturnsCopy(t *testing.T) {
	t.Parallel()

	c := seeded("a")
	list := c.List()
	list[0].Title = "mutated"

	got, _ := c.Get("a")
	assert.Equal(t, "title a", got.Title)
}
