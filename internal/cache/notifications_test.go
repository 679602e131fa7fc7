package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketsync/internal/domain/notification"
)

func TestNotificationsNewestFirst(t *testing.T) {
	t.Parallel()

	n := NewNotifications()
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	n.now = func() time.Time { clock = clock.Add(time.Second); return clock }

	first := n.Add(notification.Draft{Type: notification.TypeTicket, Title: "New ticket", TicketID: "t1"})
	second := n.Add(notification.Draft{Type: notification.TypeTicket, Title: "Ticket updated", TicketID: "t1"})

	list := n.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, list[0].CreatedAt.After(list[1].CreatedAt))
	assert.Equal(t, 2, n.UnreadCount())
}

func TestNotificationsReadState(t *testing.T) {
	t.Parallel()

	n := NewNotifications()
	a := n.Add(notification.Draft{Title: "a"})
	b := n.Add(notification.Draft{Title: "b"})
	n.Add(notification.Draft{Title: "c"})

	assert.True(t, n.MarkAsRead(a.ID))
	assert.False(t, n.MarkAsRead(a.ID))
	assert.Equal(t, 2, n.UnreadCount())

	assert.True(t, n.Remove(a.ID))
	assert.Equal(t, 2, n.UnreadCount())
	assert.True(t, n.Remove(b.ID))
	assert.Equal(t, 1, n.UnreadCount())
	assert.False(t, n.Remove("missing"))

	n.MarkAllAsRead()
	assert.Equal(t, 0, n.UnreadCount())
	for _, e := range n.List() {
		assert.True(t, e.Read)
	}

	n.ClearAll()
	assert.Empty(t, n.List())
	assert.Equal(t, 0, n.UnreadCount())
}
