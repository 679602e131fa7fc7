package cache

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"ticketsync/internal/domain/notification"
)

// Notifications is the newest-first notification list.
type Notifications struct {
	mu     sync.RWMutex
	items  []notification.Notification
	unread int
	now    func() time.Time
}

func NewNotifications() *Notifications {
	return &Notifications{now: time.Now}
}

// Add stores a new unread entry at the front and returns it.
func (n *Notifications) Add(d notification.Draft) notification.Notification {
	entry := notification.Notification{
		ID:        ulid.Make().String(),
		Type:      d.Type,
		Title:     d.Title,
		Message:   d.Message,
		TicketID:  d.TicketID,
		CreatedAt: n.now(),
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append([]notification.Notification{entry}, n.items...)
	n.unread++
	return entry
}

func (n *Notifications) List() []notification.Notification {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]notification.Notification(nil), n.items...)
}

func (n *Notifications) UnreadCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.unread
}

func (n *Notifications) MarkAsRead(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := range n.items {
		if n.items[i].ID != id {
			continue
		}
		if n.items[i].Read {
			return false
		}
		n.items[i].Read = true
		n.unread--
		return true
	}
	return false
}

func (n *Notifications) MarkAllAsRead() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := range n.items {
		n.items[i].Read = true
	}
	n.unread = 0
}

func (n *Notifications) Remove(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := range n.items {
		if n.items[i].ID != id {
			continue
		}
		if !n.items[i].Read {
			n.unread--
		}
		n.items = append(n.items[:i], n.items[i+1:]...)
		return true
	}
	return false
}

func (n *Notifications) ClearAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = nil
	n.unread = 0
}
