package realtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ticketsync/internal/cache"
	"ticketsync/internal/domain/notification"
	wstypes "ticketsync/internal/domain/realtime"
	"ticketsync/internal/domain/ticket"
)

type handlerFixture struct {
	tickets       *cache.Tickets
	notifications *cache.Notifications
	listeners     *Listeners
	dispatcher    *Dispatcher
	events        []wstypes.TicketEvent
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	f := &handlerFixture{
		tickets:       cache.NewTickets(),
		notifications: cache.NewNotifications(),
		listeners:     NewListeners(zaptest.NewLogger(t)),
		dispatcher:    NewDispatcher(),
	}
	f.dispatcher.Register(NewTicketHandler(f.tickets, f.notifications, f.listeners, zaptest.NewLogger(t)))
	f.listeners.Subscribe(func(e wstypes.TicketEvent) { f.events = append(f.events, e) })
	return f
}

func (f *handlerFixture) push(t *testing.T, frame string) bool {
	t.Helper()
	env, err := wstypes.ParseEnvelope([]byte(frame))
	require.NoError(t, err)
	handled, err := f.dispatcher.Dispatch(context.Background(), env)
	require.NoError(t, err)
	return handled
}

func TestCreatedPrependsAndNotifies(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	f.tickets.CommitLoad(f.tickets.BeginLoad(), []ticket.Ticket{{ID: "old"}}, ticket.Pagination{})

	assert.True(t, f.push(t, `{"event":"ticket:created","data":{"id":"t1","title":"Leaking tap","status":"OPEN"}}`))

	list := f.tickets.List()
	require.Len(t, list, 2)
	assert.Equal(t, "t1", list[0].ID)

	notes := f.notifications.List()
	require.Len(t, notes, 1)
	assert.Equal(t, notification.TypeTicket, notes[0].Type)
	assert.Equal(t, "t1", notes[0].TicketID)
	assert.Equal(t, "Leaking tap", notes[0].Message)

	require.Len(t, f.events, 1)
	assert.Equal(t, wstypes.EventTicketCreated, f.events[0].Event)
	assert.Equal(t, "Leaking tap", f.events[0].Ticket.Title)
}

func TestUpdatedReplacesExactlyAndNotifiesWithLabel(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	f.tickets.CommitLoad(f.tickets.BeginLoad(), []ticket.Ticket{{ID: "t1", Title: "Leaking tap", Location: "Block A"}}, ticket.Pagination{})

	f.push(t, `{"event":"ticket:updated","data":{"id":"t1","title":"Leaking tap","status":"IN_PROGRESS"}}`)

	got, ok := f.tickets.Get("t1")
	require.True(t, ok)
	assert.Equal(t, ticket.Ticket{ID: "t1", Title: "Leaking tap", Status: ticket.StatusInProgress}, got)

	notes := f.notifications.List()
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, "In Progress")
	require.Len(t, f.events, 1)
	assert.Equal(t, "t1", f.events[0].TicketID)
}

func TestUpdatedForUnknownTicketStillFansOut(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	f.push(t, `{"event":"ticket:updated","data":{"id":"ghost","status":"CLOSED"}}`)

	assert.Equal(t, 0, f.tickets.Len())
	assert.Len(t, f.events, 1)
}

func TestDeletedAcceptsObjectPayloadAndSkipsNotification(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	f.tickets.CommitLoad(f.tickets.BeginLoad(), []ticket.Ticket{{ID: "t1"}}, ticket.Pagination{})

	f.push(t, `{"event":"ticket:deleted","data":{"id":"t1"}}`)

	assert.Equal(t, 0, f.tickets.Len())
	assert.Empty(t, f.notifications.List())
	require.Len(t, f.events, 1)
	assert.Nil(t, f.events[0].Ticket)
}

func TestUnknownEventIsNotHandled(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	assert.False(t, f.push(t, `{"event":"comment:added","data":{}}`))
	assert.Empty(t, f.events)
}

func TestBadPayloadIsAnError(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	env, err := wstypes.ParseEnvelope([]byte(`{"event":"ticket:updated","data":{"title":"no id"}}`))
	require.NoError(t, err)

	handled, err := f.dispatcher.Dispatch(context.Background(), env)
	assert.True(t, handled)
	assert.Error(t, err)
	assert.Empty(t, f.events)
}

func TestOddDatesDoNotDropTheEvent(t *testing.T) {
	t.Parallel()

	f := newHandlerFixture(t)
	f.tickets.CommitLoad(f.tickets.BeginLoad(), []ticket.Ticket{{ID: "t1", Title: "Leaking tap"}}, ticket.Pagination{})

	assert.True(t, f.push(t, `{"event":"ticket:created","data":{"id":"t2","title":"Flickering light","dueDate":"","createdAt":"16/10/2026"}}`))
	assert.True(t, f.push(t, `{"event":"ticket:updated","data":{"id":"t1","title":"Leaking tap","status":"RESOLVED","resolvedAt":"yesterday"}}`))

	got, ok := f.tickets.Get("t2")
	require.True(t, ok)
	assert.Equal(t, "Flickering light", got.Title)
	assert.Nil(t, got.DueDate)
	assert.True(t, got.CreatedAt.IsZero())

	got, ok = f.tickets.Get("t1")
	require.True(t, ok)
	assert.Equal(t, ticket.StatusResolved, got.Status)
	assert.Nil(t, got.ResolvedAt)

	assert.Len(t, f.notifications.List(), 2)
	require.Len(t, f.events, 2)
	assert.Equal(t, "t2", f.events[0].TicketID)
	assert.Equal(t, "t1", f.events[1].TicketID)
}
