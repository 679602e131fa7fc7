package ticket

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ticketsync/internal/cache"
	"ticketsync/internal/domain/ticket"
	xerrors "ticketsync/internal/pkg/errors"
	"ticketsync/internal/pkg/httpx"
	"ticketsync/internal/session"
)

func newService(t *testing.T, mux *http.ServeMux) (*TicketService, *cache.Tickets) {
	t.Helper()

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := httpx.New(server.URL, 5*time.Second)
	require.NoError(t, err)

	mgr := session.NewManager(session.Options{HTTP: client, Logger: zaptest.NewLogger(t)})
	mgr.SetToken("access")

	tickets := cache.NewTickets()
	return NewTicketService(mgr, tickets, zaptest.NewLogger(t)), tickets
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestListSendsFiltersAndFillsCache(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /tickets", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "OPEN", r.URL.Query().Get("status"))
		assert.Equal(t, "pump", r.URL.Query().Get("search"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data":    []map[string]any{{"id": "t1", "title": "Pump"}, {"id": "t2", "title": "Pump room"}},
			"meta":    map[string]any{"page": 1, "limit": 10, "total": 2, "totalPages": 1},
		})
	})

	svc, tickets := newService(t, mux)
	tickets.SetPage(4)

	res, err := svc.Search(context.Background(), ticket.Filters{Status: ticket.StatusOpen, Search: "pump"})
	require.NoError(t, err)
	assert.Len(t, res.Data, 2)
	assert.Equal(t, 2, res.Meta.Total)

	assert.Equal(t, 2, tickets.Len())
	assert.Equal(t, 1, tickets.Pagination().TotalPages)
	assert.False(t, tickets.Loading())
}

func TestListFailureKeepsPreviousList(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /tickets", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "boom"})
	})

	svc, tickets := newService(t, mux)
	tickets.Prepend(ticket.Ticket{ID: "old"})

	_, err := svc.List(context.Background())
	require.Error(t, err)
	assert.True(t, xerrors.Is(err, xerrors.ErrInternal))
	assert.Equal(t, 1, tickets.Len())
	assert.False(t, tickets.Loading())
}

func TestGetSetsCurrent(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /tickets/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"id": r.PathValue("id"), "title": "Leak"}})
	})

	svc, tickets := newService(t, mux)

	got, err := svc.Get(context.Background(), "t9")
	require.NoError(t, err)
	assert.Equal(t, "Leak", got.Title)
	require.NotNil(t, tickets.Current())
	assert.Equal(t, "t9", tickets.Current().ID)
}

func TestCreateUpdateDeleteKeepCacheInStep(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /tickets", func(w http.ResponseWriter, r *http.Request) {
		var req ticket.CreateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": map[string]any{"id": "t1", "title": req.Title, "status": "OPEN"}})
	})
	mux.HandleFunc("PATCH /tickets/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"id": "t1", "title": "Leak", "status": "RESOLVED"}})
	})
	mux.HandleFunc("DELETE /tickets/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})

	svc, tickets := newService(t, mux)
	ctx := context.Background()

	created, err := svc.Create(ctx, &ticket.CreateRequest{Title: "Leak", Description: "Kitchen sink", Priority: ticket.PriorityHigh})
	require.NoError(t, err)
	tickets.SetCurrent(created)
	assert.Equal(t, 1, tickets.Len())

	_, err = svc.Update(ctx, "t1", &ticket.UpdateRequest{Status: ticket.StatusResolved})
	require.NoError(t, err)
	got, ok := tickets.Get("t1")
	require.True(t, ok)
	assert.Equal(t, ticket.StatusResolved, got.Status)
	assert.Equal(t, ticket.StatusResolved, tickets.Current().Status)

	require.NoError(t, svc.Delete(ctx, "t1"))
	assert.Zero(t, tickets.Len())
	assert.Nil(t, tickets.Current())
}

func TestCreateValidatesLocally(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t, http.NewServeMux())

	_, err := svc.Create(context.Background(), &ticket.CreateRequest{Title: " ", Description: "x"})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	_, err = svc.Update(context.Background(), "t1", &ticket.UpdateRequest{Status: "DONE"})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestCommentsAndAssign(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /tickets/{id}/comments", func(w http.ResponseWriter, r *http.Request) {
		var req ticket.CommentRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": map[string]any{"id": "c1", "content": req.Content}})
	})
	mux.HandleFunc("GET /tickets/{id}/comments", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": []map[string]any{{"id": "c1", "content": "on it"}}})
	})
	mux.HandleFunc("POST /tickets/{id}/assign", func(w http.ResponseWriter, r *http.Request) {
		var req ticket.AssignRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"id": r.PathValue("id"), "assignedToId": req.TechnicianID}})
	})

	svc, tickets := newService(t, mux)
	ctx := context.Background()
	tickets.Prepend(ticket.Ticket{ID: "t1"})

	c, err := svc.AddComment(ctx, "t1", "on it")
	require.NoError(t, err)
	assert.Equal(t, "on it", c.Content)

	comments, err := svc.Comments(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, comments, 1)

	_, err = svc.Assign(ctx, "t1", "tech-1")
	require.NoError(t, err)
	got, _ := tickets.Get("t1")
	assert.Equal(t, "tech-1", got.AssignedToID)
}

func TestUploadSendsMultipartFile(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /tickets/{id}/attachments", func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		body, _ := io.ReadAll(f)
		assert.Equal(t, "photo bytes", string(body))
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": map[string]any{"id": "a1", "filename": hdr.Filename}})
	})

	svc, _ := newService(t, mux)

	att, err := svc.Upload(context.Background(), "t1", "leak.jpg", strings.NewReader("photo bytes"))
	require.NoError(t, err)
	assert.Equal(t, "leak.jpg", att.Filename)
}
