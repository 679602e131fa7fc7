package account

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ticketsync/internal/domain/auth"
	xerrors "ticketsync/internal/pkg/errors"
	"ticketsync/internal/pkg/httpx"
	"ticketsync/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newSession(t *testing.T, mux *http.ServeMux) *session.Manager {
	t.Helper()

	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{
			"accessToken": "access",
			"user":        map[string]any{"id": "u1", "name": "Ann", "role": "USER"},
		}})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := httpx.New(server.URL, 5*time.Second)
	require.NoError(t, err)

	mgr := session.NewManager(session.Options{HTTP: client, Logger: zaptest.NewLogger(t)})
	_, err = mgr.Login(context.Background(), "ann@example.com", "secret1")
	require.NoError(t, err)
	return mgr
}

func TestUpdateProfileRefreshesUser(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /auth/profile", func(w http.ResponseWriter, r *http.Request) {
		var req auth.UpdateProfileRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Annie", req.Name)
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{
			"user": map[string]any{"id": "u1", "name": "Annie", "phone": "555", "role": "USER"},
		}})
	})

	mgr := newSession(t, mux)
	svc := NewAccountService(mgr, zaptest.NewLogger(t))

	u, err := svc.UpdateProfile(context.Background(), &auth.UpdateProfileRequest{Name: "Annie", Phone: "555"})
	require.NoError(t, err)
	assert.Equal(t, "Annie", u.Name)
	assert.Equal(t, "Annie", mgr.User().Name)
	assert.True(t, mgr.IsAuthenticated())
}

func TestChangePasswordValidatesLength(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/change-password", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})

	svc := NewAccountService(newSession(t, mux), zaptest.NewLogger(t))

	assert.ErrorIs(t, svc.ChangePassword(context.Background(), "secret1", "abc"), xerrors.ErrInvalidInput)
	require.NoError(t, svc.ChangePassword(context.Background(), "secret1", "longer-secret"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestDeleteAccountLogsOut(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /auth/delete-account", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})

	mgr := newSession(t, mux)
	svc := NewAccountService(mgr, zaptest.NewLogger(t))

	require.NoError(t, svc.DeleteAccount(context.Background()))
	assert.False(t, mgr.IsAuthenticated())
	assert.Empty(t, mgr.Token())
}
