package devserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ticketsync/internal/config"
	"ticketsync/internal/domain/realtime"
	"ticketsync/internal/pkg/jwt"
	"ticketsync/internal/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	adminEmail    = "admin@example.com"
	adminPassword = "admin-secret"
)

type harness struct {
	srv    *Server
	http   *httptest.Server
	client *http.Client
}

func newHarness(t *testing.T) *harness {
	return newHarnessWith(t, nil)
}

func newHarnessWith(t *testing.T, mutate func(*config.DevConfig)) *harness {
	t.Helper()

	cfg := config.DevConfig{
		AdminName:     "Admin",
		AdminEmail:    adminEmail,
		AdminPassword: adminPassword,
		JWT: jwt.Config{
			Issuer:     "test",
			Audience:   "test",
			AccessTTL:  time.Minute,
			RefreshTTL: time.Hour,
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := NewServer(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(t.Context())
	})

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &harness{srv: srv, http: ts, client: &http.Client{Jar: jar}}
}

func (h *harness) call(t *testing.T, method, path, token string, body any) (int, response.Envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, h.http.URL+"/api/v1"+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env response.Envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func (h *harness) login(t *testing.T, email, password string) string {
	t.Helper()

	status, env := h.call(t, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, status, env.ErrorText())

	var data struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, env.DecodeData(&data))
	require.NotEmpty(t, data.AccessToken)
	return data.AccessToken
}

func TestLoginErrorsCarryCodes(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	status, env := h.call(t, http.MethodPost, "/auth/login", "", map[string]string{"email": adminEmail, "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_CREDENTIALS", env.Code)

	_, env = h.call(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ghost@example.com", "password": "nope"})
	assert.Equal(t, "ACCOUNT_NOT_FOUND", env.Code)
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	body := map[string]string{"name": "Ann", "email": "ann@example.com", "password": "secret1"}
	status, _ := h.call(t, http.MethodPost, "/auth/register", "", body)
	assert.Equal(t, http.StatusCreated, status)

	status, env := h.call(t, http.MethodPost, "/auth/register", "", body)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "EMAIL_EXISTS", env.Code)
}

func TestRefreshUsesCookieAndLogoutRevokesIt(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.login(t, adminEmail, adminPassword)

	req, _ := http.NewRequest(http.MethodPost, h.http.URL+"/api/v1/auth/refresh", nil)
	resp, err := h.client.Do(req)
	require.NoError(t, err)
	var refreshed struct {
		Success     bool   `json:"success"`
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&refreshed))
	resp.Body.Close()
	assert.True(t, refreshed.Success)
	assert.NotEmpty(t, refreshed.AccessToken)

	status, _ := h.call(t, http.MethodGet, "/auth/me", refreshed.AccessToken, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = h.call(t, http.MethodPost, "/auth/logout", "", nil)
	require.Equal(t, http.StatusOK, status)

	status, env := h.call(t, http.MethodPost, "/auth/refresh", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", env.Code)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	status, env := h.call(t, http.MethodGet, "/tickets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, env.Success)

	status, _ = h.call(t, http.MethodGet, "/tickets", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestUsersAreAdminOnly(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	_, _ = h.call(t, http.MethodPost, "/auth/register", "", map[string]string{"name": "Ann", "email": "ann@example.com", "password": "secret1"})
	userToken := h.login(t, "ann@example.com", "secret1")

	status, env := h.call(t, http.MethodGet, "/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Code)

	status, env = h.call(t, http.MethodGet, "/users?role=USER", h.login(t, adminEmail, adminPassword), nil)
	require.Equal(t, http.StatusOK, status)
	var users []map[string]any
	require.NoError(t, env.DecodeData(&users))
	assert.Len(t, users, 1)
}

func TestTicketLifecycleBroadcasts(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	token := h.login(t, adminEmail, adminPassword)

	wsURL := "ws" + strings.TrimPrefix(h.http.URL, "http") + "/ws"
	conn, _, err := gws.DefaultDialer.Dial(wsURL, http.Header{"Authorization": {"Bearer " + token}})
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return h.srv.Hub().TotalClients() == 1 }, 2*time.Second, 10*time.Millisecond)

	status, env := h.call(t, http.MethodPost, "/tickets", token, map[string]string{
		"title":       "Broken heater",
		"description": "Radiator in room 4 is cold",
		"priority":    "HIGH",
		"category":    "HVAC",
	})
	require.Equal(t, http.StatusCreated, status, env.ErrorText())
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, env.DecodeData(&created))

	status, _ = h.call(t, http.MethodDelete, "/tickets/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, status)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var events []realtime.EventType
	for len(events) < 2 {
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err)
		ev, err := realtime.ParseEnvelope(frame)
		require.NoError(t, err)
		events = append(events, ev.Event)
		if ev.Event == realtime.EventTicketDeleted {
			var id string
			require.NoError(t, json.Unmarshal(ev.Data, &id))
			assert.Equal(t, created.ID, id)
		}
	}
	assert.Equal(t, []realtime.EventType{realtime.EventTicketCreated, realtime.EventTicketDeleted}, events)
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	wsURL := "ws" + strings.TrimPrefix(h.http.URL, "http") + "/ws"
	_, resp, err := gws.DefaultDialer.Dial(wsURL, http.Header{"Authorization": {"Bearer nope"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
