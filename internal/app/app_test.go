package app

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ticketsync/internal/config"
	"ticketsync/internal/devserver"
	wstypes "ticketsync/internal/domain/realtime"
	"ticketsync/internal/domain/ticket"
	"ticketsync/internal/domain/user"
	"ticketsync/internal/pkg/jwt"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "admin-secret"
	eventually    = 3 * time.Second
	tick          = 10 * time.Millisecond
)

func init() {
	gin.SetMode(gin.TestMode)
}

func startBackend(t *testing.T) (*devserver.Server, *httptest.Server) {
	t.Helper()

	srv, err := devserver.NewServer(config.DevConfig{
		AdminName:     "Admin",
		AdminEmail:    adminEmail,
		AdminPassword: adminPassword,
		JWT: jwt.Config{
			Issuer:     "test",
			Audience:   "test",
			AccessTTL:  time.Minute,
			RefreshTTL: time.Hour,
		},
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
	})
	return srv, ts
}

func clientConfig(ts *httptest.Server, backend string) config.AppConfig {
	return config.AppConfig{
		APIURL:         ts.URL + "/api/v1",
		WSURL:          "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
		RequestTimeout: 5 * time.Second,
		Reconnect: config.ReconnectConfig{
			Strategy: "fixed",
			Delay:    50 * time.Millisecond,
		},
		StateBackend: backend,
		StateKey:     "ticketsync:test",
	}
}

func newApp(t *testing.T, cfg config.AppConfig, realtime bool) *App {
	t.Helper()

	a, err := New(context.Background(), Options{Config: cfg, Logger: zaptest.NewLogger(t), Realtime: realtime})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestLoginConnectsPushAndEchoesReachCache(t *testing.T) {
	t.Parallel()

	srv, ts := startBackend(t)
	a := newApp(t, clientConfig(ts, "memory"), true)
	ctx := context.Background()

	var (
		mu     sync.Mutex
		events []wstypes.TicketEvent
	)
	unsubscribe := a.Listeners.Subscribe(func(evt wstypes.TicketEvent) {
		mu.Lock()
		events = append(events, evt)
		mu.Unlock()
	})
	defer unsubscribe()

	_, err := a.Session.Login(ctx, adminEmail, adminPassword)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return a.Channel.State() == wstypes.StateOpen }, eventually, tick)
	require.Eventually(t, func() bool { return srv.Hub().TotalClients() == 1 }, eventually, tick)

	created, err := a.TicketService.Create(ctx, &ticket.CreateRequest{
		Title:       "Flickering light",
		Description: "Corridor B light flickers all day",
		Priority:    ticket.PriorityLow,
		Category:    ticket.CategoryElectrical,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 1
	}, eventually, tick)
	assert.Equal(t, 1, a.Tickets.Len(), "local create and push echo must not duplicate")
	assert.Equal(t, 1, a.Notifications.UnreadCount())

	_, err = a.TicketService.Update(ctx, created.ID, &ticket.UpdateRequest{Status: ticket.StatusResolved})
	require.NoError(t, err)
	require.NoError(t, a.TicketService.Delete(ctx, created.ID))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 3
	}, eventually, tick)
	mu.Lock()
	assert.Equal(t, wstypes.EventTicketUpdated, events[1].Event)
	assert.Equal(t, wstypes.EventTicketDeleted, events[2].Event)
	assert.Equal(t, created.ID, events[2].TicketID)
	mu.Unlock()
	assert.Zero(t, a.Tickets.Len())

	require.NoError(t, a.Session.Logout(ctx))
	require.Eventually(t, func() bool { return a.Channel.State() == wstypes.StateDisconnected }, eventually, tick)
	assert.Zero(t, a.Notifications.UnreadCount())
}

func TestStaleTokenIsRefreshedTransparently(t *testing.T) {
	t.Parallel()

	_, ts := startBackend(t)
	a := newApp(t, clientConfig(ts, "memory"), false)
	ctx := context.Background()

	_, err := a.Session.Login(ctx, adminEmail, adminPassword)
	require.NoError(t, err)
	a.Session.SetToken("stale")

	stats, err := a.TicketService.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.NotEqual(t, "stale", a.Session.Token())
}

func TestPersistedSessionSurvivesRestart(t *testing.T) {
	t.Parallel()

	_, ts := startBackend(t)
	cfg := clientConfig(ts, "file")
	cfg.StatePath = filepath.Join(t.TempDir(), "session.json")
	ctx := context.Background()

	first := newApp(t, cfg, false)
	_, err := first.Session.Login(ctx, adminEmail, adminPassword)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second := newApp(t, cfg, false)
	st, err := second.Start(ctx)
	require.NoError(t, err)
	assert.True(t, st.IsAuthenticated)
	require.NotNil(t, st.User)
	assert.Equal(t, user.RoleAdmin, st.User.Role)
	assert.NotEmpty(t, second.Session.Token())

	users, err := second.UserService.List(ctx, user.Filters{})
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestRedisBackedSessionIsSharedUntilLogout(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	_, ts := startBackend(t)
	cfg := clientConfig(ts, "redis")
	cfg.RedisAddr = mr.Addr()
	ctx := context.Background()

	first := newApp(t, cfg, false)
	_, err := first.Session.Login(ctx, adminEmail, adminPassword)
	require.NoError(t, err)
	assert.True(t, mr.Exists(cfg.StateKey))

	second := newApp(t, cfg, false)
	st, err := second.Start(ctx)
	require.NoError(t, err)
	assert.True(t, st.IsAuthenticated)

	// Logout revokes the shared refresh cookie and clears the stored state.
	require.NoError(t, first.Session.Logout(ctx))
	assert.False(t, mr.Exists(cfg.StateKey))

	third := newApp(t, cfg, false)
	st, err = third.Start(ctx)
	require.NoError(t, err)
	assert.False(t, st.IsAuthenticated)
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger("debug", "json")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))

	_, err = NewLogger("loud", "console")
	assert.Error(t, err)
}
