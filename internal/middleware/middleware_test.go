package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ticketsync/internal/domain/user"
	"ticketsync/internal/pkg/jwt"
	"ticketsync/internal/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTokens(t *testing.T) *jwt.Manager {
	t.Helper()
	m, err := jwt.LoadAndBuild(jwt.Config{
		Issuer:     "test",
		Audience:   "test",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	})
	require.NoError(t, err)
	return m
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestAuthAndRoles(t *testing.T) {
	t.Parallel()

	tokens := newTokens(t)
	auth := NewAuthMiddleware(tokens.Verifier)

	r := gin.New()
	r.GET("/me", auth.Auth(), func(c *gin.Context) {
		c.String(http.StatusOK, MustGetUserID(c))
	})
	r.GET("/admin", append(auth.AdminOnly(), func(c *gin.Context) { c.Status(http.StatusNoContent) })...)

	serve := func(path, header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := serve("/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decode(t, rec).Code)

	rec = serve("/me", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_EXPIRED", decode(t, rec).Code)

	refresh, _, err := tokens.Generator.GenerateRefreshToken("u-1")
	require.NoError(t, err)
	rec = serve("/me", "Bearer "+refresh)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "refresh tokens are not access tokens")

	access, _, err := tokens.Generator.GenerateAccessToken("u-1", "ann@example.com", string(user.RoleUser))
	require.NoError(t, err)
	rec = serve("/me", "bearer "+access)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-1", rec.Body.String())

	rec = serve("/me?token="+access, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve("/admin", "Bearer "+access)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin, _, err := tokens.Generator.GenerateAccessToken("u-2", "root@example.com", string(user.RoleAdmin))
	require.NoError(t, err)
	rec = serve("/admin", "Bearer "+admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	r := gin.New()
	r.Use(CORSMiddleware(""))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRecoveryWritesEnvelope(t *testing.T) {
	t.Parallel()

	r := gin.New()
	r.Use(RecoveryMiddleware(zaptest.NewLogger(t)), LoggingMiddleware(zaptest.NewLogger(t)))
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decode(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "INTERNAL", env.Code)
}
