package xerrors

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAPIErrorPrefersStructuredCode(t *testing.T) {
	t.Parallel()

	err := NewAPIError(http.MethodPost, "/auth/login", http.StatusBadRequest, "invalid_credentials", "whatever the server says")
	assert.Equal(t, KindInvalidCredentials, err.Kind)
	assert.True(t, Is(err, ErrBadRequest))
}

func TestNewAPIErrorFallsBackToStatus(t *testing.T) {
	t.Parallel()

	cases := map[int]Kind{
		http.StatusUnauthorized:        KindUnauthorized,
		http.StatusForbidden:           KindForbidden,
		http.StatusNotFound:            KindNotFound,
		http.StatusConflict:            KindConflict,
		http.StatusUnprocessableEntity: KindValidation,
		http.StatusTooManyRequests:     KindRateLimited,
		http.StatusBadGateway:          KindServer,
		http.StatusTeapot:              KindUnknown,
	}
	for status, want := range cases {
		assert.Equal(t, want, NewAPIError(http.MethodGet, "/x", status, "", "").Kind, "status %d", status)
	}
}

func TestAPIErrorMatchesSentinelsThroughWrapping(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("fetch tickets: %w", NewAPIError(http.MethodGet, "/tickets", http.StatusUnauthorized, "", "expired"))
	assert.True(t, IsUnauthorized(err))
	assert.False(t, Is(err, ErrNotFound))
	assert.Equal(t, KindUnauthorized, KindOf(err))
}

func TestTransportErrorUnwrapsCause(t *testing.T) {
	t.Parallel()

	err := &APIError{Kind: KindTimeout, Method: http.MethodGet, Path: "/tickets", Err: context.DeadlineExceeded}
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Contains(t, err.Error(), "GET /tickets: timeout")
}

func TestClassifyLogin(t *testing.T) {
	t.Parallel()

	invalid := ClassifyLogin(NewAPIError(http.MethodPost, "/auth/login", http.StatusUnauthorized, "", "Invalid credentials"))
	assert.Equal(t, KindInvalidCredentials, KindOf(invalid))

	missing := ClassifyLogin(NewAPIError(http.MethodPost, "/auth/login", http.StatusBadRequest, "", "user not found"))
	assert.Equal(t, KindAccountNotFound, KindOf(missing))

	coded := ClassifyLogin(NewAPIError(http.MethodPost, "/auth/login", http.StatusUnauthorized, "ACCOUNT_NOT_FOUND", "Invalid credentials"))
	assert.Equal(t, KindAccountNotFound, KindOf(coded))

	generic := ClassifyLogin(NewAPIError(http.MethodPost, "/auth/login", http.StatusInternalServerError, "", "boom"))
	assert.Equal(t, KindServer, KindOf(generic))
}

func TestClassifyRegister(t *testing.T) {
	t.Parallel()

	err := ClassifyRegister(NewAPIError(http.MethodPost, "/auth/register", http.StatusConflict, "", "User already exists"))
	assert.Equal(t, KindEmailExists, KindOf(err))
	assert.Equal(t, "An account with this email already exists", UserMessage(err))
}
