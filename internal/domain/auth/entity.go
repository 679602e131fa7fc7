// internal/domain/auth/entity.go
package auth

import (
	"net/http"
	"time"

	"ticketsync/internal/domain/user"
)

// State is the authentication state visible to the rest of the client.
// IsAuthenticated implies User != nil.
type State struct {
	User            *user.User `json:"user"`
	IsAuthenticated bool       `json:"isAuthenticated"`
}

// Normalize enforces the State invariant.
func (s State) Normalize() State {
	if s.User == nil {
		s.IsAuthenticated = false
	}
	return s
}

// PersistedState is what survives a process restart. The access token is
// deliberately absent: it lives in memory only and is re-acquired through
// the refresh cookie.
type PersistedState struct {
	State
	Cookies []Cookie  `json:"cookies,omitempty"`
	SavedAt time.Time `json:"savedAt"`
}

// Cookie is the durable subset of an http.Cookie.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"httpOnly,omitempty"`
}

func FromHTTPCookie(c *http.Cookie) Cookie {
	return Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Domain:   c.Domain,
		Expires:  c.Expires,
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
	}
}

func (c Cookie) HTTPCookie() *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Domain:   c.Domain,
		Expires:  c.Expires,
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
	}
}
