// Package session owns the access token, the persisted authentication state
// and the refresh-on-401 policy every API call goes through.
package session

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"ticketsync/internal/domain/auth"
	"ticketsync/internal/domain/user"
	"ticketsync/internal/pkg/httpx"
	"ticketsync/internal/pkg/jwt"
)

const (
	loginPath    = "/auth/login"
	registerPath = "/auth/register"
	refreshPath  = "/auth/refresh"
	logoutPath   = "/auth/logout"
	mePath       = "/auth/me"

	refreshKey = "refresh"
)

type Options struct {
	HTTP      *httpx.Client
	Store     Store
	Navigator Navigator
	Logger    *zap.Logger
}

type Manager struct {
	http   *httpx.Client
	store  Store
	nav    Navigator
	log    *zap.Logger
	flight singleflight.Group

	mu       sync.RWMutex
	token    string
	tokenVer uint64 // bumped on every SetToken
	state    auth.State

	obsMu     sync.Mutex
	observers map[uint64]func(auth.State)
	nextObs   uint64
}

func NewManager(opts Options) *Manager {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	store := opts.Store
	if store == nil {
		store = NewMemoryStore()
	}
	return &Manager{
		http:      opts.HTTP,
		store:     store,
		nav:       opts.Navigator,
		log:       log.Named("session"),
		observers: make(map[uint64]func(auth.State)),
	}
}

// SetToken replaces the in-memory access token. An empty token clears it.
func (m *Manager) SetToken(token string) {
	m.mu.Lock()
	m.token = token
	m.tokenVer++
	m.mu.Unlock()
}

func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

func (m *Manager) tokenSnapshot() (string, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.tokenVer
}

// TokenExpiry reads the exp claim of the held token. ok is false when no
// token is held or it cannot be parsed.
func (m *Manager) TokenExpiry() (time.Time, bool) {
	token := m.Token()
	if token == "" {
		return time.Time{}, false
	}
	exp, err := jwt.ExpiresAt(token)
	if err != nil {
		return time.Time{}, false
	}
	return exp, true
}

func (m *Manager) State() auth.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) User() *user.User {
	return m.State().User
}

func (m *Manager) IsAuthenticated() bool {
	return m.State().IsAuthenticated
}

func (m *Manager) HasRole(role user.Role) bool {
	return m.User().HasRole(role)
}

func (m *Manager) IsAdmin() bool {
	return m.User().IsAdmin()
}

func (m *Manager) IsTechnician() bool {
	return m.User().IsTechnician()
}

// OnChange registers fn to run after every authentication state change.
// The returned func removes the registration.
func (m *Manager) OnChange(fn func(auth.State)) func() {
	m.obsMu.Lock()
	id := m.nextObs
	m.nextObs++
	m.observers[id] = fn
	m.obsMu.Unlock()

	return func() {
		m.obsMu.Lock()
		delete(m.observers, id)
		m.obsMu.Unlock()
	}
}

// SetUser replaces the cached user record, e.g. after a profile update.
func (m *Manager) SetUser(ctx context.Context, u *user.User) {
	if u == nil {
		return
	}
	m.setState(ctx, auth.State{User: u, IsAuthenticated: m.IsAuthenticated()})
}

// setState swaps the state, persists it and notifies observers.
func (m *Manager) setState(ctx context.Context, st auth.State) {
	st = st.Normalize()
	m.mu.Lock()
	m.state = st
	m.mu.Unlock()

	m.persist(ctx)
	m.notify(st)
}

func (m *Manager) persist(ctx context.Context) {
	st := m.State()
	var err error
	if st.IsAuthenticated {
		err = m.store.Save(ctx, &auth.PersistedState{
			State:   st,
			Cookies: m.cookies(),
			SavedAt: time.Now().UTC(),
		})
	} else {
		err = m.store.Clear(ctx)
	}
	if err != nil {
		m.log.Warn("failed to persist session state", zap.Error(err))
	}
}

func (m *Manager) notify(st auth.State) {
	m.obsMu.Lock()
	fns := make([]func(auth.State), 0, len(m.observers))
	for _, fn := range m.observers {
		fns = append(fns, fn)
	}
	m.obsMu.Unlock()

	for _, fn := range fns {
		fn(st)
	}
}

// cookies collects the jar's cookies for the API origin, including any
// scoped to the refresh endpoint.
func (m *Manager) cookies() []auth.Cookie {
	jar := m.http.Jar()
	if jar == nil {
		return nil
	}

	var out []auth.Cookie
	seen := make(map[string]bool)
	for _, raw := range []string{m.http.URL("/", nil), m.http.URL(refreshPath, nil)} {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		for _, c := range jar.Cookies(u) {
			if seen[c.Name] {
				continue
			}
			seen[c.Name] = true
			out = append(out, auth.FromHTTPCookie(c))
		}
	}
	return out
}

func (m *Manager) restoreCookies(cookies []auth.Cookie) {
	jar := m.http.Jar()
	if jar == nil || len(cookies) == 0 {
		return
	}

	origin := m.http.BaseURL()
	origin.Path = "/"
	origin.RawQuery = ""

	hc := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		cookie := c.HTTPCookie()
		cookie.Path = "/"
		cookie.Domain = ""
		hc = append(hc, cookie)
	}
	jar.SetCookies(origin, hc)
}
