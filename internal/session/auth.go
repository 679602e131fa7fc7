package session

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"ticketsync/internal/domain/auth"
	"ticketsync/internal/domain/user"
	xerrors "ticketsync/internal/pkg/errors"
	"ticketsync/internal/pkg/httpx"
)

// Login exchanges credentials for an access token and marks the session
// authenticated. Failures carry a credential-level xerrors.Kind.
func (m *Manager) Login(ctx context.Context, email, password string) (*user.User, error) {
	req, err := httpx.JSON(http.MethodPost, loginPath, auth.LoginRequest{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	resp, err := m.send(ctx, &pendingRequest{Request: req, noRefresh: true})
	if err != nil {
		return nil, xerrors.ClassifyLogin(err)
	}
	var data auth.LoginData
	if _, err := decodeEnvelope(resp, &data); err != nil {
		return nil, err
	}
	if data.AccessToken == "" || data.User == nil {
		return nil, xerrors.Wrap(xerrors.ErrInternal, "login response missing token or user")
	}

	m.SetToken(data.AccessToken)
	m.setState(ctx, auth.State{User: data.User, IsAuthenticated: true})
	m.log.Info("logged in", zap.String("user_id", data.User.ID), zap.String("role", string(data.User.Role)))
	return data.User, nil
}

// Register creates an account. It does not log in.
func (m *Manager) Register(ctx context.Context, name, email, password string) error {
	req, err := httpx.JSON(http.MethodPost, registerPath, auth.RegisterRequest{Name: name, Email: email, Password: password})
	if err != nil {
		return err
	}
	if _, err := m.send(ctx, &pendingRequest{Request: req, noRefresh: true}); err != nil {
		return xerrors.ClassifyRegister(err)
	}
	return nil
}

// Logout tells the server to drop the refresh cookie, then clears local
// state whatever the server answered.
func (m *Manager) Logout(ctx context.Context) error {
	req := httpx.Request{Method: http.MethodPost, Path: logoutPath}
	if _, err := m.send(ctx, &pendingRequest{Request: req, noRefresh: true}); err != nil {
		m.log.Warn("logout request failed, clearing local session anyway", zap.Error(err))
	}
	m.clearLocal(ctx)
	return nil
}

func (m *Manager) clearLocal(ctx context.Context) {
	m.SetToken("")
	m.setState(ctx, auth.State{})
}

// Me fetches the current user and refreshes the cached record.
func (m *Manager) Me(ctx context.Context) (*user.User, error) {
	var data auth.MeData
	if _, err := m.Call(ctx, http.MethodGet, mePath, nil, nil, &data); err != nil {
		return nil, err
	}
	if data.User == nil {
		return nil, xerrors.Wrap(xerrors.ErrInternal, "me response missing user")
	}
	return data.User, nil
}

// Restore loads persisted state into memory. The access token is never part
// of it; CheckAuth re-acquires one.
func (m *Manager) Restore(ctx context.Context) (auth.State, error) {
	persisted, err := m.store.Load(ctx)
	if err != nil {
		return auth.State{}, xerrors.Wrap(err, "load session state")
	}
	if persisted == nil {
		return auth.State{}, nil
	}

	m.restoreCookies(persisted.Cookies)
	st := persisted.State.Normalize()

	m.mu.Lock()
	m.state = st
	m.mu.Unlock()
	m.notify(st)
	return st, nil
}

// CheckAuth verifies a persisted "authenticated" claim by refreshing the
// token and re-reading the user. Any failure logs out locally without
// navigating; the caller decides which view comes next.
func (m *Manager) CheckAuth(ctx context.Context) error {
	if !m.IsAuthenticated() {
		return nil
	}

	_, ver := m.tokenSnapshot()
	if err := m.refreshOr(ctx, ver, m.clearLocal); err != nil {
		m.clearLocal(ctx)
		return xerrors.Wrap(err, "refresh session")
	}

	u, err := m.Me(ctx)
	if err != nil {
		m.log.Warn("identity check failed, logging out", zap.Error(err))
		m.clearLocal(ctx)
		return xerrors.Wrap(err, "verify identity")
	}

	m.setState(ctx, auth.State{User: u, IsAuthenticated: true})
	return nil
}
