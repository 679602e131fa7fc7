package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"ticketsync/internal/domain/auth"
	xerrors "ticketsync/internal/pkg/errors"
	"ticketsync/internal/pkg/httpx"
	"ticketsync/internal/pkg/response"
)

// pendingRequest is an outbound call plus its retry bookkeeping.
type pendingRequest struct {
	httpx.Request
	retried   bool
	noRefresh bool
}

// Do sends req with the current bearer token. A 401 triggers at most one
// refresh and one replay; concurrent 401s share a single refresh.
func (m *Manager) Do(ctx context.Context, req httpx.Request) (*httpx.Response, error) {
	return m.send(ctx, &pendingRequest{Request: req})
}

// Call is Do for JSON endpoints wrapped in the standard envelope. The data
// member is decoded into out when out is non-nil.
func (m *Manager) Call(ctx context.Context, method, path string, query url.Values, body, out any) (*response.Envelope, error) {
	req, err := httpx.JSON(method, path, body)
	if err != nil {
		return nil, err
	}
	req.Query = query

	resp, err := m.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return decodeEnvelope(resp, out)
}

func decodeEnvelope(resp *httpx.Response, out any) (*response.Envelope, error) {
	env, err := resp.Envelope()
	if err != nil {
		return nil, err
	}
	if out != nil {
		if err := env.DecodeData(out); err != nil {
			return env, xerrors.Wrap(err, "decode response data")
		}
	}
	return env, nil
}

func (m *Manager) send(ctx context.Context, p *pendingRequest) (*httpx.Response, error) {
	token, ver := m.tokenSnapshot()

	req := p.Request
	if token != "" {
		req.Header = req.Header.Clone()
		if req.Header == nil {
			req.Header = make(http.Header)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := m.http.Do(ctx, req)
	if err == nil || !xerrors.IsUnauthorized(err) {
		return resp, err
	}
	if p.noRefresh || p.retried || refreshExempt(p.Path) {
		return resp, err
	}

	p.retried = true
	if rerr := m.refresh(ctx, ver); rerr != nil {
		m.log.Debug("not replaying request after failed refresh",
			zap.String("method", p.Method),
			zap.String("path", p.Path),
			zap.Error(rerr),
		)
		return resp, err
	}
	return m.send(ctx, p)
}

// refreshExempt lists the endpoints whose 401 is final.
func refreshExempt(path string) bool {
	path = strings.TrimRight(path, "/")
	return path == refreshPath || path == loginPath
}

// refresh obtains a new access token unless the token already changed since
// the failed request was sent (sentVer). Concurrent callers share one call.
// A failed refresh ends the session and leaves for the login view.
func (m *Manager) refresh(ctx context.Context, sentVer uint64) error {
	return m.refreshOr(ctx, sentVer, m.expire)
}

// refreshOr is refresh with end run after a failed refresh call.
func (m *Manager) refreshOr(ctx context.Context, sentVer uint64, end func(context.Context)) error {
	if token, ver := m.tokenSnapshot(); ver != sentVer {
		if token != "" {
			return nil
		}
		return xerrors.ErrSessionExpired
	}

	ch := m.flight.DoChan(refreshKey, func() (any, error) {
		// A flight started by a caller that lost the race to a finished
		// flight must not hit the network again.
		if token, ver := m.tokenSnapshot(); ver != sentVer {
			if token != "" {
				return token, nil
			}
			return "", xerrors.ErrSessionExpired
		}

		fctx := context.WithoutCancel(ctx)
		token, err := m.requestRefresh(fctx)
		if err != nil {
			m.log.Warn("token refresh failed, ending session", zap.Error(err))
			end(fctx)
			return "", err
		}
		m.SetToken(token)
		m.persist(fctx)
		return token, nil
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (m *Manager) requestRefresh(ctx context.Context) (string, error) {
	resp, err := m.http.Do(ctx, httpx.Request{Method: http.MethodPost, Path: refreshPath})
	if err != nil {
		return "", err
	}

	// The token sits at the top level; some deployments nest it under data
	// the way login does.
	var body struct {
		auth.RefreshResponse
		Data *auth.LoginData `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return "", xerrors.Wrap(err, "decode refresh response")
	}
	token := body.AccessToken
	if token == "" && body.Data != nil {
		token = body.Data.AccessToken
	}
	if token == "" {
		return "", xerrors.Wrap(xerrors.ErrSessionExpired, "refresh returned no access token")
	}
	return token, nil
}

// expire ends the session after an unrecoverable refresh failure and sends
// the user to the login view unless already there.
func (m *Manager) expire(ctx context.Context) {
	m.SetToken("")
	m.setState(ctx, auth.State{})

	if m.nav != nil && m.nav.CurrentPath() != LoginPath {
		m.nav.Navigate(LoginPath)
	}
}
