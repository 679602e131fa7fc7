package account

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"ticketsync/internal/domain/auth"
	"ticketsync/internal/domain/user"
	xerrors "ticketsync/internal/pkg/errors"
	"ticketsync/internal/pkg/response"
)

// Session is the slice of the session manager the account endpoints need.
type Session interface {
	Call(ctx context.Context, method, path string, query url.Values, body, out any) (*response.Envelope, error)
	Me(ctx context.Context) (*user.User, error)
	SetUser(ctx context.Context, u *user.User)
	Logout(ctx context.Context) error
}

const minPasswordLength = 6

type AccountService struct {
	session Session
	logger  *zap.Logger
}

func NewAccountService(session Session, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{session: session, logger: logger}
}

// Profile re-reads the signed-in user.
func (s *AccountService) Profile(ctx context.Context) (*user.User, error) {
	u, err := s.session.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	s.session.SetUser(ctx, u)
	return u, nil
}

// UpdateProfile saves name and phone, then refreshes the cached user.
func (s *AccountService) UpdateProfile(ctx context.Context, req *auth.UpdateProfileRequest) (*user.User, error) {
	if req.Name == "" {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "name is required")
	}
	if _, err := s.session.Call(ctx, http.MethodPatch, "/auth/profile", nil, req, nil); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return s.Profile(ctx)
}

func (s *AccountService) ChangePassword(ctx context.Context, current, next string) error {
	if len(next) < minPasswordLength {
		return xerrors.Wrap(xerrors.ErrInvalidInput, fmt.Sprintf("new password must be at least %d characters", minPasswordLength))
	}
	body := auth.ChangePasswordRequest{CurrentPassword: current, NewPassword: next}
	if _, err := s.session.Call(ctx, http.MethodPost, "/auth/change-password", nil, body, nil); err != nil {
		return fmt.Errorf("failed to change password: %w", err)
	}
	s.logger.Info("password changed")
	return nil
}

// DeleteAccount removes the account server-side and ends the local session.
func (s *AccountService) DeleteAccount(ctx context.Context) error {
	if _, err := s.session.Call(ctx, http.MethodDelete, "/auth/delete-account", nil, nil, nil); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return s.session.Logout(ctx)
}
