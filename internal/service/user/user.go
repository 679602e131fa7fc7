package user

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"ticketsync/internal/domain/user"
	xerrors "ticketsync/internal/pkg/errors"
	"ticketsync/internal/pkg/response"
)

type Requester interface {
	Call(ctx context.Context, method, path string, query url.Values, body, out any) (*response.Envelope, error)
}

// UserService covers the admin user-management endpoints.
type UserService struct {
	api    Requester
	logger *zap.Logger
}

func NewUserService(api Requester, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{api: api, logger: logger}
}

func (s *UserService) List(ctx context.Context, filters user.Filters) ([]user.User, error) {
	q := url.Values{}
	if filters.Search != "" {
		q.Set("search", filters.Search)
	}
	if filters.Role != "" {
		q.Set("role", string(filters.Role))
	}

	var users []user.User
	if _, err := s.api.Call(ctx, http.MethodGet, "/users", q, nil, &users); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *UserService) UpdateRole(ctx context.Context, id string, role user.Role) (*user.User, error) {
	if !role.Valid() {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, fmt.Sprintf("unknown role %q", role))
	}

	var u user.User
	if _, err := s.api.Call(ctx, http.MethodPatch, userPath(id)+"/role", nil, user.UpdateRoleRequest{Role: role}, &u); err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	s.logger.Info("user role updated", zap.String("user_id", id), zap.String("role", string(role)))
	return &u, nil
}

func (s *UserService) UpdateDepartment(ctx context.Context, id, department string) (*user.User, error) {
	var u user.User
	if _, err := s.api.Call(ctx, http.MethodPatch, userPath(id), nil, user.UpdateDepartmentRequest{Department: department}, &u); err != nil {
		return nil, fmt.Errorf("failed to update department: %w", err)
	}
	return &u, nil
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	if _, err := s.api.Call(ctx, http.MethodDelete, userPath(id), nil, nil, nil); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	s.logger.Info("user deleted", zap.String("user_id", id))
	return nil
}

func userPath(id string) string {
	return "/users/" + url.PathEscape(id)
}
