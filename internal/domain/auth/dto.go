// internal/domain/auth/dto.go
package auth

import "ticketsync/internal/domain/user"

// LoginRequest for user login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest for user registration
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginData is the "data" member of a successful login response.
type LoginData struct {
	User        *user.User `json:"user"`
	AccessToken string     `json:"accessToken"`
}

// RefreshResponse is returned by POST /auth/refresh. Unlike the other
// endpoints the token sits at the top level, not under "data".
type RefreshResponse struct {
	Success     bool   `json:"success"`
	AccessToken string `json:"accessToken"`
}

// MeData is the "data" member of GET /auth/me.
type MeData struct {
	User *user.User `json:"user"`
}

type UpdateProfileRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}
