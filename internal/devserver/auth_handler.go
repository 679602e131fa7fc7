package devserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ticketsync/internal/domain/user"
	"ticketsync/internal/middleware"
	xerrors "ticketsync/internal/pkg/errors"
	"ticketsync/internal/pkg/jwt"
	"ticketsync/internal/pkg/response"
	"ticketsync/internal/websocket"
)

const refreshCookie = "refresh_token"

type AuthHandler struct {
	store      Repository
	tokens     *jwt.Manager
	hub        *websocket.Hub
	refreshTTL time.Duration
	limiter    *RateLimiter // optional
	logger     *zap.Logger
}

func NewAuthHandler(store Repository, tokens *jwt.Manager, hub *websocket.Hub, limiter *RateLimiter, refreshTTL time.Duration, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		store:      store,
		tokens:     tokens,
		hub:        hub,
		limiter:    limiter,
		refreshTTL: refreshTTL,
		logger:     logger,
	}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required,min=2"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
}

type updateProfileRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// ========== Registration ==========

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	u, err := h.store.CreateUser(c.Request.Context(), req.Name, req.Email, req.Password, user.RoleUser)
	if err != nil {
		if xerrors.Is(err, xerrors.ErrConflict) {
			response.Error(c, http.StatusConflict, "EMAIL_EXISTS", "User already exists")
			return
		}
		h.logger.Error("registration failed", zap.String("email", req.Email), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "INTERNAL", "Failed to register user")
		return
	}

	response.Success(c, http.StatusCreated, "User registered successfully", u)
}

// ========== Login ==========

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	if h.limiter != nil {
		allowed, remaining, err := h.limiter.CheckLoginAttempt(c.Request.Context(), c.ClientIP(), req.Email)
		if err != nil {
			// fail open
			h.logger.Warn("login rate limiter unavailable", zap.Error(err))
		} else if !allowed {
			c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			response.Error(c, http.StatusTooManyRequests, "RATE_LIMITED", "Too many login attempts, try again later")
			return
		}
	}

	u, err := h.store.Authenticate(c.Request.Context(), req.Email, req.Password)
	switch {
	case xerrors.Is(err, xerrors.ErrNotFound):
		response.Unauthorized(c, "ACCOUNT_NOT_FOUND", "No account found for this email")
		return
	case xerrors.Is(err, xerrors.ErrUnauthorized):
		response.Unauthorized(c, "INVALID_CREDENTIALS", "Invalid credentials")
		return
	case err != nil:
		h.logger.Error("login failed", zap.String("email", req.Email), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "INTERNAL", "Failed to log in")
		return
	}

	accessToken, _, err := h.tokens.Generator.GenerateAccessToken(u.ID, u.Email, string(u.Role))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "INTERNAL", "Failed to issue token")
		return
	}
	refreshToken, _, err := h.tokens.Generator.GenerateRefreshToken(u.ID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "INTERNAL", "Failed to issue token")
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshCookie, refreshToken, int(h.refreshTTL.Seconds()), "/", "", false, true)

	if h.limiter != nil {
		if err := h.limiter.ResetLoginAttempts(c.Request.Context(), c.ClientIP(), req.Email); err != nil {
			h.logger.Warn("failed to reset login attempts", zap.Error(err))
		}
	}

	h.logger.Info("user logged in", zap.String("user_id", u.ID))
	response.Success(c, http.StatusOK, "", gin.H{
		"user":        u,
		"accessToken": accessToken,
	})
}

// RefreshToken mints a new access token from the refresh cookie. The token
// sits at the top level of the body.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	raw, err := c.Cookie(refreshCookie)
	if err != nil || raw == "" {
		response.Unauthorized(c, "UNAUTHORIZED", "No refresh token")
		return
	}

	claims, err := h.tokens.Verifier.VerifyRefreshToken(raw)
	if err != nil {
		response.Unauthorized(c, "SESSION_EXPIRED", "Invalid refresh token")
		return
	}
	revoked, err := h.store.IsRevoked(c.Request.Context(), claims.ID)
	if err != nil {
		h.logger.Error("revocation check failed", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "INTERNAL", "Failed to refresh token")
		return
	}
	if revoked {
		response.Unauthorized(c, "SESSION_EXPIRED", "Invalid refresh token")
		return
	}
	u, err := h.store.User(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Unauthorized(c, "SESSION_EXPIRED", "Invalid refresh token")
		return
	}

	accessToken, _, err := h.tokens.Generator.GenerateAccessToken(u.ID, u.Email, string(u.Role))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "INTERNAL", "Failed to issue token")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "accessToken": accessToken})
}

// Logout revokes the refresh cookie, if any, and clears it.
func (h *AuthHandler) Logout(c *gin.Context) {
	if raw, err := c.Cookie(refreshCookie); err == nil && raw != "" {
		if claims, err := h.tokens.Verifier.VerifyRefreshToken(raw); err == nil && claims.ExpiresAt != nil {
			if err := h.store.RevokeRefresh(c.Request.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
				h.logger.Warn("failed to revoke refresh token", zap.Error(err))
			}
		}
	}
	h.clearCookie(c)
	response.Success(c, http.StatusOK, "Logged out successfully", nil)
}

func (h *AuthHandler) GetMe(c *gin.Context) {
	u, err := h.store.User(c.Request.Context(), middleware.MustGetUserID(c))
	if err != nil {
		response.NotFound(c, "User not found")
		return
	}
	response.Success(c, http.StatusOK, "", gin.H{"user": u})
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	if err := h.store.ChangePassword(c.Request.Context(), middleware.MustGetUserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		writeError(c, err, "Failed to change password")
		return
	}
	response.Success(c, http.StatusOK, "Password changed successfully", nil)
}

func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	_, err := h.store.UpdateUser(c.Request.Context(), middleware.MustGetUserID(c), func(u *user.User) {
		if req.Name != "" {
			u.Name = req.Name
		}
		u.Phone = req.Phone
	})
	if err != nil {
		writeError(c, err, "Failed to update profile")
		return
	}
	response.Success(c, http.StatusOK, "Profile updated successfully", nil)
}

func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	userID := middleware.MustGetUserID(c)
	if err := h.store.DeleteUser(c.Request.Context(), userID); err != nil {
		writeError(c, err, "Failed to delete account")
		return
	}
	h.hub.DisconnectUser(userID)
	h.clearCookie(c)
	response.Success(c, http.StatusOK, "Account deleted successfully", nil)
}

func (h *AuthHandler) clearCookie(c *gin.Context) {
	c.SetCookie(refreshCookie, "", -1, "/", "", false, true)
}
