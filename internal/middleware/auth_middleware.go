// internal/middleware/auth_middleware.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"ticketsync/internal/domain/user"
	"ticketsync/internal/pkg/jwt"
	"ticketsync/internal/pkg/response"
)

const (
	ctxUserID = "user_id"
	ctxEmail  = "email"
	ctxRole   = "role"
	ctxJTI    = "jti"
)

type AuthMiddleware struct {
	verifier *jwt.Verifier
}

func NewAuthMiddleware(verifier *jwt.Verifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
	}
}

// Auth validates the bearer access token and stores its claims on the context.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token == "" {
			response.Unauthorized(c, "UNAUTHORIZED", "missing authorization token")
			return
		}

		claims, err := m.verifier.VerifyAccessToken(token)
		if err != nil {
			response.Unauthorized(c, "TOKEN_EXPIRED", "invalid or expired token")
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxEmail, claims.Email)
		c.Set(ctxRole, claims.Role)
		c.Set(ctxJTI, claims.ID)

		c.Next()
	}
}

// RequireRole lets the request through when the caller has one of roles.
// MUST be used after Auth() middleware
func (m *AuthMiddleware) RequireRole(roles ...user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetRole(c)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		response.Forbidden(c, "Insufficient permissions")
	}
}

// RequireAdmin is a shortcut for admin-only routes
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return m.RequireRole(user.RoleAdmin)
}

// RequireTechnician allows technicians and admins
func (m *AuthMiddleware) RequireTechnician() gin.HandlerFunc {
	return m.RequireRole(user.RoleTechnician, user.RoleAdmin)
}

// AdminOnly returns middlewares for admin-only routes (Auth + RequireAdmin)
func (m *AuthMiddleware) AdminOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireAdmin(),
	}
}

// ExtractToken reads the Bearer token from the Authorization header, falling
// back to the token query parameter.
func ExtractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	return c.Query("token")
}

// GetUserID returns the authenticated user's id.
func GetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get(ctxUserID)
	if !exists {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// MustGetUserID gets the user id from context or panics
func MustGetUserID(c *gin.Context) string {
	id, ok := GetUserID(c)
	if !ok {
		panic("user_id not found in context")
	}
	return id
}

func GetRole(c *gin.Context) user.Role {
	return user.Role(c.GetString(ctxRole))
}

// IsAdmin checks if user is an admin
func IsAdmin(c *gin.Context) bool {
	return GetRole(c) == user.RoleAdmin
}

// IsTechnician is true for technicians and admins.
func IsTechnician(c *gin.Context) bool {
	r := GetRole(c)
	return r == user.RoleTechnician || r == user.RoleAdmin
}
