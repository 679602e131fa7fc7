package devserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ticketsync/internal/domain/user"
	"ticketsync/internal/pkg/response"
	"ticketsync/internal/websocket"
)

// UserHandler serves the admin-only user routes.
type UserHandler struct {
	store  Repository
	hub    *websocket.Hub
	logger *zap.Logger
}

func NewUserHandler(store Repository, hub *websocket.Hub, logger *zap.Logger) *UserHandler {
	return &UserHandler{store: store, hub: hub, logger: logger}
}

type updateUserRequest struct {
	Name       string  `json:"name"`
	Phone      *string `json:"phone"`
	Department *string `json:"department"`
}

type updateRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=USER TECHNICIAN ADMIN"`
}

func (h *UserHandler) GetAll(c *gin.Context) {
	users, err := h.store.ListUsers(c.Request.Context(), user.Filters{
		Search: c.Query("search"),
		Role:   user.Role(c.Query("role")),
	})
	if err != nil {
		writeError(c, err, "Failed to list users")
		return
	}
	response.Success(c, http.StatusOK, "", users)
}

func (h *UserHandler) GetByID(c *gin.Context) {
	u, err := h.store.User(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "User not found")
		return
	}
	response.Success(c, http.StatusOK, "", u)
}

func (h *UserHandler) Update(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	u, err := h.store.UpdateUser(c.Request.Context(), c.Param("id"), func(u *user.User) {
		if req.Name != "" {
			u.Name = req.Name
		}
		if req.Phone != nil {
			u.Phone = *req.Phone
		}
		if req.Department != nil {
			u.Department = *req.Department
		}
	})
	if err != nil {
		writeError(c, err, "User not found")
		return
	}
	response.Success(c, http.StatusOK, "", u)
}

func (h *UserHandler) UpdateRole(c *gin.Context) {
	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	u, err := h.store.UpdateUser(c.Request.Context(), c.Param("id"), func(u *user.User) {
		u.Role = user.Role(req.Role)
	})
	if err != nil {
		writeError(c, err, "User not found")
		return
	}

	h.logger.Info("role updated", zap.String("user_id", u.ID), zap.String("role", req.Role))
	response.Success(c, http.StatusOK, "Role updated", u)
}

func (h *UserHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.DeleteUser(c.Request.Context(), id); err != nil {
		writeError(c, err, "User not found")
		return
	}
	h.hub.DisconnectUser(id)
	response.Success(c, http.StatusOK, "User deleted", nil)
}
