package devserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ticketsync/internal/middleware"
)

type Handlers struct {
	Auth           *AuthHandler
	Ticket         *TicketHandler
	User           *UserHandler
	WebSocket      *WebSocketHandler
	AuthMiddleware *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ==================== WebSocket ====================
	r.GET("/ws", h.WebSocket.HandleConnection)

	api := r.Group("/api/v1")

	// ==================== Auth ====================
	authPublic := api.Group("/auth")
	{
		authPublic.POST("/register", h.Auth.Register)
		authPublic.POST("/login", h.Auth.Login)
		authPublic.POST("/refresh", h.Auth.RefreshToken)
		authPublic.POST("/logout", h.Auth.Logout)
	}

	authProtected := api.Group("/auth")
	authProtected.Use(h.AuthMiddleware.Auth())
	{
		authProtected.GET("/me", h.Auth.GetMe)
		authProtected.POST("/change-password", h.Auth.ChangePassword)
		authProtected.DELETE("/delete-account", h.Auth.DeleteAccount)
		authProtected.PATCH("/profile", h.Auth.UpdateProfile)
	}

	// ==================== Tickets ====================
	tickets := api.Group("/tickets")
	tickets.Use(h.AuthMiddleware.Auth())
	{
		tickets.POST("", h.Ticket.Create)
		tickets.GET("", h.Ticket.GetAll)
		tickets.GET("/stats", h.Ticket.GetStats)
		tickets.GET("/:id", h.Ticket.GetByID)
		tickets.PATCH("/:id", h.Ticket.Update)
		tickets.DELETE("/:id", h.Ticket.Delete)
		tickets.POST("/:id/assign", h.AuthMiddleware.RequireTechnician(), h.Ticket.Assign)
		tickets.POST("/:id/comments", h.Ticket.AddComment)
		tickets.GET("/:id/comments", h.Ticket.GetComments)
		tickets.GET("/:id/logs", h.Ticket.GetLogs)
		tickets.POST("/:id/attachments", h.Ticket.Upload)
		tickets.GET("/:id/attachments", h.Ticket.GetAttachments)
	}

	// ==================== Users (admin) ====================
	users := api.Group("/users")
	users.Use(h.AuthMiddleware.AdminOnly()...)
	{
		users.GET("", h.User.GetAll)
		users.GET("/:id", h.User.GetByID)
		users.PATCH("/:id", h.User.Update)
		users.PATCH("/:id/role", h.User.UpdateRole)
		users.DELETE("/:id", h.User.Delete)
	}
}
