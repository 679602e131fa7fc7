package devserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ticketsync/internal/domain/realtime"
	"ticketsync/internal/domain/ticket"
	"ticketsync/internal/middleware"
	"ticketsync/internal/pkg/response"
	"ticketsync/internal/websocket"
)

type TicketHandler struct {
	store  Repository
	hub    *websocket.Hub
	logger *zap.Logger
}

func NewTicketHandler(store Repository, hub *websocket.Hub, logger *zap.Logger) *TicketHandler {
	return &TicketHandler{store: store, hub: hub, logger: logger}
}

type createTicketRequest struct {
	Title       string `json:"title" binding:"required,min=5"`
	Description string `json:"description" binding:"required,min=10"`
	Priority    string `json:"priority" binding:"required,oneof=LOW MEDIUM HIGH CRITICAL"`
	Category    string `json:"category" binding:"required,oneof=ELECTRICAL PLUMBING HVAC IT GENERAL OTHER"`
	Location    string `json:"location"`
}

type updateTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status" binding:"omitempty,oneof=OPEN IN_PROGRESS PENDING RESOLVED CLOSED"`
	Priority    string `json:"priority" binding:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
}

type assignRequest struct {
	TechnicianID string `json:"technicianId" binding:"required"`
}

type commentRequest struct {
	Content string `json:"content" binding:"required,min=1"`
}

func (h *TicketHandler) Create(c *gin.Context) {
	var req createTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	t, err := h.store.CreateTicket(c.Request.Context(), ticket.Ticket{
		Title:       req.Title,
		Description: req.Description,
		Priority:    ticket.Priority(req.Priority),
		Category:    ticket.Category(req.Category),
		Location:    req.Location,
		CreatedByID: middleware.MustGetUserID(c),
	})
	if err != nil {
		writeError(c, err, "Failed to create ticket")
		return
	}
	h.hub.Broadcast(realtime.EventTicketCreated, t)

	response.Success(c, http.StatusCreated, "", t)
}

func (h *TicketHandler) GetAll(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(ticket.DefaultPageSize)))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = ticket.DefaultPageSize
	}

	tickets, total, err := h.store.ListTickets(c.Request.Context(), TicketFilter{
		Status:       ticket.Status(c.Query("status")),
		Priority:     ticket.Priority(c.Query("priority")),
		Category:     ticket.Category(c.Query("category")),
		AssignedToID: c.Query("assignedToId"),
		Search:       c.Query("search"),
		Page:         page,
		Limit:        limit,
	})
	if err != nil {
		writeError(c, err, "Failed to list tickets")
		return
	}

	response.Page(c, tickets, ticket.Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	})
}

func (h *TicketHandler) GetStats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err, "Failed to compute stats")
		return
	}
	response.Success(c, http.StatusOK, "", stats)
}

func (h *TicketHandler) GetByID(c *gin.Context) {
	t, err := h.store.Ticket(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "Ticket not found")
		return
	}
	response.Success(c, http.StatusOK, "", t)
}

func (h *TicketHandler) Update(c *gin.Context) {
	var req updateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	t, err := h.store.UpdateTicket(c.Request.Context(), c.Param("id"), middleware.MustGetUserID(c), TicketChanges{
		Title:       req.Title,
		Description: req.Description,
		Status:      ticket.Status(req.Status),
		Priority:    ticket.Priority(req.Priority),
	})
	if err != nil {
		writeError(c, err, "Ticket not found")
		return
	}
	h.hub.Broadcast(realtime.EventTicketUpdated, t)

	response.Success(c, http.StatusOK, "", t)
}

func (h *TicketHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.DeleteTicket(c.Request.Context(), id); err != nil {
		writeError(c, err, "Ticket not found")
		return
	}
	h.hub.Broadcast(realtime.EventTicketDeleted, id)

	h.logger.Info("ticket deleted", zap.String("ticket_id", id))
	response.Success(c, http.StatusOK, "Ticket deleted", nil)
}

func (h *TicketHandler) Assign(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	t, err := h.store.Assign(c.Request.Context(), c.Param("id"), req.TechnicianID, middleware.MustGetUserID(c))
	if err != nil {
		writeError(c, err, "Ticket not found")
		return
	}
	h.hub.Broadcast(realtime.EventTicketUpdated, t)

	response.Success(c, http.StatusOK, "Technician assigned", t)
}

func (h *TicketHandler) AddComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	comment, err := h.store.AddComment(c.Request.Context(), c.Param("id"), middleware.MustGetUserID(c), req.Content)
	if err != nil {
		writeError(c, err, "Ticket not found")
		return
	}
	response.Success(c, http.StatusCreated, "", comment)
}

func (h *TicketHandler) GetComments(c *gin.Context) {
	comments, err := h.store.Comments(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "Ticket not found")
		return
	}
	response.Success(c, http.StatusOK, "", comments)
}

func (h *TicketHandler) GetLogs(c *gin.Context) {
	logs, err := h.store.Logs(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "Ticket not found")
		return
	}
	response.Success(c, http.StatusOK, "", logs)
}

// Upload records a multipart "file" against the ticket. Contents are not
// kept.
func (h *TicketHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_FAILED", "No file uploaded")
		return
	}

	a, err := h.store.AddAttachment(c.Request.Context(), ticket.Attachment{
		Filename: header.Filename,
		Type:     header.Header.Get("Content-Type"),
		Size:     header.Size,
		TicketID: c.Param("id"),
	})
	if err != nil {
		writeError(c, err, "Ticket not found")
		return
	}
	response.Success(c, http.StatusCreated, "", a)
}

func (h *TicketHandler) GetAttachments(c *gin.Context) {
	atts, err := h.store.Attachments(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "Ticket not found")
		return
	}
	response.Success(c, http.StatusOK, "", atts)
}
