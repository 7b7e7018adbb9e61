package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nandanugg/fleet-gps/module/core/domain"
)

type sessionService interface {
	Transition(ctx context.Context, tenantID string, sessionID int64, status domain.SessionStatus) error
}

type sessionEventRequest struct {
	Status domain.SessionStatus `json:"status" binding:"required"`
}

// SessionHandler receives lifecycle notifications from the trip service.
type SessionHandler struct {
	sessionSvc sessionService
}

func NewSessionHandler(sessionSvc sessionService) *SessionHandler {
	return &SessionHandler{sessionSvc: sessionSvc}
}

func (h *SessionHandler) Register(r *gin.RouterGroup) {
	r.POST("/sessions/:id/events", h.Notify)
}

func (h *SessionHandler) Notify(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	var req sessionEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.sessionSvc.Transition(c.Request.Context(), tenantID(c), id, req.Status); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}
