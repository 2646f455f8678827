package handler

import (
	"github.com/gin-gonic/gin"

	reconcileapp "github.com/krbiz/backend/internal/application/reconcile"
	"github.com/krbiz/backend/internal/interfaces/http/dto"
	"github.com/krbiz/backend/internal/interfaces/http/middleware"
)

// SessionHandler starts and ends reconciliation sessions
type SessionHandler struct {
	BaseHandler
	svc *reconcileapp.Service
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(svc *reconcileapp.Service) *SessionHandler {
	return &SessionHandler{svc: svc}
}

// Create starts an empty session
func (h *SessionHandler) Create(c *gin.Context) {
	session := h.svc.CreateSession()
	h.Created(c, dto.SessionResponse{ID: session.ID, CreatedAt: session.CreatedAt})
}

// Delete drops a session with all its uploads
func (h *SessionHandler) Delete(c *gin.Context) {
	h.svc.DeleteSession(middleware.GetSessionID(c))
	h.NoContent(c)
}
