package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/senorian3/lumio-backend-sub001/internal/transport/http/middleware"
	"github.com/senorian3/lumio-backend-sub001/internal/usecase"
)

// SessionHandler exposes session listing and device revocation. Every route
// requires the auth guard; the group is expected to carry it.
type SessionHandler struct {
	sessions *usecase.SessionService
}

// NewSessionHandler constructs SessionHandler.
func NewSessionHandler(sessions *usecase.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// RegisterRoutes binds session routes onto an already guarded group.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.list)
	r.DELETE("/:id", h.revoke)
}

func (h *SessionHandler) list(c *gin.Context) {
	access, ok := middleware.AccessFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "unauthorized", Field: usecase.FieldAccessToken})
		return
	}

	sessions, err := h.sessions.List(c.Request.Context(), access.UserID)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	out := make([]SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, SessionResponse{
			ID:         session.ID,
			DeviceID:   session.DeviceID,
			DeviceName: session.DeviceName,
			IP:         session.IP,
			CreatedAt:  session.CreatedAt,
			ExpiresAt:  session.ExpiresAt,
			Current:    session.ID == access.SessionID,
		})
	}

	c.JSON(http.StatusOK, out)
}

func (h *SessionHandler) revoke(c *gin.Context) {
	access, ok := middleware.AccessFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "unauthorized", Field: usecase.FieldAccessToken})
		return
	}

	sessionID := c.Param("id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "session id is required"})
		return
	}

	if err := h.sessions.RevokeDevice(c.Request.Context(), access, sessionID); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrForbidden, Status: http.StatusForbidden, Message: "cannot revoke the current session"},
			{Err: usecase.ErrSessionNotFound, Status: http.StatusNotFound, Message: "session not found"},
		}, http.StatusInternalServerError, "failed to revoke session")
		return
	}

	c.Status(http.StatusNoContent)
}
