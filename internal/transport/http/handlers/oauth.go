package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/senorian3/lumio-backend-sub001/internal/usecase"
)

// OAuthLoginRequest is the provider-verified profile posted by the gateway after
// it completes the provider code exchange.
type OAuthLoginRequest struct {
	Provider   string `json:"provider" binding:"required"`
	ExternalID string `json:"externalId" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Username   string `json:"username"`
	DeviceID   string `json:"deviceId" binding:"required"`
	DeviceName string `json:"deviceName"`
}

// OAuthHandler exposes the internal OAuth login endpoint. The route sits behind
// the internal key middleware; only the gateway may call it.
type OAuthHandler struct {
	oauth  *usecase.OAuthService
	secure bool
}

// NewOAuthHandler constructs OAuthHandler.
func NewOAuthHandler(oauth *usecase.OAuthService, secure bool) *OAuthHandler {
	return &OAuthHandler{oauth: oauth, secure: secure}
}

// RegisterRoutes binds OAuth routes.
func (h *OAuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/login", h.login)
}

func (h *OAuthHandler) login(c *gin.Context) {
	var req OAuthLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	}

	pair, err := h.oauth.Login(c.Request.Context(), usecase.OAuthProfile{
		Provider:   req.Provider,
		ExternalID: req.ExternalID,
		Email:      req.Email,
		Username:   req.Username,
	}, usecase.DeviceInfo{
		DeviceID:   req.DeviceID,
		DeviceName: req.DeviceName,
		IP:         c.ClientIP(),
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrForbidden, Status: http.StatusForbidden, Message: "identity linked to another account"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "linked user not found"},
		}, http.StatusInternalServerError, "oauth login failed")
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, pair.RefreshToken, int(time.Until(pair.ExpiresAt).Seconds()), "/api/v1/auth", "", h.secure, true)
	c.JSON(http.StatusOK, TokenResponse{AccessToken: pair.AccessToken, ExpiresAt: pair.ExpiresAt})
}
