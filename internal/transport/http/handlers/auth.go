package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/senorian3/lumio-backend-sub001/internal/transport/http/middleware"
	"github.com/senorian3/lumio-backend-sub001/internal/usecase"
)

const refreshCookieName = "refresh_token"

// AuthHandler exposes registration, login and token lifecycle endpoints.
type AuthHandler struct {
	auth     *usecase.AuthService
	sessions *usecase.SessionService
	secure   bool
}

// NewAuthHandler constructs AuthHandler. secure controls the refresh cookie's
// Secure flag and should be true outside development.
func NewAuthHandler(auth *usecase.AuthService, sessions *usecase.SessionService, secure bool) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions, secure: secure}
}

// RegisterRoutes binds authentication routes.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/register", h.register)
	r.POST("/login", h.login)
	r.POST("/refresh", h.refresh)

	guarded := middleware.RequireAuth(h.auth)
	r.POST("/logout", guarded, h.logout)
	r.POST("/logout/others", guarded, h.logoutOthers)
	r.POST("/logout/all", guarded, h.logoutAll)
}

func (h *AuthHandler) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserAlreadyExists, Status: http.StatusConflict, Message: "user already exists"},
		}, http.StatusInternalServerError, "registration failed")
		return
	}

	c.JSON(http.StatusCreated, toUserResponse(*user))
}

func (h *AuthHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	}

	pair, err := h.auth.Login(c.Request.Context(), req.Identifier, req.Password, usecase.DeviceInfo{
		DeviceID:   req.DeviceID,
		DeviceName: req.DeviceName,
		IP:         c.ClientIP(),
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
		}, http.StatusInternalServerError, "login failed")
		return
	}

	h.setRefreshCookie(c, pair)
	c.JSON(http.StatusOK, TokenResponse{AccessToken: pair.AccessToken, ExpiresAt: pair.ExpiresAt})
}

// refresh exchanges the cookie-carried refresh token for a fresh pair.
func (h *AuthHandler) refresh(c *gin.Context) {
	refreshToken, err := c.Cookie(refreshCookieName)
	if err != nil || refreshToken == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "missing refresh token", Field: usecase.FieldSession})
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		h.clearRefreshCookie(c)
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrExpiredRefreshToken, Status: http.StatusUnauthorized, Message: "refresh token expired"},
			{Err: usecase.ErrInvalidRefreshToken, Status: http.StatusUnauthorized, Message: "invalid refresh token"},
		}, http.StatusInternalServerError, "refresh failed")
		return
	}

	h.setRefreshCookie(c, pair)
	c.JSON(http.StatusOK, TokenResponse{AccessToken: pair.AccessToken, ExpiresAt: pair.ExpiresAt})
}

func (h *AuthHandler) logout(c *gin.Context) {
	access, ok := middleware.AccessFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "unauthorized", Field: usecase.FieldAccessToken})
		return
	}

	if err := h.sessions.Logout(c.Request.Context(), access); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrSessionNotFound, Status: http.StatusNotFound, Message: "session not found"},
		}, http.StatusInternalServerError, "logout failed")
		return
	}

	h.clearRefreshCookie(c)
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) logoutOthers(c *gin.Context) {
	access, ok := middleware.AccessFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "unauthorized", Field: usecase.FieldAccessToken})
		return
	}

	revoked, err := h.sessions.RevokeOthers(c.Request.Context(), access)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "logout failed")
		return
	}

	c.JSON(http.StatusOK, RevokedResponse{Revoked: revoked})
}

// logoutAll hard-deletes every session, the current device included. The caller
// must log in again afterwards.
func (h *AuthHandler) logoutAll(c *gin.Context) {
	access, ok := middleware.AccessFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "unauthorized", Field: usecase.FieldAccessToken})
		return
	}

	revoked, err := h.sessions.RevokeAll(c.Request.Context(), access.UserID)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "logout failed")
		return
	}

	h.clearRefreshCookie(c)
	c.JSON(http.StatusOK, RevokedResponse{Revoked: revoked})
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, pair usecase.TokenPair) {
	maxAge := int(time.Until(pair.ExpiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, pair.RefreshToken, maxAge, "/api/v1/auth", "", h.secure, true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, "", -1, "/api/v1/auth", "", h.secure, true)
}
