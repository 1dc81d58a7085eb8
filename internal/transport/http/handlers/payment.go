package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/senorian3/lumio-backend-sub001/internal/transport/http/middleware"
	"github.com/senorian3/lumio-backend-sub001/internal/usecase"
)

// Stripe caps webhook payloads well below this; anything larger is hostile.
const maxWebhookBody = 1 << 16

// PaymentHandler exposes checkout creation and the provider webhook endpoint.
type PaymentHandler struct {
	payments *usecase.PaymentService
	logger   *zap.Logger
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(payments *usecase.PaymentService, logger *zap.Logger) *PaymentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentHandler{payments: payments, logger: logger}
}

// RegisterRoutes binds the guarded checkout route.
func (h *PaymentHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/checkout", h.checkout)
}

// RegisterWebhook binds the unauthenticated provider webhook route.
func (h *PaymentHandler) RegisterWebhook(r *gin.RouterGroup) {
	r.POST("/webhook", h.webhook)
}

func (h *PaymentHandler) checkout(c *gin.Context) {
	access, ok := middleware.AccessFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "unauthorized", Field: usecase.FieldAccessToken})
		return
	}

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	}

	url, paymentID, err := h.payments.CreateCheckout(c.Request.Context(), access.UserID, req.Amount, req.Currency, req.SubscriptionType)
	if err != nil {
		RespondWithMappedError(c, err, nil, http.StatusInternalServerError, "failed to create checkout session")
		return
	}

	c.JSON(http.StatusCreated, CheckoutResponse{PaymentID: paymentID, URL: url})
}

// webhook receives provider events. The raw body is required for signature
// verification, so no binding happens before the usecase sees the bytes.
func (h *PaymentHandler) webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "failed to read body"})
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "missing signature"})
		return
	}

	if err := h.payments.HandleWebhook(c.Request.Context(), body, signature); err != nil {
		if errors.Is(err, usecase.ErrPaymentNotFound) {
			// Non-2xx makes the provider retry; the row may appear once the
			// checkout transaction lands.
			c.JSON(http.StatusNotFound, ErrorResponse{Message: "payment not found"})
			return
		}
		h.logger.Error("webhook processing failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "webhook rejected"})
		return
	}

	c.Status(http.StatusOK)
}
