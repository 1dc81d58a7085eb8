package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/senorian3/lumio-backend-sub001/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// RespondWithMappedError resolves the provided error against known cases or falls
// back to a generic response. Field-tagged unauthorized errors short-circuit to a
// 401 carrying their field.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	if unauthorized, ok := usecase.AsUnauthorized(err); ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: unauthorized.Message,
			Field:   unauthorized.Field,
		})
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, ErrorResponse{Message: cs.Message})
			return
		}
	}

	c.JSON(fallbackStatus, ErrorResponse{Message: fallbackMessage})
}
