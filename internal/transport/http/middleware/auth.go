package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/senorian3/lumio-backend-sub001/internal/usecase"
)

const accessContextKey = "access_context"

// UnauthorizedResponse is the 401 body: a human message plus the field naming the
// first link of the guard chain that failed.
type UnauthorizedResponse struct {
	Message string `json:"message"`
	Field   string `json:"field"`
}

// RequireAuth validates the bearer token through the full guard chain and attaches
// the resulting access context to the request. The guard never mutates the session.
func RequireAuth(auth *usecase.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, UnauthorizedResponse{
				Message: "missing or malformed authorization header",
				Field:   usecase.FieldAccessToken,
			})
			return
		}

		access, err := auth.ValidateAccess(c.Request.Context(), token)
		if err != nil {
			if unauthorized, ok := usecase.AsUnauthorized(err); ok {
				c.AbortWithStatusJSON(http.StatusUnauthorized, UnauthorizedResponse{
					Message: unauthorized.Message,
					Field:   unauthorized.Field,
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
			return
		}

		c.Set(accessContextKey, *access)
		c.Next()
	}
}

// AccessFrom returns the access context attached by RequireAuth.
func AccessFrom(c *gin.Context) (usecase.AccessContext, bool) {
	value, exists := c.Get(accessContextKey)
	if !exists {
		return usecase.AccessContext{}, false
	}
	access, ok := value.(usecase.AccessContext)
	return access, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
