package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const internalKeyHeader = "X-Internal-Api-Key"

// RequireInternalKey guards service-to-service endpoints with a shared secret header.
func RequireInternalKey(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "internal api disabled"})
			return
		}

		provided := c.GetHeader(internalKeyHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "invalid internal api key"})
			return
		}

		c.Next()
	}
}
