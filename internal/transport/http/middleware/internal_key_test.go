package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func internalKeyRouter(apiKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/internal", RequireInternalKey(apiKey), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestRequireInternalKey(t *testing.T) {
	router := internalKeyRouter("super-secret")

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"valid key", "super-secret", http.StatusNoContent},
		{"wrong key", "guess", http.StatusForbidden},
		{"missing header", "", http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/internal", nil)
			if tc.header != "" {
				req.Header.Set("X-Internal-Api-Key", tc.header)
			}

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestRequireInternalKeyDisabledWhenUnconfigured(t *testing.T) {
	router := internalKeyRouter("")

	req := httptest.NewRequest(http.MethodGet, "/internal", nil)
	req.Header.Set("X-Internal-Api-Key", "anything")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 when no key is configured, got %d", rec.Code)
	}
}
