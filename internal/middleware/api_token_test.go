package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/goatkit/deskpilot/internal/logging"
)

func tokenRouter(expected string) *gin.Engine {
	router := gin.New()
	router.Use(APITokenAuth(expected))
	router.GET("/api", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return router
}

func TestAPITokenAuth(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		header   string
		value    string
		status   int
		code     string
	}{
		{"disabled", "", "", "", http.StatusNoContent, ""},
		{"missing", "s3cret", "", "", http.StatusUnauthorized, "core:unauthorized"},
		{"wrong", "s3cret", "Authorization", "Bearer nope", http.StatusUnauthorized, "core:invalid_token"},
		{"bearer", "s3cret", "Authorization", "Bearer s3cret", http.StatusNoContent, ""},
		{"lowercase scheme", "s3cret", "Authorization", "bearer s3cret", http.StatusNoContent, ""},
		{"header", "s3cret", "X-API-Token", "s3cret", http.StatusNoContent, ""},
		{"basic scheme", "s3cret", "Authorization", "Basic s3cret", http.StatusUnauthorized, "core:unauthorized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			tokenRouter(tt.expected).ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.code != "" {
				assert.Contains(t, w.Body.String(), tt.code)
			}
		})
	}
}

func TestReadOnly(t *testing.T) {
	router := gin.New()
	router.Use(RequestLogger(logging.Discard()), ReadOnly(true))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "read-only")

	open := gin.New()
	open.Use(ReadOnly(false))
	open.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	w = httptest.NewRecorder()
	open.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
