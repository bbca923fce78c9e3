// Package middleware provides the gin middleware in front of the admin API.
package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/goatkit/deskpilot/internal/apierrors"
)

// APITokenAuth requires "Authorization: Bearer <token>" matching expected.
// An empty expected token disables the check.
func APITokenAuth(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expected == "" {
			c.Next()
			return
		}

		token := extractToken(c)
		if token == "" {
			apierrors.Error(c, apierrors.CodeUnauthorized)
			c.Abort()
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			apierrors.Error(c, apierrors.CodeInvalidToken)
			c.Abort()
			return
		}

		c.Set("api_token_ok", true)
		c.Next()
	}
}

// extractToken extracts the token from the Authorization header or the
// X-API-Token header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Fields(authHeader)
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
	}
	return strings.TrimSpace(c.GetHeader("X-API-Token"))
}
