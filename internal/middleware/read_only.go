package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/goatkit/deskpilot/internal/apierrors"
)

// ReadOnly blocks every mutating request (anything but GET, HEAD and OPTIONS)
// when enabled, so the API can be exposed for browsing without letting anyone
// reply to or retag tickets.
func ReadOnly(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		apierrors.ErrorWithMessage(c, apierrors.CodeForbidden, "This server is running in read-only mode")
		c.Abort()
	}
}

// RequestLogger logs one line per request at debug level, or warn for 5xx.
func RequestLogger(logger hclog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"client", c.ClientIP(),
		}
		if status >= http.StatusInternalServerError {
			logger.Warn("request failed", args...)
			return
		}
		logger.Debug("request", args...)
	}
}
