package apierrors

import (
	"github.com/gin-gonic/gin"
)

// APIError is the body of every error response: {"error": {...}}.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error writes the registered status and message for code.
func Error(c *gin.Context, code string) {
	ErrorWithMessage(c, code, Registry.Message(code))
}

// ErrorWithMessage writes the registered status for code with a custom message,
// e.g. validation details. The handler chain is aborted.
func ErrorWithMessage(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(Registry.HTTPStatus(code), gin.H{"error": APIError{Code: code, Message: message}})
}
