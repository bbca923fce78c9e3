package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/goatkit/deskpilot/internal/apierrors"
)

// handleAuthorize issues a fresh state and redirects to the consent page, or
// returns the URL as JSON with ?format=json.
func (s *Server) handleAuthorize(c *gin.Context) {
	if s.auth == nil {
		apierrors.Error(c, apierrors.CodeOAuthMissingCredentials)
		return
	}
	state, err := s.auth.NewState(c.Request.Context())
	if err != nil {
		s.fail(c, "oauth_state", err)
		return
	}
	url := s.auth.AuthCodeURL(state)
	if c.Query("format") == "json" {
		c.JSON(http.StatusOK, gin.H{"url": url, "state": state})
		return
	}
	c.Redirect(http.StatusFound, url)
}

func (s *Server) handleCallback(c *gin.Context) {
	if s.auth == nil {
		apierrors.Error(c, apierrors.CodeOAuthMissingCredentials)
		return
	}
	ctx := c.Request.Context()
	if err := s.auth.ConsumeState(ctx, c.Query("state")); err != nil {
		s.fail(c, "oauth_state", err)
		return
	}
	if e := c.Query("error"); e != "" {
		apierrors.ErrorWithMessage(c, apierrors.CodeOAuthRejected, "Authorization denied: "+e)
		return
	}
	code := c.Query("code")
	if code == "" {
		invalid(c, "code is required")
		return
	}
	if err := s.auth.ExchangeCode(ctx, code); err != nil {
		s.fail(c, "oauth_exchange", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": true, "token": s.auth.Status(ctx)})
}

func (s *Server) handleRateLimit(c *gin.Context) {
	out := gin.H{}
	if s.rate != nil {
		out["rate_limit"] = s.rate.Snapshot(c.Request.Context())
	}
	if s.auth != nil {
		out["token"] = s.auth.Status(c.Request.Context())
	}
	c.JSON(http.StatusOK, out)
}

// handleErrorCodes lists the registered error codes, optionally for one
// namespace (?namespace=desk).
func (s *Server) handleErrorCodes(c *gin.Context) {
	if ns := c.Query("namespace"); ns != "" {
		codes := apierrors.Registry.ByNamespace(ns)
		if codes == nil {
			codes = []apierrors.ErrorCode{}
		}
		c.JSON(http.StatusOK, gin.H{"codes": codes})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"namespaces": apierrors.Registry.Namespaces(),
		"codes":      apierrors.Registry.All(),
	})
}
