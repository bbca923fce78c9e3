package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/goatkit/deskpilot/internal/apierrors"
	"github.com/goatkit/deskpilot/internal/assist"
	"github.com/goatkit/deskpilot/internal/drafts"
)

func (s *Server) handleGetDraft(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	d, err := s.drafts.Store().Load(c.Request.Context(), id)
	if err != nil {
		s.fail(c, "get_draft", err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) handlePutDraft(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, err.Error())
		return
	}
	d, err := s.drafts.Edit(c.Request.Context(), id, req.Content)
	if err != nil {
		s.fail(c, "edit_draft", err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) handleDeleteDraft(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	if err := s.drafts.Clear(c.Request.Context(), id); err != nil {
		s.fail(c, "clear_draft", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGenerateDraft(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	var req struct {
		ResponseType string `json:"response_type"`
		Tone         string `json:"tone"`
		Instructions string `json:"instructions"`
	}
	// An empty body means defaults.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			invalid(c, err.Error())
			return
		}
	}
	rt, err := assist.ParseResponseType(req.ResponseType)
	if err != nil {
		invalid(c, err.Error())
		return
	}
	tone, err := assist.ParseTone(req.Tone)
	if err != nil {
		invalid(c, err.Error())
		return
	}

	d, err := s.drafts.Generate(c.Request.Context(), id, assist.Options{
		ResponseType: rt,
		Tone:         tone,
		Instructions: req.Instructions,
	})
	if err != nil {
		s.fail(c, "generate_draft", err)
		return
	}
	status := http.StatusCreated
	if d.PromptOnly {
		status = http.StatusOK
	}
	c.JSON(status, d)
}

func (s *Server) handleSendDraft(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			invalid(c, err.Error())
			return
		}
	}
	d, err := s.drafts.Send(c.Request.Context(), id, req.Content)
	if err != nil {
		if errors.Is(err, drafts.ErrNotFound) {
			apierrors.ErrorWithMessage(c, apierrors.CodeDraftNotFound, "No draft to send; generate one or pass content")
			return
		}
		s.fail(c, "send_draft", err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) handleListDrafts(c *gin.Context) {
	list, err := s.drafts.Store().List(c.Request.Context())
	if err != nil {
		s.fail(c, "list_drafts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"drafts": list, "count": len(list)})
}
