package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/goatkit/deskpilot/internal/classify"
	"github.com/goatkit/deskpilot/internal/conversation"
	"github.com/goatkit/deskpilot/internal/desk"
	"github.com/goatkit/deskpilot/internal/utils"
)

// queryInt parses an optional integer query parameter.
func queryInt(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		invalid(c, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func queryBool(c *gin.Context, name string) bool {
	b, _ := strconv.ParseBool(c.Query(name))
	return b
}

func (s *Server) handleListTickets(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	from, ok := queryInt(c, "from")
	if !ok {
		return
	}
	page, err := s.desk.ListTickets(c.Request.Context(), desk.Filter{
		Status: c.Query("status"),
		Limit:  limit,
		From:   from,
		SortBy: c.Query("sort"),
		Force:  queryBool(c, "force"),
	})
	if err != nil {
		s.fail(c, "list_tickets", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) handleGetTicket(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	t, err := s.desk.GetTicket(c.Request.Context(), id)
	if err != nil {
		s.fail(c, "get_ticket", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleConversation(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	msgs, err := conversation.Fetch(c.Request.Context(), s.desk, id, s.logger)
	if err != nil {
		s.fail(c, "conversation", err)
		return
	}
	if msgs == nil {
		msgs = []conversation.Message{}
	}
	c.JSON(http.StatusOK, gin.H{
		"ticket_id": id,
		"messages":  msgs,
		"stats":     conversation.Summarize(msgs),
	})
}

func (s *Server) handleClassification(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	t, err := s.desk.GetTicket(ctx, id)
	if err != nil {
		s.fail(c, "classify", err)
		return
	}
	msgs, err := conversation.Fetch(ctx, s.desk, id, s.logger)
	if err != nil {
		s.fail(c, "classify", err)
		return
	}
	c.JSON(http.StatusOK, classify.Analyze(*t, msgs, s.templates))
}

type replyRequest struct {
	Content string `json:"content"`
	// Public defaults to true; false posts an internal comment instead.
	Public *bool `json:"public"`
}

func (s *Server) handleReply(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, err.Error())
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		invalid(c, "content is required")
		return
	}

	html := utils.ReplyHTML(req.Content)
	public := req.Public == nil || *req.Public
	var err error
	if public {
		err = s.desk.Reply(c.Request.Context(), id, html, true)
	} else {
		err = s.desk.AddComment(c.Request.Context(), id, html, false)
	}
	if err != nil {
		s.fail(c, "reply", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket_id": id, "sent": true, "public": public})
}

func (s *Server) handleUpdateStatus(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, err.Error())
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		invalid(c, "status is required")
		return
	}
	if err := s.desk.UpdateStatus(c.Request.Context(), id, strings.TrimSpace(req.Status)); err != nil {
		s.fail(c, "update_status", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket_id": id, "status": strings.TrimSpace(req.Status)})
}

func (s *Server) handleTags(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	var req struct {
		Tags []string `json:"tags"`
		Mode string   `json:"mode"`
		// Auto derives the tags from the classifier when Tags is empty.
		Auto bool `json:"auto"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, err.Error())
		return
	}
	mode, ok := desk.ParseTagMode(req.Mode)
	if !ok {
		invalid(c, "mode must be add, replace or remove")
		return
	}

	ctx := c.Request.Context()
	tags := req.Tags
	if len(tags) == 0 && req.Auto {
		t, err := s.desk.GetTicket(ctx, id)
		if err != nil {
			s.fail(c, "tags", err)
			return
		}
		msgs, err := conversation.Fetch(ctx, s.desk, id, s.logger)
		if err != nil {
			s.fail(c, "tags", err)
			return
		}
		tags = classify.ClassifyTicket(t.Subject, t.Description, msgs).Tags
	}
	tags = desk.NormalizeTags(tags)
	if len(tags) == 0 && mode != desk.TagReplace {
		c.JSON(http.StatusOK, gin.H{"ticket_id": id, "mode": mode, "tags": []string{}})
		return
	}

	if err := s.desk.TagTicket(ctx, id, tags, mode); err != nil {
		s.fail(c, "tags", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ticket_id": id, "mode": mode, "tags": tags})
}

func (s *Server) handleSearch(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		invalid(c, "q is required")
		return
	}
	st, err := desk.ParseSearchType(c.Query("type"))
	if err != nil {
		invalid(c, err.Error())
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	res, err := s.desk.Search(c.Request.Context(), q, st, desk.SearchOptions{
		Limit:  limit,
		Status: c.Query("status"),
		Force:  queryBool(c, "force"),
	})
	if err != nil {
		s.fail(c, "search", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleStats(c *gin.Context) {
	st, err := s.desk.Stats(c.Request.Context(), queryBool(c, "force"))
	if err != nil {
		s.fail(c, "stats", err)
		return
	}
	c.JSON(http.StatusOK, st)
}
