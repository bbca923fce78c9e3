package desk

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goatkit/deskpilot/internal/events"
)

// List limits accepted by the backend.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

func (f Filter) normalized() Filter {
	f.Status = strings.TrimSpace(f.Status)
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.From < 0 {
		f.From = 0
	}
	f.Force = false
	return f
}

func (f Filter) query() url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(f.Limit))
	q.Set("include", "contacts")
	if f.From > 0 {
		q.Set("from", strconv.Itoa(f.From))
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.SortBy != "" {
		q.Set("sortBy", f.SortBy)
	}
	return q
}

// ListTickets returns a page of tickets, served from the cache for up to five
// minutes unless f.Force is set.
func (c *Client) ListTickets(ctx context.Context, f Filter) (*TicketPage, error) {
	force := f.Force
	f = f.normalized()
	key := cacheKey(cachePrefixTickets, f)

	if !force {
		var page TicketPage
		if c.cacheGet(ctx, "tickets", key, &page) {
			page.Cached = true
			return &page, nil
		}
	}

	var env listEnvelope[Ticket]
	if err := c.do(ctx, call{
		op:      "list_tickets",
		method:  http.MethodGet,
		path:    "/tickets",
		query:   f.query(),
		timeout: TimeoutList,
		out:     &env,
	}); err != nil {
		return nil, err
	}

	page := &TicketPage{Tickets: env.Data, From: f.From, Limit: f.Limit}
	if page.Tickets == nil {
		page.Tickets = []Ticket{}
	}
	c.cacheSet(ctx, key, page, c.listTTL)
	return page, nil
}

// GetTicket fetches a single ticket. It is never cached.
func (c *Client) GetTicket(ctx context.Context, id string) (*Ticket, error) {
	var t Ticket
	if err := c.do(ctx, call{
		op:      "get_ticket",
		method:  http.MethodGet,
		path:    ticketPath(id),
		query:   url.Values{"include": {"contacts"}},
		timeout: TimeoutRead,
		out:     &t,
	}); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetThreads fetches the ticket's threads.
func (c *Client) GetThreads(ctx context.Context, id string) ([]Thread, error) {
	var env listEnvelope[Thread]
	if err := c.do(ctx, call{
		op:      "get_threads",
		method:  http.MethodGet,
		path:    ticketPath(id, "threads"),
		timeout: TimeoutRead,
		out:     &env,
	}); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// GetConversations fetches the ticket's conversations.
func (c *Client) GetConversations(ctx context.Context, id string) ([]Conversation, error) {
	var env listEnvelope[Conversation]
	if err := c.do(ctx, call{
		op:      "get_conversations",
		method:  http.MethodGet,
		path:    ticketPath(id, "conversations"),
		timeout: TimeoutRead,
		out:     &env,
	}); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// GetComments fetches the ticket's comments.
func (c *Client) GetComments(ctx context.Context, id string) ([]Comment, error) {
	var env listEnvelope[Comment]
	if err := c.do(ctx, call{
		op:      "get_comments",
		method:  http.MethodGet,
		path:    ticketPath(id, "comments"),
		timeout: TimeoutRead,
		out:     &env,
	}); err != nil {
		return nil, err
	}
	return env.Data, nil
}

func status200or201(s int) bool { return s == http.StatusOK || s == http.StatusCreated }

// Reply sends content to the customer (public) or as a private reply.
func (c *Client) Reply(ctx context.Context, id, content string, public bool) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("desk: reply content is empty")
	}
	err := c.do(ctx, call{
		op:     "reply",
		method: http.MethodPost,
		path:   ticketPath(id, "sendReply"),
		body: map[string]any{
			"channel":     "EMAIL",
			"content":     content,
			"contentType": "html",
			"isPrivate":   !public,
		},
		timeout: TimeoutWrite,
		ok:      status200or201,
	})
	if err != nil {
		return err
	}
	c.publish(events.TicketReplied, id, map[string]any{"public": public})
	return nil
}

// AddComment attaches a note to the ticket.
func (c *Client) AddComment(ctx context.Context, id, content string, public bool) error {
	if strings.TrimSpace(content) == "" {
		return errors.New("desk: comment content is empty")
	}
	return c.do(ctx, call{
		op:     "add_comment",
		method: http.MethodPost,
		path:   ticketPath(id, "comments"),
		body: map[string]any{
			"content":     content,
			"contentType": "html",
			"isPublic":    public,
		},
		timeout: TimeoutWrite,
		ok:      status200or201,
	})
}

// UpdateStatus patches the ticket status.
func (c *Client) UpdateStatus(ctx context.Context, id, status string) error {
	status = strings.TrimSpace(status)
	if status == "" {
		return errors.New("desk: status is empty")
	}
	if err := c.do(ctx, call{
		op:      "update_status",
		method:  http.MethodPatch,
		path:    ticketPath(id),
		body:    map[string]string{"status": status},
		timeout: TimeoutWrite,
	}); err != nil {
		return err
	}
	c.InvalidateCaches(ctx)
	c.publish(events.TicketStatusUpdated, id, map[string]any{"status": status})
	return nil
}

// NormalizeTags trims, drops blanks and removes case-insensitive duplicates,
// keeping first occurrence order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		k := strings.ToLower(t)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, t)
	}
	return out
}

// TagTicket adds, replaces or removes tags. Add and remove with no tags left
// after normalising are no-ops.
func (c *Client) TagTicket(ctx context.Context, id string, tags []string, mode TagMode) error {
	tags = NormalizeTags(tags)

	var method string
	switch mode {
	case TagAdd, "":
		method = http.MethodPost
		mode = TagAdd
	case TagReplace:
		method = http.MethodPut
	case TagRemove:
		method = http.MethodDelete
	default:
		return errors.New("desk: unknown tag mode " + string(mode))
	}
	if len(tags) == 0 && mode != TagReplace {
		return nil
	}

	if err := c.do(ctx, call{
		op:      "tag_ticket",
		method:  method,
		path:    ticketPath(id, "tags"),
		body:    map[string][]string{"tags": tags},
		timeout: TimeoutWrite,
	}); err != nil {
		return err
	}
	c.publish(events.TicketTagged, id, map[string]any{"mode": string(mode), "tags": strings.Join(tags, ",")})
	return nil
}

// TestConnection issues a one-ticket list to verify credentials and reachability.
func (c *Client) TestConnection(ctx context.Context) error {
	return c.do(ctx, call{
		op:      "test_connection",
		method:  http.MethodGet,
		path:    "/tickets",
		query:   url.Values{"limit": {"1"}},
		timeout: TimeoutTest,
		out:     &listEnvelope[Ticket]{},
	})
}
