package desk

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// SearchType selects how a query is matched against tickets.
type SearchType string

const (
	SearchAuto         SearchType = "auto"
	SearchEmail        SearchType = "email"
	SearchSubject      SearchType = "subject"
	SearchContent      SearchType = "content"
	SearchTicketNumber SearchType = "ticket_number"
)

// DefaultSearchLimit caps results when no limit is given.
const DefaultSearchLimit = 20

var (
	emailPattern        = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	ticketNumberPattern = regexp.MustCompile(`^#?\d+$`)
)

// ParseSearchType accepts the CLI/API spellings of a search type.
func ParseSearchType(s string) (SearchType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return SearchAuto, nil
	case "email":
		return SearchEmail, nil
	case "subject":
		return SearchSubject, nil
	case "content":
		return SearchContent, nil
	case "ticket_number", "ticket-number", "number", "ticket":
		return SearchTicketNumber, nil
	}
	return "", fmt.Errorf("desk: unknown search type %q", s)
}

// InferSearchType resolves Auto by the shape of the query.
func InferSearchType(query string) SearchType {
	q := strings.TrimSpace(query)
	switch {
	case emailPattern.MatchString(q):
		return SearchEmail
	case ticketNumberPattern.MatchString(q):
		return SearchTicketNumber
	default:
		return SearchContent
	}
}

// SearchOptions narrows a search.
type SearchOptions struct {
	Limit  int
	Status string
	Force  bool
}

// SearchResult holds the matching tickets and the resolved type.
type SearchResult struct {
	Query   string     `json:"query"`
	Type    SearchType `json:"type"`
	Tickets []Ticket   `json:"tickets"`
	Scanned int        `json:"scanned"`
	Cached  bool       `json:"cached"`
}

type searchCacheKey struct {
	Query  string     `json:"q"`
	Type   SearchType `json:"t"`
	Limit  int        `json:"l"`
	Status string     `json:"s,omitempty"`
}

// scanSize is how many recent tickets a search filters over.
func scanSize(limit int) int {
	n := limit * 4
	if n < 50 {
		n = 50
	}
	if n > MaxListLimit {
		n = MaxListLimit
	}
	return n
}

// Search filters recent tickets client-side; the backend has no general search
// endpoint. Results are cached for five minutes keyed by query, resolved type
// and options, so an Auto search shares its cache entry with the explicit type.
func (c *Client) Search(ctx context.Context, query string, st SearchType, opts SearchOptions) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("desk: search query is empty")
	}
	if st == "" || st == SearchAuto {
		st = InferSearchType(query)
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultSearchLimit
	}

	key := cacheKey(cachePrefixSearch, searchCacheKey{Query: query, Type: st, Limit: opts.Limit, Status: opts.Status})
	if !opts.Force {
		var cached SearchResult
		if c.cacheGet(ctx, "search", key, &cached) {
			cached.Cached = true
			return &cached, nil
		}
	}

	page, err := c.ListTickets(ctx, Filter{
		Status: opts.Status,
		Limit:  scanSize(opts.Limit),
		SortBy: "-createdTime",
		Force:  opts.Force,
	})
	if err != nil {
		return nil, err
	}

	res := &SearchResult{Query: query, Type: st, Tickets: []Ticket{}, Scanned: len(page.Tickets)}
	for _, t := range page.Tickets {
		if MatchTicket(t, query, st) {
			res.Tickets = append(res.Tickets, t)
			if len(res.Tickets) >= opts.Limit {
				break
			}
		}
	}
	c.cacheSet(ctx, key, res, c.listTTL)
	return res, nil
}

// MatchTicket reports whether t matches query under st. Auto is resolved first.
func MatchTicket(t Ticket, query string, st SearchType) bool {
	query = strings.TrimSpace(query)
	if st == "" || st == SearchAuto {
		st = InferSearchType(query)
	}
	q := strings.ToLower(query)

	switch st {
	case SearchEmail:
		if strings.EqualFold(t.Email, query) {
			return true
		}
		return t.Contact != nil && strings.EqualFold(t.Contact.Email, query)
	case SearchTicketNumber:
		return strings.TrimSpace(t.TicketNumber.String()) == strings.TrimPrefix(query, "#")
	case SearchSubject:
		return strings.Contains(strings.ToLower(t.Subject), q)
	case SearchContent:
		haystack := strings.ToLower(t.Subject + "\n" + t.Description + "\n" + t.CustomerEmail())
		return strings.Contains(haystack, q)
	}
	return false
}
