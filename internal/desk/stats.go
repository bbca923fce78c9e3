package desk

import (
	"context"
	"sort"
	"strings"
	"time"
)

// Stats is the dashboard aggregate over the most recent tickets.
type Stats struct {
	Total       int            `json:"total"`
	ByStatus    map[string]int `json:"by_status"`
	ByPriority  map[string]int `json:"by_priority"`
	ByChannel   map[string]int `json:"by_channel"`
	Open        int            `json:"open"`
	GeneratedAt time.Time      `json:"generated_at"`
	Cached      bool           `json:"cached"`
}

// Statuses returns the status names sorted by descending count, then name.
func (s *Stats) Statuses() []string {
	names := make([]string, 0, len(s.ByStatus))
	for k := range s.ByStatus {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		if s.ByStatus[names[i]] != s.ByStatus[names[j]] {
			return s.ByStatus[names[i]] > s.ByStatus[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

// Stats computes counts over the latest MaxListLimit tickets and caches the
// result for a minute.
func (c *Client) Stats(ctx context.Context, force bool) (*Stats, error) {
	if !force {
		var cached Stats
		if c.cacheGet(ctx, "stats", cacheKeyStats, &cached) {
			cached.Cached = true
			return &cached, nil
		}
	}

	page, err := c.ListTickets(ctx, Filter{Limit: MaxListLimit, SortBy: "-createdTime", Force: force})
	if err != nil {
		return nil, err
	}
	st := Aggregate(page.Tickets)
	st.GeneratedAt = time.Now().UTC()
	c.cacheSet(ctx, cacheKeyStats, st, c.statsTTL)
	return st, nil
}

// Aggregate counts tickets by status, priority and channel. Tickets whose
// status type is not Closed (or whose status is not "Closed" when the type is
// absent) count as open.
func Aggregate(tickets []Ticket) *Stats {
	st := &Stats{
		Total:      len(tickets),
		ByStatus:   map[string]int{},
		ByPriority: map[string]int{},
		ByChannel:  map[string]int{},
	}
	for _, t := range tickets {
		st.ByStatus[orUnknown(t.Status)]++
		st.ByPriority[orUnknown(t.Priority)]++
		st.ByChannel[orUnknown(t.Channel)]++

		closed := strings.EqualFold(t.StatusType, "closed")
		if t.StatusType == "" {
			closed = strings.EqualFold(t.Status, "closed")
		}
		if !closed {
			st.Open++
		}
	}
	return st
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}
