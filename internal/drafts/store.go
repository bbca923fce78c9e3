// Package drafts keeps at most one pending reply draft per ticket and runs the
// generate, edit and send workflow around it.
package drafts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goatkit/deskpilot/internal/kvstore"
)

// DefaultTTL is how long an unsent draft survives.
const DefaultTTL = 7 * 24 * time.Hour

const (
	contentPrefix = "draft_"
	metaPrefix    = "draft_meta_"
)

// ErrNotFound is returned when a ticket has no draft.
var ErrNotFound = errors.New("drafts: no draft for ticket")

// Status of a draft.
const (
	StatusDraft = "draft"
	StatusSent  = "sent"
)

// Draft is a pending reply.
type Draft struct {
	TicketID     string    `json:"ticket_id"`
	Content      string    `json:"content"`
	GeneratedAt  time.Time `json:"generated_at"`
	Status       string    `json:"status"`
	Provider     string    `json:"provider"`
	ResponseType string    `json:"response_type"`
	Tone         string    `json:"tone"`
	// PromptOnly drafts hold a copy/paste prompt and are never stored.
	PromptOnly bool `json:"prompt_only,omitempty"`
}

type meta struct {
	TicketID     string    `json:"ticket_id"`
	GeneratedAt  time.Time `json:"generated_at"`
	Status       string    `json:"status"`
	Provider     string    `json:"provider"`
	ResponseType string    `json:"response_type"`
	Tone         string    `json:"tone"`
}

// Store persists drafts in the key-value store: the body under draft_<id> and
// the metadata under draft_meta_<id>.
type Store struct {
	kv  kvstore.Store
	ttl time.Duration
	now func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithTTL overrides DefaultTTL.
func WithTTL(d time.Duration) StoreOption {
	return func(s *Store) { s.ttl = d }
}

// WithClock sets the time source used to stamp drafts.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

func NewStore(kv kvstore.Store, opts ...StoreOption) *Store {
	s := &Store{kv: kv, ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func contentKey(id string) string { return contentPrefix + id }
func metaKey(id string) string    { return metaPrefix + id }

// Save writes d, replacing any existing draft for the ticket. A zero
// GeneratedAt is stamped with the current time.
func (s *Store) Save(ctx context.Context, d *Draft) error {
	if strings.TrimSpace(d.TicketID) == "" {
		return errors.New("drafts: ticket id is required")
	}
	if d.GeneratedAt.IsZero() {
		d.GeneratedAt = s.now().UTC()
	}
	if d.Status == "" {
		d.Status = StatusDraft
	}
	if err := s.kv.Set(ctx, contentKey(d.TicketID), []byte(d.Content), s.ttl); err != nil {
		return fmt.Errorf("drafts: save %s: %w", d.TicketID, err)
	}
	m := meta{
		TicketID:     d.TicketID,
		GeneratedAt:  d.GeneratedAt,
		Status:       d.Status,
		Provider:     d.Provider,
		ResponseType: d.ResponseType,
		Tone:         d.Tone,
	}
	if err := kvstore.SetJSON(ctx, s.kv, metaKey(d.TicketID), m, s.ttl); err != nil {
		return fmt.Errorf("drafts: save %s: %w", d.TicketID, err)
	}
	return nil
}

// Load returns the draft for ticketID or ErrNotFound.
func (s *Store) Load(ctx context.Context, ticketID string) (*Draft, error) {
	content, err := s.kv.Get(ctx, contentKey(ticketID))
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("drafts: load %s: %w", ticketID, err)
	}

	d := &Draft{TicketID: ticketID, Content: string(content), Status: StatusDraft}
	var m meta
	switch err := kvstore.GetJSON(ctx, s.kv, metaKey(ticketID), &m); {
	case err == nil:
		d.GeneratedAt = m.GeneratedAt
		d.Provider = m.Provider
		d.ResponseType = m.ResponseType
		d.Tone = m.Tone
		if m.Status != "" {
			d.Status = m.Status
		}
	case !errors.Is(err, kvstore.ErrNotFound):
		return nil, fmt.Errorf("drafts: load %s: %w", ticketID, err)
	}
	return d, nil
}

// Clear deletes the draft for ticketID. Clearing a missing draft is not an error.
func (s *Store) Clear(ctx context.Context, ticketID string) error {
	if err := s.kv.Delete(ctx, contentKey(ticketID)); err != nil {
		return fmt.Errorf("drafts: clear %s: %w", ticketID, err)
	}
	if err := s.kv.Delete(ctx, metaKey(ticketID)); err != nil {
		return fmt.Errorf("drafts: clear %s: %w", ticketID, err)
	}
	return nil
}

// List returns every live draft, newest first.
func (s *Store) List(ctx context.Context) ([]Draft, error) {
	keys, err := s.kv.Keys(ctx, metaPrefix)
	if err != nil {
		return nil, fmt.Errorf("drafts: list: %w", err)
	}
	out := make([]Draft, 0, len(keys))
	for _, k := range keys {
		d, err := s.Load(ctx, strings.TrimPrefix(k, metaPrefix))
		if errors.Is(err, ErrNotFound) {
			continue // body expired first
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].GeneratedAt.Equal(out[j].GeneratedAt) {
			return out[i].GeneratedAt.After(out[j].GeneratedAt)
		}
		return out[i].TicketID < out[j].TicketID
	})
	return out, nil
}

// ClearAll deletes every draft and returns how many tickets had one.
func (s *Store) ClearAll(ctx context.Context) (int, error) {
	keys, err := s.kv.Keys(ctx, contentPrefix)
	if err != nil {
		return 0, fmt.Errorf("drafts: clear all: %w", err)
	}
	n := 0
	for _, k := range keys {
		if !strings.HasPrefix(k, metaPrefix) {
			n++
		}
		if err := s.kv.Delete(ctx, k); err != nil {
			return n, fmt.Errorf("drafts: clear all: %w", err)
		}
	}
	return n, nil
}
