package drafts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/goatkit/deskpilot/internal/assist"
	"github.com/goatkit/deskpilot/internal/conversation"
	"github.com/goatkit/deskpilot/internal/desk"
	"github.com/goatkit/deskpilot/internal/events"
	"github.com/goatkit/deskpilot/internal/logging"
	"github.com/goatkit/deskpilot/internal/metrics"
	"github.com/goatkit/deskpilot/internal/utils"
)

// ErrEmptyDraft is returned when there is nothing to send or save.
var ErrEmptyDraft = errors.New("drafts: draft content is empty")

// Desk is the part of the desk client the workflow uses.
type Desk interface {
	conversation.Fetcher
	GetTicket(ctx context.Context, id string) (*desk.Ticket, error)
	Reply(ctx context.Context, id, content string, public bool) error
}

// Service generates, edits and sends drafts.
type Service struct {
	store     *Store
	desk      Desk
	generator assist.Generator
	hub       events.Hub
	metrics   *metrics.Collectors
	logger    hclog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

func WithHub(h events.Hub) ServiceOption {
	return func(s *Service) { s.hub = h }
}

func WithMetrics(m *metrics.Collectors) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l hclog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService wires the workflow. generator may be nil when no AI backend is
// configured; Generate then fails with assist.ErrNoProviderConfigured.
func NewService(store *Store, d Desk, generator assist.Generator, opts ...ServiceOption) *Service {
	s := &Service{store: store, desk: d, generator: generator}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = events.OrGlobal(s.hub)
	s.logger = logging.OrDiscard(s.logger)
	return s
}

// Store exposes the underlying draft store.
func (s *Service) Store() *Store { return s.store }

// Generate drafts a reply for ticketID and saves it, replacing any earlier
// draft. Prompt-only results are returned without being saved.
func (s *Service) Generate(ctx context.Context, ticketID string, opts assist.Options) (*Draft, error) {
	if s.generator == nil {
		return nil, assist.ErrNoProviderConfigured
	}
	ticket, err := s.desk.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	messages, err := conversation.Fetch(ctx, s.desk, ticketID, s.logger)
	if err != nil {
		return nil, err
	}

	res, err := s.generator.Generate(ctx, assist.Request{Ticket: *ticket, Messages: messages, Options: opts})
	if err != nil {
		s.logger.Error("draft generation failed", "ticket_id", ticketID, "generator", s.generator.Name(), "error", err)
		return nil, err
	}

	d := &Draft{
		TicketID:     ticketID,
		Content:      res.Text,
		Status:       StatusDraft,
		Provider:     res.Provider,
		ResponseType: string(opts.ResponseType),
		Tone:         string(opts.Tone),
		PromptOnly:   res.PromptOnly,
	}
	if d.ResponseType == "" {
		d.ResponseType = string(assist.ResponseReply)
	}
	if d.Tone == "" {
		d.Tone = string(assist.ToneProfessional)
	}
	if res.PromptOnly {
		return d, nil
	}

	if err := s.store.Save(ctx, d); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.DraftsGenerated.WithLabelValues(res.Provider).Inc()
	}
	s.logger.Info("draft saved", "ticket_id", ticketID, "provider", res.Provider,
		"input_tokens", res.Usage.InputTokens, "output_tokens", res.Usage.OutputTokens)
	s.hub.Publish(events.New(events.DraftSaved, map[string]any{
		"ticket_id": ticketID,
		"provider":  res.Provider,
	}))
	return d, nil
}

// Edit replaces the draft body, keeping existing metadata. A ticket without a
// draft gets a new one attributed to "manual".
func (s *Service) Edit(ctx context.Context, ticketID, content string) (*Draft, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyDraft
	}
	d, err := s.store.Load(ctx, ticketID)
	switch {
	case errors.Is(err, ErrNotFound):
		d = &Draft{TicketID: ticketID, Provider: "manual"}
	case err != nil:
		return nil, err
	}
	d.Content = content
	d.Status = StatusDraft
	if err := s.store.Save(ctx, d); err != nil {
		return nil, err
	}
	s.hub.Publish(events.New(events.DraftSaved, map[string]any{
		"ticket_id": ticketID,
		"provider":  d.Provider,
		"edited":    true,
	}))
	return d, nil
}

// Send posts the draft as a public reply and deletes it. A non-empty override
// is sent instead of the stored body; with an override no stored draft is
// required. On a failed reply the draft is kept.
func (s *Service) Send(ctx context.Context, ticketID, override string) (*Draft, error) {
	d, err := s.store.Load(ctx, ticketID)
	switch {
	case errors.Is(err, ErrNotFound) && strings.TrimSpace(override) != "":
		d = &Draft{TicketID: ticketID, Provider: "manual"}
	case err != nil:
		return nil, err
	}
	if strings.TrimSpace(override) != "" {
		d.Content = override
	}
	if strings.TrimSpace(d.Content) == "" {
		return nil, ErrEmptyDraft
	}

	if err := s.desk.Reply(ctx, ticketID, utils.ReplyHTML(d.Content), true); err != nil {
		return nil, fmt.Errorf("drafts: send %s: %w", ticketID, err)
	}
	if err := s.store.Clear(ctx, ticketID); err != nil {
		// Reply already posted.
		s.logger.Warn("sent draft could not be cleared", "ticket_id", ticketID, "error", err)
	}

	d.Status = StatusSent
	if s.metrics != nil {
		s.metrics.DraftsSent.Inc()
	}
	s.logger.Info("draft sent", "ticket_id", ticketID)
	s.hub.Publish(events.New(events.DraftSent, map[string]any{"ticket_id": ticketID}))
	return d, nil
}

// Clear discards the draft for ticketID.
func (s *Service) Clear(ctx context.Context, ticketID string) error {
	if err := s.store.Clear(ctx, ticketID); err != nil {
		return err
	}
	s.hub.Publish(events.New(events.DraftCleared, map[string]any{"ticket_id": ticketID}))
	return nil
}

// ClearAll discards every draft.
func (s *Service) ClearAll(ctx context.Context) (int, error) {
	n, err := s.store.ClearAll(ctx)
	if err != nil {
		return n, err
	}
	s.hub.Publish(events.New(events.DraftCleared, map[string]any{"count": n}))
	return n, nil
}
