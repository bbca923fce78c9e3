package conversation

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/goatkit/deskpilot/internal/desk"
	"github.com/goatkit/deskpilot/internal/logging"
)

// Fetcher is the part of the desk client the timeline needs.
type Fetcher interface {
	GetThreads(ctx context.Context, id string) ([]desk.Thread, error)
	GetConversations(ctx context.Context, id string) ([]desk.Conversation, error)
	GetComments(ctx context.Context, id string) ([]desk.Comment, error)
}

// Fetch loads a ticket's timeline. Conversations are only requested when
// threads come back empty or fail; if both fail the threads error is returned.
// A failed comments fetch is logged and treated as no comments.
func Fetch(ctx context.Context, f Fetcher, ticketID string, logger hclog.Logger) ([]Message, error) {
	logger = logging.OrDiscard(logger)

	threads, threadErr := f.GetThreads(ctx, ticketID)
	if threadErr != nil {
		logger.Warn("threads unavailable, falling back to conversations", "ticket_id", ticketID, "error", threadErr)
	}

	var conversations []desk.Conversation
	if len(threads) == 0 {
		var convErr error
		conversations, convErr = f.GetConversations(ctx, ticketID)
		if convErr != nil {
			if threadErr != nil {
				return nil, threadErr
			}
			logger.Warn("conversations unavailable", "ticket_id", ticketID, "error", convErr)
		}
	}

	comments, err := f.GetComments(ctx, ticketID)
	if err != nil {
		logger.Warn("comments unavailable", "ticket_id", ticketID, "error", err)
		comments = nil
	}

	return Unify(threads, conversations, comments), nil
}
