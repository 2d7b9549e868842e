package cli

import (
	"context"
	"time"

	"github.com/mfateev/temporal-mirror-agent/internal/models"
	"github.com/mfateev/temporal-mirror-agent/internal/workflow"
)

// Sessions is the part of session.Controller the TUI drives.
type Sessions interface {
	Pause(ctx context.Context) (models.State, error)
	Resume(ctx context.Context) (models.State, error)
	Cancel(ctx context.Context) (models.State, error)
	Status(ctx context.Context) (workflow.SessionStatus, error)
	Conversation(ctx context.Context) ([]models.Message, error)
}

// PollResult holds the results from a single poll cycle.
type PollResult struct {
	Status   workflow.SessionStatus
	Messages []models.Message
	Err      error
}

// Poller queries the session for its status and conversation.
type Poller struct {
	sessions Sessions
}

// NewPoller creates a poller.
func NewPoller(sessions Sessions) *Poller {
	return &Poller{sessions: sessions}
}

// queryTimeout is the per-poll timeout for workflow queries.
const queryTimeout = 5 * time.Second

// Poll performs a single poll cycle. The conversation is only fetched when
// the message count moved past known.
func (p *Poller) Poll(ctx context.Context, known int) PollResult {
	var result PollResult

	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	status, err := p.sessions.Status(queryCtx)
	if err != nil {
		result.Err = err
		return result
	}
	result.Status = status

	if status.MessageCount == known {
		return result
	}
	messages, err := p.sessions.Conversation(queryCtx)
	if err != nil {
		result.Err = err
		return result
	}
	result.Messages = messages
	return result
}
