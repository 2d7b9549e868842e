// Package llm implements the model gateway: it turns the session's
// conversation into a request for the remote vision model, retries when the
// provider is overloaded, and parses the reply into typed commands.
package llm

import (
	"context"
	"time"

	"github.com/mfateev/temporal-mirror-agent/internal/models"
	"github.com/mfateev/temporal-mirror-agent/internal/tools"
)

// Gateway is the interface the session uses to talk to the model.
//
// Send returns either a reply or an error carrying a models.ErrorKind of
// KindGatewayOverloaded (retries exhausted) or KindGatewayRequestFailed.
type Gateway interface {
	Send(ctx context.Context, request Request) (models.ModelReply, error)
}

// Request is one model call.
type Request struct {
	SessionID    string             `json:"session_id"`
	Task         string             `json:"task"`
	SystemPrompt string             `json:"system_prompt"`
	Conversation []models.Message   `json:"conversation"`
	ToolSpecs    []tools.ToolSpec   `json:"tool_specs"`
	ModelConfig  models.ModelConfig `json:"model_config"`

	// ScreenshotRef is the screenshot attached to the last user message.
	ScreenshotRef string `json:"screenshot_ref"`
	// MaxImages keeps only the most recent images; older ones are replaced
	// with a text placeholder. Zero sends every image.
	MaxImages int `json:"max_images"`
}

// ImageSource resolves screenshot references to bytes.
type ImageSource interface {
	Get(ctx context.Context, ref string) ([]byte, error)
}

// RetryPolicy controls retries of overloaded calls. The delay before retry
// n (1-based) is BaseDelay * 2^(n-1).
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultRetryPolicy retries three times after 1s, 2s and 4s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: time.Second}
}

// Delay returns the wait before retry n (1-based).
func (p RetryPolicy) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	return p.BaseDelay << uint(n-1)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the production Sleeper.
func ContextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
