package activities

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mfateev/temporal-mirror-agent/internal/audit"
	"github.com/mfateev/temporal-mirror-agent/internal/credentials"
	"github.com/mfateev/temporal-mirror-agent/internal/llm"
	"github.com/mfateev/temporal-mirror-agent/internal/models"
)

// ModelInput is the input for the CallModel activity.
type ModelInput struct {
	SessionID      string             `json:"session_id"`
	Task           string             `json:"task"`
	Conversation   []models.Message   `json:"conversation"`
	ScreenshotRef  string             `json:"screenshot_ref"`
	ModelConfig    models.ModelConfig `json:"model_config"`
	CredentialName string             `json:"credential_name"`
	MaxImages      int                `json:"max_images"`
}

// GatewayFactory builds a gateway for one API key.
type GatewayFactory func(apiKey string) llm.Gateway

// ModelActivities contains the model gateway activity.
type ModelActivities struct {
	credentials credentials.Store
	newGateway  GatewayFactory
	logger      *zap.Logger
}

// NewModelActivities creates a new ModelActivities instance.
func NewModelActivities(store credentials.Store, newGateway GatewayFactory, logger *zap.Logger) *ModelActivities {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModelActivities{credentials: store, newGateway: newGateway, logger: logger}
}

// AnthropicGatewayFactory returns a GatewayFactory producing Anthropic
// gateways that share images, audit sink and logger.
func AnthropicGatewayFactory(baseURL string, images llm.ImageSource, auditLogger audit.Logger, logger *zap.Logger) GatewayFactory {
	return func(apiKey string) llm.Gateway {
		return llm.NewAnthropicGateway(llm.AnthropicConfig{
			APIKey:  apiKey,
			BaseURL: baseURL,
			Images:  images,
			Audit:   auditLogger,
			Logger:  logger,
		})
	}
}

// CallModel sends the conversation to the model and returns its reply. The
// API key is looked up per call so a rotated credential takes effect on the
// next iteration.
func (a *ModelActivities) CallModel(ctx context.Context, input ModelInput) (models.ModelReply, error) {
	name := input.CredentialName
	if name == "" {
		name = credentials.DefaultAPIKeyName
	}
	apiKey, err := a.credentials.Get(ctx, name)
	if err != nil {
		return models.ModelReply{}, models.ToApplicationError(
			models.NewGatewayRequestFailedError(fmt.Sprintf("load credential %q: %v", name, err)))
	}

	reply, err := a.newGateway(apiKey).Send(ctx, llm.Request{
		SessionID:     input.SessionID,
		Task:          input.Task,
		Conversation:  input.Conversation,
		ModelConfig:   input.ModelConfig,
		ScreenshotRef: input.ScreenshotRef,
		MaxImages:     input.MaxImages,
	})
	if err != nil {
		a.logger.Warn("model call failed",
			zap.String("session_id", input.SessionID),
			zap.String("kind", string(models.KindOf(err))),
			zap.Error(err))
		return models.ModelReply{}, models.ToApplicationError(err)
	}
	a.logger.Info("model replied",
		zap.String("session_id", input.SessionID),
		zap.Int("commands", len(reply.Commands)),
		zap.String("stop_reason", reply.StopReason))
	return reply, nil
}
