package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/mfateev/temporal-mirror-agent/internal/audit"
	"github.com/mfateev/temporal-mirror-agent/internal/credentials"
	"github.com/mfateev/temporal-mirror-agent/internal/imaging"
	"github.com/mfateev/temporal-mirror-agent/internal/models"
	"github.com/mfateev/temporal-mirror-agent/internal/tools"
)

// statusOverloaded is the HTTP status Anthropic uses for overloaded_error.
const statusOverloaded = 529

const omittedImageText = "[earlier screenshot omitted]"

// AnthropicConfig configures an AnthropicGateway.
type AnthropicConfig struct {
	APIKey string
	// BaseURL overrides the API endpoint.
	BaseURL string
	Images  ImageSource
	Audit   audit.Logger
	Logger  *zap.Logger
	Retry   RetryPolicy
	Sleep   Sleeper
}

// AnthropicGateway implements Gateway using Anthropic's Messages API.
type AnthropicGateway struct {
	client      anthropic.Client
	images      ImageSource
	audit       audit.Logger
	logger      *zap.Logger
	retry       RetryPolicy
	sleep       Sleeper
	redactedKey string
	now         func() time.Time
}

// NewAnthropicGateway creates a gateway. The SDK's own retries are disabled
// so that overload handling follows RetryPolicy exactly.
func NewAnthropicGateway(cfg AnthropicConfig) *AnthropicGateway {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	g := &AnthropicGateway{
		client:      anthropic.NewClient(opts...),
		images:      cfg.Images,
		audit:       cfg.Audit,
		logger:      cfg.Logger,
		retry:       cfg.Retry,
		sleep:       cfg.Sleep,
		redactedKey: credentials.Redact(cfg.APIKey),
		now:         time.Now,
	}
	if g.audit == nil {
		g.audit = audit.Nop{}
	}
	if g.logger == nil {
		g.logger = zap.NewNop()
	}
	if g.retry == (RetryPolicy{}) {
		g.retry = DefaultRetryPolicy()
	}
	if g.sleep == nil {
		g.sleep = ContextSleep
	}
	return g
}

// Send builds the request, calls the API with overload retries, and parses
// the reply.
func (g *AnthropicGateway) Send(ctx context.Context, request Request) (models.ModelReply, error) {
	params, screenshotBytes, err := g.buildParams(ctx, request)
	if err != nil {
		failure := models.NewGatewayRequestFailedError(fmt.Sprintf("build request: %v", err))
		g.logResponse(ctx, request, 0, models.ModelReply{}, failure)
		return models.ModelReply{}, failure
	}

	var lastErr error
	for attempt := 0; attempt <= g.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := g.retry.Delay(attempt)
			g.logger.Warn("model overloaded, backing off",
				zap.Int("retry", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			if err := g.sleep(ctx, delay); err != nil {
				return models.ModelReply{}, models.NewGatewayRequestFailedError(fmt.Sprintf("interrupted during backoff: %v", err))
			}
		}

		g.logRequest(ctx, request, attempt, screenshotBytes)
		response, err := g.client.Messages.New(ctx, params)
		if err == nil {
			reply := g.parseResponse(response)
			g.logResponse(ctx, request, attempt, reply, nil)
			return reply, nil
		}

		g.logResponse(ctx, request, attempt, models.ModelReply{}, err)
		if !isOverloaded(err) {
			return models.ModelReply{}, classifyAnthropicError(err)
		}
		lastErr = err
	}

	return models.ModelReply{}, models.NewGatewayOverloadedError(
		fmt.Sprintf("model still overloaded after %d retries: %v", g.retry.MaxRetries, lastErr))
}

func (g *AnthropicGateway) buildParams(ctx context.Context, request Request) (anthropic.MessageNewParams, int, error) {
	messages, screenshotBytes, err := g.buildMessages(ctx, request)
	if err != nil {
		return anthropic.MessageNewParams{}, 0, err
	}

	systemPrompt := request.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	specs := request.ToolSpecs
	if len(specs) == 0 {
		specs = tools.DefaultToolSpecs()
	}

	params := anthropic.MessageNewParams{
		Model:       selectAnthropicModel(request.ModelConfig.Model),
		MaxTokens:   int64(request.ModelConfig.MaxTokens),
		Temperature: anthropic.Float(request.ModelConfig.Temperature),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:    messages,
		Tools:       buildToolDefinitions(specs),
	}
	return params, screenshotBytes, nil
}

// selectAnthropicModel maps short aliases to Anthropic model IDs. Unknown
// names are passed through unchanged.
func selectAnthropicModel(modelName string) anthropic.Model {
	switch modelName {
	case "", "claude-3.5-sonnet", "claude-3-5-sonnet":
		return anthropic.Model(models.DefaultModelConfig().Model)
	case "claude-sonnet-4.5":
		return anthropic.ModelClaudeSonnet4_5_20250929
	default:
		return anthropic.Model(modelName)
	}
}

// buildMessages converts the conversation to Anthropic messages, resolving
// image references. It returns the size of the screenshot named by
// request.ScreenshotRef.
func (g *AnthropicGateway) buildMessages(ctx context.Context, request Request) ([]anthropic.MessageParam, int, error) {
	keep := imagesToKeep(request.Conversation, request.MaxImages)
	screenshotBytes := 0

	messages := make([]anthropic.MessageParam, 0, len(request.Conversation))
	for _, msg := range request.Conversation {
		content := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Content))
		for _, block := range msg.Content {
			switch block.Type {
			case models.BlockText:
				content = append(content, anthropic.ContentBlockParamUnion{
					OfText: &anthropic.TextBlockParam{Text: block.Text},
				})

			case models.BlockImage:
				if !keep[block.ImageRef] {
					content = append(content, anthropic.ContentBlockParamUnion{
						OfText: &anthropic.TextBlockParam{Text: omittedImageText},
					})
					continue
				}
				if g.images == nil {
					return nil, 0, errors.New("no image source configured")
				}
				data, err := g.images.Get(ctx, block.ImageRef)
				if err != nil {
					return nil, 0, fmt.Errorf("load screenshot %s: %w", block.ImageRef, err)
				}
				if block.ImageRef == request.ScreenshotRef {
					screenshotBytes = len(data)
				}
				mediaType := block.MediaType
				if mediaType == "" {
					mediaType = imaging.MediaType
				}
				content = append(content, anthropic.NewImageBlockBase64(mediaType, imaging.Encode(data)))

			case models.BlockToolUse:
				input := block.Input
				if len(input) == 0 {
					input = json.RawMessage(`{}`)
				}
				content = append(content, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    block.ToolUseID,
						Name:  block.ToolName,
						Input: input,
					},
				})

			case models.BlockToolResult:
				content = append(content, anthropic.ContentBlockParamUnion{
					OfToolResult: &anthropic.ToolResultBlockParam{
						ToolUseID: block.ToolUseID,
						Content: []anthropic.ToolResultBlockParamContentUnion{{
							OfText: &anthropic.TextBlockParam{Text: block.Text},
						}},
						IsError: anthropic.Bool(block.IsError),
					},
				})
			}
		}

		role := anthropic.MessageParamRoleUser
		if msg.Role == models.RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}
		messages = append(messages, anthropic.MessageParam{Role: role, Content: content})
	}
	return messages, screenshotBytes, nil
}

// imagesToKeep returns the set of image refs to send: the last max refs, or
// all of them when max is zero or negative.
func imagesToKeep(conversation []models.Message, max int) map[string]bool {
	var refs []string
	for _, msg := range conversation {
		refs = append(refs, msg.ImageRefs()...)
	}
	if max > 0 && len(refs) > max {
		refs = refs[len(refs)-max:]
	}
	keep := make(map[string]bool, len(refs))
	for _, ref := range refs {
		keep[ref] = true
	}
	return keep
}

// buildToolDefinitions converts ToolSpecs to Anthropic tool definitions.
func buildToolDefinitions(specs []tools.ToolSpec) []anthropic.ToolUnionParam {
	toolDefs := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		properties, required := spec.InputSchema()
		inputSchema := anthropic.ToolInputSchemaParam{
			Properties: properties,
		}
		if len(required) > 0 {
			inputSchema.Required = required
		}
		toolDefs = append(toolDefs, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        spec.Name,
				Description: anthropic.String(spec.Description),
				InputSchema: inputSchema,
			},
		})
	}
	return toolDefs
}

// parseResponse converts Anthropic's response to a ModelReply. Tool uses
// with unknown names are kept in RawContent but produce no Command; known
// tools with undecodable input produce an Invalid command.
func (g *AnthropicGateway) parseResponse(response *anthropic.Message) models.ModelReply {
	reply := models.ModelReply{
		Commands:   make([]models.Command, 0),
		RawContent: make([]models.ContentBlock, 0, len(response.Content)),
		StopReason: string(response.StopReason),
	}

	var text strings.Builder
	for _, contentBlock := range response.Content {
		switch contentBlock.Type {
		case "text":
			textBlock := contentBlock.AsText()
			text.WriteString(textBlock.Text)
			reply.RawContent = append(reply.RawContent, models.TextBlock(textBlock.Text))

		case "tool_use":
			toolBlock := contentBlock.AsToolUse()
			input, err := json.Marshal(toolBlock.Input)
			if err != nil || len(input) == 0 || string(input) == "null" {
				input = json.RawMessage(`{}`)
			}
			reply.RawContent = append(reply.RawContent, models.ToolUseBlock(toolBlock.ID, toolBlock.Name, input))

			cmd, err := tools.Decode(toolBlock.ID, toolBlock.Name, input, g.logger)
			if err != nil {
				g.logger.Warn("dropping unknown tool use",
					zap.String("tool", toolBlock.Name),
					zap.String("tool_use_id", toolBlock.ID),
					zap.Error(err))
				continue
			}
			reply.Commands = append(reply.Commands, cmd)

		default:
			g.logger.Debug("ignoring content block", zap.String("type", string(contentBlock.Type)))
		}
	}
	reply.Message = text.String()
	return reply
}

func (g *AnthropicGateway) logRequest(ctx context.Context, request Request, attempt, screenshotBytes int) {
	err := g.audit.LogRequest(ctx, audit.RequestRecord{
		SessionID:          request.SessionID,
		Task:               request.Task,
		Model:              request.ModelConfig.Model,
		RedactedCredential: g.redactedKey,
		ScreenshotRef:      request.ScreenshotRef,
		ScreenshotBytes:    screenshotBytes,
		MessageCount:       len(request.Conversation),
		Attempt:            attempt,
		Time:               g.now(),
	})
	if err != nil {
		g.logger.Warn("failed to record model request", zap.Error(err))
	}
}

func (g *AnthropicGateway) logResponse(ctx context.Context, request Request, attempt int, reply models.ModelReply, callErr error) {
	rec := audit.ResponseRecord{
		SessionID:  request.SessionID,
		Message:    reply.Message,
		Commands:   reply.Commands,
		StopReason: reply.StopReason,
		Attempt:    attempt,
		Time:       g.now(),
	}
	if callErr != nil {
		rec.Error = callErr.Error()
		rec.ErrorKind = models.KindGatewayRequestFailed
		if isOverloaded(callErr) {
			rec.ErrorKind = models.KindGatewayOverloaded
		}
	}
	if err := g.audit.LogResponse(ctx, rec); err != nil {
		g.logger.Warn("failed to record model response", zap.Error(err))
	}
}

// isOverloaded reports whether err is Anthropic's transient overload signal.
func isOverloaded(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == statusOverloaded {
		return true
	}
	return strings.Contains(err.Error(), "overloaded_error")
}

// classifyAnthropicError converts a non-overload API failure into a
// GatewayRequestFailed error, keeping the HTTP status when available.
func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return models.NewGatewayRequestFailedError(fmt.Sprintf("anthropic API error (%d): %v", apiErr.StatusCode, err))
	}
	return models.NewGatewayRequestFailedError(fmt.Sprintf("anthropic request failed: %v", err))
}
