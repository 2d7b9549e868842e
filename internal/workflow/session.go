// session.go implements the task session loop: capture, ask the model,
// execute its commands, repeat until a terminal state.
package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/mfateev/temporal-mirror-agent/internal/activities"
	"github.com/mfateev/temporal-mirror-agent/internal/executor"
	"github.com/mfateev/temporal-mirror-agent/internal/imaging"
	"github.com/mfateev/temporal-mirror-agent/internal/models"
)

// TaskSessionWorkflow runs one natural-language task against the mirrored
// window. It always returns a SessionResult describing the terminal state;
// the error return is reserved for failures of the workflow itself.
func TaskSessionWorkflow(ctx workflow.Context, input SessionInput) (SessionResult, error) {
	logger := workflow.GetLogger(ctx)

	s := newSessionState(input)
	if s.SessionID == "" {
		s.SessionID = workflow.GetInfo(ctx).WorkflowExecution.ID
	}
	ctrl := &SessionControl{}
	s.registerHandlers(ctx, ctrl)

	logger.Info("Task session created", "session_id", s.SessionID, "task", s.Task)

	// Settle: give the operator a moment before the agent takes the pointer.
	if err := ctrl.Sleep(ctx, s.Config.SettleDelay); err != nil {
		return s.interrupted(ctx, err), nil
	}
	if ctrl.IsCancelled() {
		return s.cancelled(ctx), nil
	}
	s.announceStart(ctx)
	if ctrl.IsCancelled() {
		return s.cancelled(ctx), nil
	}
	s.State = models.StateRunning

	var pendingResults []models.ContentBlock
	for {
		if err := ctrl.WaitWhilePaused(ctx); err != nil {
			return s.interrupted(ctx, err), nil
		}
		if ctrl.IsCancelled() {
			return s.cancelled(ctx), nil
		}

		s.Iteration++
		logger.Info("Starting iteration", "iteration", s.Iteration)

		// 1. Capture.
		s.Phase = PhaseCapturing
		capture, err := s.capture(ctx)
		if ctrl.IsCancelled() {
			return s.cancelled(ctx), nil
		}
		if err != nil {
			if temporal.IsCanceledError(err) {
				return s.interrupted(ctx, err), nil
			}
			logger.Error("Capture failed", "error", err)
			return s.fail(ctx, models.KindCaptureUnavailable, ReasonCaptureFailed), nil
		}
		cursor := capture.Cursor
		s.Cursor = &cursor
		s.ScreenshotRef = capture.ScreenshotRef

		// 2. Compose the user message. Room is needed for it and the reply.
		if !s.History.Fits(2) {
			return s.fail(ctx, models.KindConversationTooLong, ReasonConversationTooLong), nil
		}
		userMsg := s.userMessage(pendingResults, capture.ScreenshotRef)
		if err := s.History.Append(userMsg); err != nil {
			return s.fail(ctx, models.KindInternal, fmt.Sprintf("append user message: %v", err)), nil
		}
		pendingResults = nil

		// 3. Ask the model.
		s.Phase = PhaseThinking
		reply, err := s.callModel(ctx, capture.ScreenshotRef)
		if err != nil {
			if ctrl.IsCancelled() || temporal.IsCanceledError(err) {
				return s.interrupted(ctx, err), nil
			}
			kind := models.KindOf(err)
			logger.Error("Model call failed", "kind", kind, "error", err)
			return s.fail(ctx, kind, ReasonNoResponse), nil
		}

		// 4. Record the reply verbatim.
		if err := s.History.Append(models.Message{Role: models.RoleAssistant, Content: reply.RawContent}); err != nil {
			return s.fail(ctx, models.KindInternal, fmt.Sprintf("append assistant message: %v", err)), nil
		}
		s.LastMessage = reply.Message
		s.LastCommands = reply.Commands
		if ctrl.IsCancelled() {
			return s.cancelled(ctx), nil
		}

		// 5. Done ends the session; anything else in the reply is ignored.
		if done, ok := reply.FirstDone(); ok {
			if done.Status == models.DoneCompleted {
				s.finish(models.StateCompleted, "", done.Reason)
				logger.Info("Task completed", "reason", done.Reason, "iterations", s.Iteration)
				return s.result(), nil
			}
			return s.fail(ctx, models.KindModelReportedFailure, done.Reason), nil
		}
		if len(reply.Commands) == 0 {
			return s.fail(ctx, models.KindNoUsableResponse, ReasonNoUsableResponse), nil
		}

		// 6. Execute in order, answering every tool use exactly once.
		s.Phase = PhaseExecuting
		results, err := s.executeReply(ctx, ctrl, reply)
		if err != nil {
			if ctrl.IsCancelled() || temporal.IsCanceledError(err) {
				return s.interrupted(ctx, err), nil
			}
			logger.Error("Command execution failed", "error", err)
			return s.fail(ctx, models.KindInternal, fmt.Sprintf("command execution failed: %v", err)), nil
		}
		if ctrl.IsCancelled() {
			return s.cancelled(ctx), nil
		}
		pendingResults = results

		// 7. Throttle before the next capture.
		s.Phase = PhaseWaiting
		if err := ctrl.Sleep(ctx, s.Config.IterationDelay); err != nil {
			return s.interrupted(ctx, err), nil
		}
	}
}

// userMessage builds the iteration's user message: the task on the first
// iteration, the previous tool results afterwards, always followed by the
// new screenshot.
func (s *SessionState) userMessage(pendingResults []models.ContentBlock, screenshotRef string) models.Message {
	content := make([]models.ContentBlock, 0, len(pendingResults)+2)
	if s.History.Len() == 0 {
		content = append(content, models.TextBlock(s.Task))
	}
	content = append(content, pendingResults...)
	content = append(content, models.ImageBlock(screenshotRef, imaging.MediaType))
	return models.Message{Role: models.RoleUser, Content: content}
}

func (s *SessionState) announceStart(ctx workflow.Context) {
	actCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	err := workflow.ExecuteActivity(actCtx, ActivityAnnounceStart, activities.AnnounceInput{
		SessionID: s.SessionID,
		Message:   StartSignalMessage,
	}).Get(ctx, nil)
	if err != nil {
		workflow.GetLogger(ctx).Warn("Start announcement failed", "error", err)
	}
}

func (s *SessionState) capture(ctx workflow.Context) (activities.CaptureOutput, error) {
	actCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	var out activities.CaptureOutput
	err := workflow.ExecuteActivity(actCtx, ActivityCaptureScreenshot, activities.CaptureInput{
		SessionID:   s.SessionID,
		WindowTitle: s.Config.WindowTitle,
		Codec:       s.Config.Codec,
		Cursor:      s.Cursor,
	}).Get(ctx, &out)
	return out, err
}

// callModel runs the gateway activity. Overload retries happen inside the
// gateway, so the activity itself is attempted once.
func (s *SessionState) callModel(ctx workflow.Context, screenshotRef string) (models.ModelReply, error) {
	actCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	var reply models.ModelReply
	err := workflow.ExecuteActivity(actCtx, ActivityCallModel, activities.ModelInput{
		SessionID:      s.SessionID,
		Task:           s.Task,
		Conversation:   s.History.Messages(),
		ScreenshotRef:  screenshotRef,
		ModelConfig:    s.Config.Model,
		CredentialName: s.Config.CredentialName,
		MaxImages:      s.Config.MaxImages,
	}).Get(ctx, &reply)
	return reply, err
}

// executeReply runs the reply's commands sequentially in the order the model
// issued them and returns one tool result per tool use. Tool uses naming an
// unknown tool are answered with an error result; malformed input to a known
// tool is answered by the executor.
func (s *SessionState) executeReply(ctx workflow.Context, ctrl *SessionControl, reply models.ModelReply) ([]models.ContentBlock, error) {
	logger := workflow.GetLogger(ctx)
	actCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})

	commands := make(map[string]models.Command, len(reply.Commands))
	for _, cmd := range reply.Commands {
		commands[cmd.ToolUseID] = cmd
	}
	unknown := make(map[string]bool)
	for _, use := range reply.UnmappedToolUses() {
		unknown[use.ToolUseID] = true
	}

	toolUses := models.Message{Content: reply.RawContent}.ToolUses()
	results := make([]models.ContentBlock, 0, len(toolUses))
	for _, use := range toolUses {
		cmd := commands[use.ToolUseID]
		if unknown[use.ToolUseID] {
			logger.Warn("Unknown tool requested", "tool", use.ToolName, "tool_use_id", use.ToolUseID)
			results = append(results, models.ToolResultBlock(use.ToolUseID,
				fmt.Sprintf("Unknown tool %q: available tools are move_cursor, click_cursor and done", use.ToolName), true))
			continue
		}

		if err := ctrl.WaitWhilePaused(ctx); err != nil {
			return nil, err
		}
		if ctrl.IsCancelled() {
			return results, nil
		}

		var res executor.Result
		err := workflow.ExecuteActivity(actCtx, ActivityExecuteCommand, activities.ExecuteCommandInput{
			SessionID: s.SessionID,
			Command:   cmd,
			Cursor:    s.cursorOrOrigin(),
		}).Get(ctx, &res)
		if err != nil {
			return nil, err
		}
		cursor := res.Cursor
		s.Cursor = &cursor
		logger.Info("Command executed", "command", cmd.String(), "result", res.Text)
		results = append(results, models.ToolResultBlock(use.ToolUseID, res.Text, res.IsError))
	}
	return results, nil
}

func (s *SessionState) cursorOrOrigin() models.Point {
	if s.Cursor == nil {
		return models.Point{}
	}
	return *s.Cursor
}

func (s *SessionState) fail(ctx workflow.Context, kind models.ErrorKind, reason string) SessionResult {
	s.finish(models.StateFailed, kind, reason)
	workflow.GetLogger(ctx).Warn("Task failed", "kind", kind, "reason", reason, "iterations", s.Iteration)
	return s.result()
}

func (s *SessionState) cancelled(ctx workflow.Context) SessionResult {
	s.finish(models.StateCancelled, "", ReasonCancelled)
	workflow.GetLogger(ctx).Info("Task cancelled", "iterations", s.Iteration)
	return s.result()
}

// interrupted resolves a wait or activity error to a terminal state:
// workflow cancellation becomes Cancelled, anything else Failed.
func (s *SessionState) interrupted(ctx workflow.Context, err error) SessionResult {
	if err == nil || temporal.IsCanceledError(err) || s.State == models.StateCancelled {
		return s.cancelled(ctx)
	}
	return s.fail(ctx, models.KindInternal, err.Error())
}
