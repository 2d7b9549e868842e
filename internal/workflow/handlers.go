// handlers.go registers the Temporal query and update handlers. Handlers
// change control flags and the displayed state; the conversation and cursor
// are only ever written by the loop.
package workflow

import (
	"fmt"

	"go.temporal.io/sdk/workflow"

	"github.com/mfateev/temporal-mirror-agent/internal/models"
	"github.com/mfateev/temporal-mirror-agent/internal/version"
)

// ControlRequest is the (empty) payload of the control updates.
type ControlRequest struct{}

func (s *SessionState) rejectTerminal() error {
	if s.State.IsTerminal() {
		return fmt.Errorf("session already %s", s.State)
	}
	return nil
}

// registerHandlers registers query and update handlers on the workflow.
func (s *SessionState) registerHandlers(ctx workflow.Context, ctrl *SessionControl) {
	logger := workflow.GetLogger(ctx)

	err := workflow.SetQueryHandler(ctx, QueryGetStatus, func() (SessionStatus, error) {
		return s.status(version.GitCommit), nil
	})
	if err != nil {
		logger.Error("Failed to register get_status query handler", "error", err)
	}

	err = workflow.SetQueryHandler(ctx, QueryGetConversation, func() ([]models.Message, error) {
		return s.History.Messages(), nil
	})
	if err != nil {
		logger.Error("Failed to register get_conversation query handler", "error", err)
	}

	// Update: pause. Running → Paused; a no-op in any other live state.
	err = workflow.SetUpdateHandlerWithOptions(
		ctx,
		UpdatePause,
		func(ctx workflow.Context, _ ControlRequest) (ControlResponse, error) {
			if s.State == models.StateRunning {
				ctrl.Pause()
				s.State = models.StatePaused
				logger.Info("Session paused", "iteration", s.Iteration)
			}
			return ControlResponse{State: s.State}, nil
		},
		workflow.UpdateHandlerOptions{
			Validator: func(ctx workflow.Context, _ ControlRequest) error {
				return s.rejectTerminal()
			},
		},
	)
	if err != nil {
		logger.Error("Failed to register pause update handler", "error", err)
	}

	// Update: resume. Paused → Running.
	err = workflow.SetUpdateHandlerWithOptions(
		ctx,
		UpdateResume,
		func(ctx workflow.Context, _ ControlRequest) (ControlResponse, error) {
			if s.State == models.StatePaused {
				ctrl.Resume()
				s.State = models.StateRunning
				logger.Info("Session resumed", "iteration", s.Iteration)
			}
			return ControlResponse{State: s.State}, nil
		},
		workflow.UpdateHandlerOptions{
			Validator: func(ctx workflow.Context, _ ControlRequest) error {
				return s.rejectTerminal()
			},
		},
	)
	if err != nil {
		logger.Error("Failed to register resume update handler", "error", err)
	}

	// Update: cancel. Any live state → Cancelled. The loop observes the
	// request at its next suspension point.
	err = workflow.SetUpdateHandlerWithOptions(
		ctx,
		UpdateCancel,
		func(ctx workflow.Context, _ ControlRequest) (ControlResponse, error) {
			ctrl.Cancel()
			s.finish(models.StateCancelled, "", ReasonCancelled)
			logger.Info("Session cancel requested", "iteration", s.Iteration)
			return ControlResponse{State: s.State}, nil
		},
		workflow.UpdateHandlerOptions{
			Validator: func(ctx workflow.Context, _ ControlRequest) error {
				return s.rejectTerminal()
			},
		},
	)
	if err != nil {
		logger.Error("Failed to register cancel update handler", "error", err)
	}
}
