package cli

import (
	"github.com/mfateev/temporal-mirror-agent/internal/models"
	"github.com/mfateev/temporal-mirror-agent/internal/workflow"
)

// PhaseMessage returns a human-friendly message for the session phase.
func PhaseMessage(state models.State, phase workflow.Phase) string {
	switch state {
	case models.StateIdle:
		return "Waiting for the window to settle..."
	case models.StatePaused:
		return "Paused. Press r to resume."
	}
	switch phase {
	case workflow.PhaseSettling:
		return "Waiting for the window to settle..."
	case workflow.PhaseCapturing:
		return "Capturing screen..."
	case workflow.PhaseThinking:
		return "Thinking..."
	case workflow.PhaseExecuting:
		return "Moving the pointer..."
	case workflow.PhaseWaiting:
		return "Waiting for the screen to update..."
	default:
		return "Working..."
	}
}
