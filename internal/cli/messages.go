package cli

import (
	"github.com/mfateev/temporal-mirror-agent/internal/models"
)

// PollResultMsg carries the result of one poll.
type PollResultMsg struct {
	Result PollResult
}

// pollTickMsg schedules the next poll.
type pollTickMsg struct{}

// ControlSentMsg is sent when a pause, resume or cancel request was applied.
type ControlSentMsg struct {
	Op    string
	State models.State
}

// ControlErrorMsg is sent when a control request failed.
type ControlErrorMsg struct {
	Op  string
	Err error
}
