package cli

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mfateev/temporal-mirror-agent/internal/models"
)

// pollCmd runs one poll and returns PollResultMsg.
func pollCmd(p *Poller, known int) tea.Cmd {
	return func() tea.Msg {
		return PollResultMsg{Result: p.Poll(context.Background(), known)}
	}
}

// tickCmd schedules the next poll after interval.
func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return pollTickMsg{}
	})
}

// controlCmd sends a pause, resume or cancel request.
func controlCmd(op string, fn func(context.Context) (models.State, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()
		state, err := fn(ctx)
		if err != nil {
			return ControlErrorMsg{Op: op, Err: fmt.Errorf("%s failed: %w", op, err)}
		}
		return ControlSentMsg{Op: op, State: state}
	}
}
