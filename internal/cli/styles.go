package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/mfateev/temporal-mirror-agent/internal/models"
)

// Styles holds all lipgloss styles for the TUI and the transcript.
type Styles struct {
	// Iteration separator
	TurnSeparator lipgloss.Style
	// Task and other user text
	UserMessage lipgloss.Style
	// Screenshot reference line
	Screenshot lipgloss.Style
	// Tool call bullet (• character)
	ToolBullet lipgloss.Style
	// Tool name
	ToolVerb lipgloss.Style
	// Tool result success
	OutputSuccess lipgloss.Style
	// Tool result failure
	OutputFailure lipgloss.Style
	// Dimmed output prefix (└)
	OutputPrefix lipgloss.Style
	// Session state badges
	StateRunning  lipgloss.Style
	StatePaused   lipgloss.Style
	StateDone     lipgloss.Style
	StateFailed   lipgloss.Style
	StateInactive lipgloss.Style
	// Separator line between viewport and status
	Separator lipgloss.Style
	// Status bar
	StatusBar lipgloss.Style
	// Spinner message
	SpinnerMessage lipgloss.Style
	// Key help
	Help lipgloss.Style
	// Error line
	Error lipgloss.Style
}

// DefaultStyles returns styles with colors enabled.
func DefaultStyles() Styles {
	return Styles{
		TurnSeparator:  lipgloss.NewStyle().Faint(true),
		UserMessage:    lipgloss.NewStyle().Bold(true),
		Screenshot:     lipgloss.NewStyle().Faint(true),
		ToolBullet:     lipgloss.NewStyle().Foreground(lipgloss.Color("2")), // green
		ToolVerb:       lipgloss.NewStyle().Bold(true),
		OutputSuccess:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")), // green
		OutputFailure:  lipgloss.NewStyle().Foreground(lipgloss.Color("1")), // red
		OutputPrefix:   lipgloss.NewStyle().Faint(true),
		StateRunning:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		StatePaused:    lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true), // yellow
		StateDone:      lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true), // cyan
		StateFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		StateInactive:  lipgloss.NewStyle().Faint(true),
		Separator:      lipgloss.NewStyle().Faint(true),
		StatusBar:      lipgloss.NewStyle().Faint(true),
		SpinnerMessage: lipgloss.NewStyle().Faint(true),
		Help:           lipgloss.NewStyle().Faint(true),
		Error:          lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

// NoColorStyles returns styles with no colors (plain text).
func NoColorStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		TurnSeparator:  plain,
		UserMessage:    plain,
		Screenshot:     plain,
		ToolBullet:     plain,
		ToolVerb:       plain,
		OutputSuccess:  plain,
		OutputFailure:  plain,
		OutputPrefix:   plain,
		StateRunning:   plain,
		StatePaused:    plain,
		StateDone:      plain,
		StateFailed:    plain,
		StateInactive:  plain,
		Separator:      plain,
		StatusBar:      plain,
		SpinnerMessage: plain,
		Help:           plain,
		Error:          plain,
	}
}

// State returns the badge style for a session state.
func (s Styles) State(state models.State) lipgloss.Style {
	switch state {
	case models.StateRunning:
		return s.StateRunning
	case models.StatePaused:
		return s.StatePaused
	case models.StateCompleted:
		return s.StateDone
	case models.StateFailed, models.StateCancelled:
		return s.StateFailed
	default:
		return s.StateInactive
	}
}
