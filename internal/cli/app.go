package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/mfateev/temporal-mirror-agent/internal/models"
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Watch runs the watch TUI until the user quits or, with ExitOnEnd, the
// session ends. Without a terminal it falls back to WatchPlain on stdout.
func Watch(ctx context.Context, sessions Sessions, config Config) error {
	if !IsTerminal(os.Stdout) {
		return WatchPlain(ctx, sessions, os.Stdout, config.PollInterval)
	}

	model := NewModel(config, sessions)

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if !config.Inline {
		opts = append(opts, tea.WithAltScreen())
	}
	p := tea.NewProgram(model, opts...)

	// Enable CSI 1007 alternate scroll mode so the mouse wheel scrolls the
	// transcript without capturing the mouse.
	fmt.Fprint(os.Stderr, "\x1b[?1007h")
	defer fmt.Fprint(os.Stderr, "\x1b[?1007l")

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	fm := finalModel.(*Model)
	if fm.err != nil {
		return fm.err
	}
	if fm.hasStatus {
		fmt.Fprintln(os.Stderr, fm.status.StatusText)
	}
	return nil
}

// WatchPlain prints one line per state, phase or iteration change until
// the session ends.
func WatchPlain(ctx context.Context, sessions Sessions, w io.Writer, interval time.Duration) error {
	if interval <= 0 {
		interval = PollInterval
	}
	poller := NewPoller(sessions)
	var last string
	known := -1
	for {
		res := poller.Poll(ctx, known)
		if res.Err != nil {
			return res.Err
		}
		s := res.Status
		known = s.MessageCount
		line := fmt.Sprintf("[%d] %s", s.Iteration, s.StatusText)
		if !s.State.IsTerminal() && s.State != models.StatePaused {
			line += " · " + PhaseMessage(s.State, s.Phase)
		}
		if line != last {
			fmt.Fprintln(w, line)
			last = line
		}
		if s.State.IsTerminal() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// PrintTranscript writes the rendered conversation to w.
func PrintTranscript(w io.Writer, messages []models.Message, noColor, noMarkdown bool) {
	r := NewRenderer(0, noColor, noMarkdown)
	fmt.Fprint(w, r.RenderConversation(messages))
}
