// Package cli implements the terminal views of a task session: the watch
// TUI and the transcript and status renderers used by mirrorctl.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/mfateev/temporal-mirror-agent/internal/models"
	"github.com/mfateev/temporal-mirror-agent/internal/workflow"
)

// Renderer renders conversation messages and session status as styled text.
type Renderer struct {
	width      int
	noMarkdown bool
	styles     Styles
	mdRenderer *glamour.TermRenderer
}

// NewRenderer creates a renderer. A width of zero uses the terminal width.
func NewRenderer(width int, noColor, noMarkdown bool) *Renderer {
	styles := DefaultStyles()
	if noColor {
		styles = NoColorStyles()
	}
	r := &Renderer{
		width:      width,
		noMarkdown: noMarkdown,
		styles:     styles,
	}
	if !noMarkdown {
		w := width
		if w <= 0 {
			w = 80
			if tw, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && tw > 0 {
				w = tw
			}
		}
		style := "dark"
		if noColor {
			style = "notty"
		}
		md, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(style),
			glamour.WithWordWrap(w),
		)
		if err == nil {
			r.mdRenderer = md
		}
	}
	return r
}

// RenderConversation renders the whole conversation. Every user message
// that carries a screenshot opens a new iteration.
func (r *Renderer) RenderConversation(messages []models.Message) string {
	var b strings.Builder
	iteration := 0
	for _, m := range messages {
		if m.Role == models.RoleUser && len(m.ImageRefs()) > 0 {
			iteration++
			b.WriteString(r.RenderIterationStarted(iteration))
		}
		b.WriteString(r.RenderMessage(m))
	}
	return b.String()
}

// RenderIterationStarted renders an iteration separator.
func (r *Renderer) RenderIterationStarted(n int) string {
	return r.styles.TurnSeparator.Render(fmt.Sprintf("── Iteration %d ──", n)) + "\n"
}

// RenderMessage renders the blocks of one message in order.
func (r *Renderer) RenderMessage(m models.Message) string {
	var b strings.Builder
	for _, block := range m.Content {
		switch block.Type {
		case models.BlockText:
			if m.Role == models.RoleUser {
				b.WriteString(r.styles.UserMessage.Render("> "+block.Text) + "\n")
			} else {
				b.WriteString(r.renderAssistantText(block.Text))
			}
		case models.BlockImage:
			b.WriteString(r.styles.Screenshot.Render("[screenshot "+block.ImageRef+"]") + "\n")
		case models.BlockToolUse:
			b.WriteString(r.renderToolUse(block))
		case models.BlockToolResult:
			b.WriteString(r.renderToolResult(block))
		}
	}
	return b.String()
}

func (r *Renderer) renderAssistantText(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if r.mdRenderer != nil {
		rendered, err := r.mdRenderer.Render(text)
		if err == nil {
			return rendered
		}
	}
	return "\n" + text + "\n\n"
}

// renderToolUse renders a tool call. Example: "• move_cursor up 120"
func (r *Renderer) renderToolUse(block models.ContentBlock) string {
	bullet := r.styles.ToolBullet.Render("•")
	verb := r.styles.ToolVerb.Render(block.ToolName)
	if detail := toolDetail(block.Input); detail != "" {
		return bullet + " " + verb + " " + detail + "\n"
	}
	return bullet + " " + verb + "\n"
}

// toolDetail flattens the tool input into "value value" in a stable order.
func toolDetail(input json.RawMessage) string {
	if len(input) == 0 {
		return ""
	}
	var args map[string]interface{}
	if err := json.Unmarshal(input, &args); err != nil {
		return string(input)
	}
	var parts []string
	for _, k := range []string{"direction", "distance", "status", "reason"} {
		if v, ok := args[k]; ok {
			parts = append(parts, fmt.Sprint(v))
		}
	}
	return strings.Join(parts, " ")
}

func (r *Renderer) renderToolResult(block models.ContentBlock) string {
	prefix := r.styles.OutputPrefix.Render("  └ ")
	if block.IsError {
		return prefix + r.styles.OutputFailure.Render(block.Text) + "\n"
	}
	return prefix + r.styles.OutputSuccess.Render(block.Text) + "\n"
}

// RenderStatus renders a multi-line status summary.
func (r *Renderer) RenderStatus(s workflow.SessionStatus) string {
	var b strings.Builder
	text := s.StatusText
	if text == "" {
		text = workflow.StatusText(s.State, s.ErrorKind, s.Reason)
	}
	fmt.Fprintf(&b, "Session:   %s\n", s.SessionID)
	fmt.Fprintf(&b, "Task:      %s\n", s.Task)
	fmt.Fprintf(&b, "Status:    %s\n", r.styles.State(s.State).Render(text))
	if s.Phase != "" && !s.State.IsTerminal() {
		fmt.Fprintf(&b, "Phase:     %s\n", s.Phase)
	}
	fmt.Fprintf(&b, "Iteration: %d (%d messages)\n", s.Iteration, s.MessageCount)
	if s.Cursor != nil {
		fmt.Fprintf(&b, "Cursor:    %s\n", *s.Cursor)
	}
	if len(s.LastCommands) > 0 {
		cmds := make([]string, len(s.LastCommands))
		for i, c := range s.LastCommands {
			cmds[i] = c.String()
		}
		fmt.Fprintf(&b, "Commands:  %s\n", strings.Join(cmds, ", "))
	}
	if s.LastMessage != "" {
		fmt.Fprintf(&b, "Model:     %s\n", firstLine(s.LastMessage))
	}
	return b.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}
