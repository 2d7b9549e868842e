package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mfateev/temporal-mirror-agent/internal/models"
	"github.com/mfateev/temporal-mirror-agent/internal/session"
	"github.com/mfateev/temporal-mirror-agent/internal/version"
	"github.com/mfateev/temporal-mirror-agent/internal/workflow"
)

const (
	PollInterval = 500 * time.Millisecond
	// maxPollErrors is the number of consecutive failed polls before the
	// TUI gives up.
	maxPollErrors = 5
)

// Config holds watch TUI configuration.
type Config struct {
	NoMarkdown   bool
	NoColor      bool
	Inline       bool // Disable alt-screen mode
	PollInterval time.Duration
	// ExitOnEnd quits once the session reaches a terminal state.
	ExitOnEnd bool
}

// Model is the bubbletea model for the watch TUI.
type Model struct {
	config   Config
	sessions Sessions
	poller   *Poller
	keys     KeyMap
	styles   Styles

	// Sub-models
	viewport viewport.Model
	spinner  spinner.Model

	// Layout
	width  int
	height int
	ready  bool

	// Session view
	status          workflow.SessionStatus
	hasStatus       bool
	messages        []models.Message
	renderedCount   int
	viewportContent string
	notice          string

	renderer *Renderer

	consecutiveErrors int
	err               error
	quitting          bool
}

// NewModel creates a new bubbletea model.
func NewModel(config Config, sessions Sessions) Model {
	styles := DefaultStyles()
	if config.NoColor {
		styles = NoColorStyles()
	}
	if config.PollInterval <= 0 {
		config.PollInterval = PollInterval
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		config:   config,
		sessions: sessions,
		poller:   NewPoller(sessions),
		keys:     DefaultKeyMap(),
		styles:   styles,
		spinner:  sp,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, pollCmd(m.poller, -1))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg)

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return &m, cmd

	case pollTickMsg:
		return &m, pollCmd(m.poller, m.renderedCount)

	case PollResultMsg:
		return m.handlePollResult(msg.Result)

	case ControlSentMsg:
		m.notice = fmt.Sprintf("%s sent, session %s", msg.Op, msg.State)
		m.status.State = msg.State
		return &m, nil

	case ControlErrorMsg:
		m.notice = m.styles.Error.Render(msg.Err.Error())
		return &m, nil
	}
	return &m, nil
}

func (m *Model) handlePollResult(res PollResult) (tea.Model, tea.Cmd) {
	if res.Err != nil {
		if errors.Is(res.Err, session.ErrNotRunning) {
			m.err = res.Err
			m.quitting = true
			return m, tea.Quit
		}
		m.consecutiveErrors++
		m.notice = m.styles.Error.Render("poll failed: " + res.Err.Error())
		if m.consecutiveErrors >= maxPollErrors {
			m.err = fmt.Errorf("lost connection to session: %w", res.Err)
			m.quitting = true
			return m, tea.Quit
		}
		return m, tickCmd(m.config.PollInterval)
	}

	m.consecutiveErrors = 0
	m.notice = ""
	m.status = res.Status
	m.hasStatus = true
	if res.Messages != nil {
		m.messages = res.Messages
		m.renderedCount = res.Status.MessageCount
		m.refreshTranscript()
	}

	if res.Status.State.IsTerminal() {
		if m.config.ExitOnEnd {
			m.quitting = true
			return m, tea.Quit
		}
		// Terminal sessions never change; stop polling.
		return m, nil
	}
	return m, tickCmd(m.config.PollInterval)
}

// refreshTranscript re-renders the conversation into the viewport, following
// the tail unless the user scrolled up.
func (m *Model) refreshTranscript() {
	if !m.ready || m.renderer == nil {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewportContent = m.renderer.RenderConversation(m.messages)
	m.viewport.SetContent(m.viewportContent)
	if atBottom {
		m.viewport.GotoBottom()
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return m.styles.SpinnerMessage.Render(m.spinner.View() + " Connecting...")
	}

	sep := m.styles.Separator.Render(strings.Repeat("─", m.width))
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		sep,
		m.viewport.View(),
		sep,
		m.renderActivity(),
		m.renderStatusBar(),
	)
}

func (m Model) renderHeader() string {
	if !m.hasStatus {
		return m.spinner.View() + " Loading session..."
	}
	text := m.status.StatusText
	if text == "" {
		text = workflow.StatusText(m.status.State, m.status.ErrorKind, m.status.Reason)
	}
	badge := m.styles.State(m.status.State).Render(text)
	return fmt.Sprintf("%s  %s", badge, m.status.Task)
}

func (m Model) renderActivity() string {
	if m.notice != "" {
		return m.notice
	}
	if !m.hasStatus || m.status.State.IsTerminal() {
		return ""
	}
	return m.spinner.View() + " " + m.styles.SpinnerMessage.Render(PhaseMessage(m.status.State, m.status.Phase))
}

func (m Model) renderStatusBar() string {
	cursor := "cursor ?"
	if m.status.Cursor != nil {
		cursor = "cursor " + m.status.Cursor.String()
	}
	left := fmt.Sprintf(" iteration %d · %d messages · %s · %s", m.status.Iteration, m.status.MessageCount, cursor, m.keys.helpLine())

	wv := m.status.WorkerVersion
	if wv == "" {
		wv = "?"
	}
	right := fmt.Sprintf("cli:%s · worker:%s ", version.GitCommit, wv)
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return m.styles.StatusBar.Render(left + strings.Repeat(" ", gap) + right)
}

func (m *Model) handleWindowSize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	// header(1) + separator(1) + separator(1) + activity(1) + status(1)
	vpHeight := m.height - 5
	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(m.width, vpHeight)
		m.renderer = NewRenderer(m.width, m.config.NoColor, m.config.NoMarkdown)
		m.ready = true
		m.refreshTranscript()
		return m, nil
	}
	m.viewport.Width = m.width
	m.viewport.Height = vpHeight
	if m.renderer != nil {
		m.renderer.width = m.width
	}
	return m, nil
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Pause):
		if m.status.State.IsTerminal() {
			return m, nil
		}
		m.notice = "Pausing..."
		return m, controlCmd("pause", m.sessions.Pause)
	case key.Matches(msg, m.keys.Resume):
		if m.status.State.IsTerminal() {
			return m, nil
		}
		m.notice = "Resuming..."
		return m, controlCmd("resume", m.sessions.Resume)
	case key.Matches(msg, m.keys.Cancel):
		if m.status.State.IsTerminal() {
			return m, nil
		}
		m.notice = "Cancelling..."
		return m, controlCmd("cancel", m.sessions.Cancel)
	}

	if m.ready {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}
