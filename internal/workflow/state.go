// Package workflow contains the Temporal workflow that runs one task session.
//
// state.go holds the serializable session state, separated from workflow logic.
package workflow

import (
	"fmt"

	"github.com/mfateev/temporal-mirror-agent/internal/history"
	"github.com/mfateev/temporal-mirror-agent/internal/models"
)

// Handler name constants for Temporal query and update handlers.
const (
	// UpdatePause suspends the loop at the next iteration boundary.
	UpdatePause = "pause"

	// UpdateResume continues a paused session.
	UpdateResume = "resume"

	// UpdateCancel ends the session as cancelled.
	UpdateCancel = "cancel"

	// QueryGetStatus returns the session status for display.
	QueryGetStatus = "get_status"

	// QueryGetConversation returns the conversation so far.
	QueryGetConversation = "get_conversation"
)

// Activity names as registered on the worker.
const (
	ActivityAnnounceStart     = "AnnounceStart"
	ActivityCaptureScreenshot = "CaptureScreenshot"
	ActivityCallModel         = "CallModel"
	ActivityExecuteCommand    = "ExecuteCommand"
)

// Failure reasons reported in the terminal status.
const (
	ReasonCaptureFailed       = "capture failed"
	ReasonNoResponse          = "no response"
	ReasonConversationTooLong = "conversation too long"
	ReasonNoUsableResponse    = "no usable response"
	ReasonCancelled           = "cancelled by user"
)

// Phase is the step the loop is currently in, for display.
type Phase string

const (
	PhaseSettling  Phase = "settling"
	PhaseCapturing Phase = "capturing"
	PhaseThinking  Phase = "thinking"
	PhaseExecuting Phase = "executing"
	PhaseWaiting   Phase = "waiting"
	PhaseDone      Phase = "done"
)

// StartSignalMessage is announced to the operator before the agent takes
// control of the pointer.
const StartSignalMessage = "Agent starting: hands off the mouse."

// SessionInput is the input to TaskSessionWorkflow.
type SessionInput struct {
	SessionID string               `json:"session_id"`
	Task      string               `json:"task"`
	Config    models.SessionConfig `json:"config"`
}

// SessionStatus is the read-only view returned by the get_status query.
type SessionStatus struct {
	SessionID     string           `json:"session_id"`
	Task          string           `json:"task"`
	State         models.State     `json:"state"`
	Phase         Phase            `json:"phase"`
	Iteration     int              `json:"iteration"`
	MessageCount  int              `json:"message_count"`
	Cursor        *models.Point    `json:"cursor,omitempty"`
	LastMessage   string           `json:"last_message,omitempty"`
	LastCommands  []models.Command `json:"last_commands,omitempty"`
	ScreenshotRef string           `json:"screenshot_ref,omitempty"`
	ErrorKind     models.ErrorKind `json:"error_kind,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	StatusText    string           `json:"status_text"`
	WorkerVersion string           `json:"worker_version,omitempty"`
}

// SessionResult is the workflow result. Every terminal path produces one;
// failures are reported here rather than as workflow errors.
type SessionResult struct {
	SessionID    string           `json:"session_id"`
	State        models.State     `json:"state"`
	ErrorKind    models.ErrorKind `json:"error_kind,omitempty"`
	Reason       string           `json:"reason,omitempty"`
	StatusText   string           `json:"status_text"`
	Iterations   int              `json:"iterations"`
	MessageCount int              `json:"message_count"`
	Cursor       *models.Point    `json:"cursor,omitempty"`
}

// ControlResponse is returned by the pause, resume and cancel updates.
type ControlResponse struct {
	State models.State `json:"state"`
}

// SessionState is the state of one task session. It is owned by the loop;
// handlers only read it.
type SessionState struct {
	SessionID string
	Task      string
	Config    models.SessionConfig

	State     models.State
	Phase     Phase
	History   *history.InMemoryHistory
	Iteration int

	// Cursor is nil until the first capture places it at the window centre.
	Cursor *models.Point

	LastMessage   string
	LastCommands  []models.Command
	ScreenshotRef string

	ErrorKind models.ErrorKind
	Reason    string
}

func newSessionState(input SessionInput) *SessionState {
	cfg := applyConfigDefaults(input.Config)
	return &SessionState{
		SessionID: input.SessionID,
		Task:      input.Task,
		Config:    cfg,
		State:     models.StateIdle,
		Phase:     PhaseSettling,
		History:   history.NewInMemoryHistory(cfg.MaxMessages),
	}
}

// applyConfigDefaults fills unset fields from models.DefaultSessionConfig.
func applyConfigDefaults(cfg models.SessionConfig) models.SessionConfig {
	def := models.DefaultSessionConfig()
	if cfg.Model.Model == "" {
		cfg.Model.Model = def.Model.Model
	}
	if cfg.Model.MaxTokens <= 0 {
		cfg.Model.MaxTokens = def.Model.MaxTokens
	}
	if cfg.Codec == (models.CodecConfig{}) {
		cfg.Codec = def.Codec
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = def.MaxMessages
	}
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	if cfg.IterationDelay < 0 {
		cfg.IterationDelay = 0
	}
	if cfg.WindowTitle == "" {
		cfg.WindowTitle = def.WindowTitle
	}
	if cfg.CredentialName == "" {
		cfg.CredentialName = def.CredentialName
	}
	return cfg
}

// finish moves the session to a terminal state.
func (s *SessionState) finish(state models.State, kind models.ErrorKind, reason string) {
	s.State = state
	s.Phase = PhaseDone
	s.ErrorKind = kind
	s.Reason = reason
}

func (s *SessionState) status(workerVersion string) SessionStatus {
	return SessionStatus{
		SessionID:     s.SessionID,
		Task:          s.Task,
		State:         s.State,
		Phase:         s.Phase,
		Iteration:     s.Iteration,
		MessageCount:  s.History.Len(),
		Cursor:        s.Cursor,
		LastMessage:   s.LastMessage,
		LastCommands:  s.LastCommands,
		ScreenshotRef: s.ScreenshotRef,
		ErrorKind:     s.ErrorKind,
		Reason:        s.Reason,
		StatusText:    StatusText(s.State, s.ErrorKind, s.Reason),
		WorkerVersion: workerVersion,
	}
}

func (s *SessionState) result() SessionResult {
	return SessionResult{
		SessionID:    s.SessionID,
		State:        s.State,
		ErrorKind:    s.ErrorKind,
		Reason:       s.Reason,
		StatusText:   StatusText(s.State, s.ErrorKind, s.Reason),
		Iterations:   s.Iteration,
		MessageCount: s.History.Len(),
		Cursor:       s.Cursor,
	}
}

// StatusText renders a human-readable status line combining the state, the
// error kind and any model-supplied reason.
func StatusText(state models.State, kind models.ErrorKind, reason string) string {
	switch state {
	case models.StateIdle:
		return "Idle"
	case models.StateRunning:
		return "Running"
	case models.StatePaused:
		return "Paused"
	case models.StateCompleted:
		if reason == "" {
			return "Completed"
		}
		return fmt.Sprintf("Completed: %s", reason)
	case models.StateFailed:
		if kind == "" {
			return fmt.Sprintf("Failed: %s", reason)
		}
		return fmt.Sprintf("Failed (%s): %s", kind, reason)
	case models.StateCancelled:
		return "Cancelled"
	default:
		return string(state)
	}
}
