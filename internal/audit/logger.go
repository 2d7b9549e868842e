// Package audit records the session audit trail: every model request,
// every response or error, and every executed command.
package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mfateev/temporal-mirror-agent/internal/models"
)

// EntryKind tags an audit entry.
type EntryKind string

const (
	KindRequest  EntryKind = "request"
	KindResponse EntryKind = "response"
	KindCommand  EntryKind = "command"
)

// RequestRecord describes one model request. The credential is redacted
// before it reaches the logger.
type RequestRecord struct {
	SessionID          string    `json:"session_id"`
	Task               string    `json:"task"`
	Model              string    `json:"model"`
	RedactedCredential string    `json:"credential"`
	ScreenshotRef      string    `json:"screenshot_ref,omitempty"`
	ScreenshotBytes    int       `json:"screenshot_bytes"`
	MessageCount       int       `json:"message_count"`
	Attempt            int       `json:"attempt"`
	Time               time.Time `json:"time"`
}

// ResponseRecord describes one model reply or the error that replaced it.
type ResponseRecord struct {
	SessionID  string           `json:"session_id"`
	Message    string           `json:"message,omitempty"`
	Commands   []models.Command `json:"commands,omitempty"`
	StopReason string           `json:"stop_reason,omitempty"`
	Error      string           `json:"error,omitempty"`
	ErrorKind  models.ErrorKind `json:"error_kind,omitempty"`
	Attempt    int              `json:"attempt"`
	Time       time.Time        `json:"time"`
}

// CommandRecord describes one executed command.
type CommandRecord struct {
	SessionID string         `json:"session_id"`
	Command   models.Command `json:"command"`
	Result    string         `json:"result"`
	Cursor    models.Point   `json:"cursor"`
	Time      time.Time      `json:"time"`
}

// Logger is the append-only audit sink. Callers treat errors as advisory:
// a failing logger never aborts the operation being logged.
type Logger interface {
	LogRequest(ctx context.Context, rec RequestRecord) error
	LogResponse(ctx context.Context, rec ResponseRecord) error
	LogCommand(ctx context.Context, rec CommandRecord) error
}

// Entry is a stored audit record in generic form.
type Entry struct {
	Kind      EntryKind `json:"kind"`
	SessionID string    `json:"session_id"`
	Time      time.Time `json:"time"`
	Payload   string    `json:"payload"`
}

// Nop discards everything.
type Nop struct{}

func (Nop) LogRequest(context.Context, RequestRecord) error   { return nil }
func (Nop) LogResponse(context.Context, ResponseRecord) error { return nil }
func (Nop) LogCommand(context.Context, CommandRecord) error   { return nil }

// Multi fans every record out to all loggers and joins their errors.
type Multi []Logger

func (m Multi) LogRequest(ctx context.Context, rec RequestRecord) error {
	var errs []error
	for _, l := range m {
		errs = append(errs, l.LogRequest(ctx, rec))
	}
	return errors.Join(errs...)
}

func (m Multi) LogResponse(ctx context.Context, rec ResponseRecord) error {
	var errs []error
	for _, l := range m {
		errs = append(errs, l.LogResponse(ctx, rec))
	}
	return errors.Join(errs...)
}

func (m Multi) LogCommand(ctx context.Context, rec CommandRecord) error {
	var errs []error
	for _, l := range m {
		errs = append(errs, l.LogCommand(ctx, rec))
	}
	return errors.Join(errs...)
}

// Recorder keeps records in memory. Tests use it as a capturing stub; Err,
// when set, is returned from every call after recording.
type Recorder struct {
	Err error

	mu        sync.Mutex
	requests  []RequestRecord
	responses []ResponseRecord
	commands  []CommandRecord
}

func (r *Recorder) LogRequest(_ context.Context, rec RequestRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, rec)
	return r.Err
}

func (r *Recorder) LogResponse(_ context.Context, rec ResponseRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, rec)
	return r.Err
}

func (r *Recorder) LogCommand(_ context.Context, rec CommandRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, rec)
	return r.Err
}

// Requests returns the recorded requests.
func (r *Recorder) Requests() []RequestRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RequestRecord(nil), r.requests...)
}

// Responses returns the recorded responses.
func (r *Recorder) Responses() []ResponseRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ResponseRecord(nil), r.responses...)
}

// Commands returns the recorded commands.
func (r *Recorder) Commands() []CommandRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]CommandRecord(nil), r.commands...)
}
