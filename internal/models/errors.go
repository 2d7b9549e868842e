package models

import (
	"errors"
	"fmt"

	"go.temporal.io/sdk/temporal"
)

// ErrorKind categorizes session failures so the loop can decide whether a
// failure terminates the session or is reported back to the model.
type ErrorKind string

const (
	KindCaptureUnavailable   ErrorKind = "CaptureUnavailable"   // no window / capture failed → fatal
	KindGatewayOverloaded    ErrorKind = "GatewayOverloaded"    // overload retries exhausted → fatal
	KindGatewayRequestFailed ErrorKind = "GatewayRequestFailed" // network, encoding, malformed reply → fatal
	KindConversationTooLong  ErrorKind = "ConversationTooLong"  // message ceiling reached → fatal
	KindUnknownTool          ErrorKind = "UnknownTool"          // tool name not recognized → dropped
	KindInvalidDirection     ErrorKind = "InvalidDirection"     // malformed move → result text
	KindNoUsableResponse     ErrorKind = "NoUsableResponse"     // reply with no commands → fatal
	KindModelReportedFailure ErrorKind = "ModelReportedFailure" // done{failed} → fatal
	KindInternal             ErrorKind = "Internal"
)

// Fatal reports whether an error of this kind ends the session.
func (k ErrorKind) Fatal() bool {
	switch k {
	case KindUnknownTool, KindInvalidDirection:
		return false
	default:
		return true
	}
}

// SessionError is an error carrying a taxonomy kind.
type SessionError struct {
	Kind      ErrorKind `json:"kind"`
	Retryable bool      `json:"retryable"`
	Message   string    `json:"message"`
}

// Error implements the error interface
func (e *SessionError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// NewSessionError creates a non-retryable error of the given kind.
func NewSessionError(kind ErrorKind, format string, args ...interface{}) *SessionError {
	return &SessionError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewCaptureUnavailableError creates a capture failure.
func NewCaptureUnavailableError(message string) *SessionError {
	return &SessionError{Kind: KindCaptureUnavailable, Message: message}
}

// NewGatewayOverloadedError creates an error for an exhausted overload retry.
func NewGatewayOverloadedError(message string) *SessionError {
	return &SessionError{Kind: KindGatewayOverloaded, Message: message}
}

// NewGatewayRequestFailedError creates a non-overload gateway failure.
func NewGatewayRequestFailedError(message string) *SessionError {
	return &SessionError{Kind: KindGatewayRequestFailed, Message: message}
}

// KindOf extracts the taxonomy kind from err. Both SessionError values and
// Temporal application errors produced by ToApplicationError are recognized.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var sessErr *SessionError
	if errors.As(err, &sessErr) {
		return sessErr.Kind
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() != "" {
		return ErrorKind(appErr.Type())
	}
	return KindInternal
}

// ToApplicationError converts err into a Temporal application error whose
// type is the taxonomy kind. Errors without a kind pass through unchanged.
func ToApplicationError(err error) error {
	var sessErr *SessionError
	if !errors.As(err, &sessErr) {
		return err
	}
	if sessErr.Retryable {
		return temporal.NewApplicationError(sessErr.Message, string(sessErr.Kind))
	}
	return temporal.NewNonRetryableApplicationError(sessErr.Message, string(sessErr.Kind), nil)
}
