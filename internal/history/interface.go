// Package history provides the append-only conversation log a task session
// replays to the model on every call.
package history

import (
	"errors"

	"github.com/mfateev/temporal-mirror-agent/internal/models"
)

var (
	// ErrConversationTooLong is returned when an append would exceed the
	// configured message ceiling.
	ErrConversationTooLong = errors.New("conversation too long")
	// ErrRoleOrder is returned when messages do not alternate user/assistant
	// starting with user.
	ErrRoleOrder = errors.New("conversation roles must alternate starting with user")
	// ErrUnpairedToolUse is returned when a user message does not answer every
	// tool use of the preceding assistant message exactly once.
	ErrUnpairedToolUse = errors.New("tool uses must be answered by exactly one tool result")
)

// ConversationLog is the interface for the session's conversation.
//
// Implementations never hand out references to their internal storage:
// appended messages are copied in and reads return copies.
type ConversationLog interface {
	// Append adds a message after validating ordering, tool pairing and the ceiling.
	Append(msg models.Message) error

	// Messages returns the conversation in order.
	Messages() []models.Message

	// Len returns the number of messages.
	Len() int

	// Fits reports whether n more messages can be appended without
	// exceeding the ceiling.
	Fits(n int) bool
}
