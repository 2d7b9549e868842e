package history

import (
	"fmt"
	"sync"

	"github.com/mfateev/temporal-mirror-agent/internal/models"
)

// InMemoryHistory is the in-memory ConversationLog. A ceiling of zero or
// less disables the length check.
type InMemoryHistory struct {
	messages []models.Message
	ceiling  int
	mu       sync.RWMutex
}

// NewInMemoryHistory creates an empty history bounded by ceiling messages.
func NewInMemoryHistory(ceiling int) *InMemoryHistory {
	return &InMemoryHistory{
		messages: make([]models.Message, 0),
		ceiling:  ceiling,
	}
}

// Append adds msg to the conversation.
func (h *InMemoryHistory) Append(msg models.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ceiling > 0 && len(h.messages)+1 > h.ceiling {
		return fmt.Errorf("%w: ceiling is %d messages", ErrConversationTooLong, h.ceiling)
	}

	expected := models.RoleUser
	if len(h.messages)%2 == 1 {
		expected = models.RoleAssistant
	}
	if msg.Role != expected {
		return fmt.Errorf("%w: got %q at position %d", ErrRoleOrder, msg.Role, len(h.messages))
	}

	if msg.Role == models.RoleUser && len(h.messages) > 0 {
		if err := checkPairing(h.messages[len(h.messages)-1], msg); err != nil {
			return err
		}
	}

	h.messages = append(h.messages, copyMessage(msg))
	return nil
}

// checkPairing verifies that reply answers every tool use in prev exactly once.
func checkPairing(prev, reply models.Message) error {
	pending := make(map[string]int)
	for _, use := range prev.ToolUses() {
		pending[use.ToolUseID]++
	}
	for _, result := range reply.ToolResults() {
		if pending[result.ToolUseID] != 1 {
			return fmt.Errorf("%w: unexpected result for %q", ErrUnpairedToolUse, result.ToolUseID)
		}
		pending[result.ToolUseID] = 0
	}
	for id, n := range pending {
		if n != 0 {
			return fmt.Errorf("%w: no result for %q", ErrUnpairedToolUse, id)
		}
	}
	return nil
}

// Messages returns a copy of the conversation.
func (h *InMemoryHistory) Messages() []models.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	result := make([]models.Message, len(h.messages))
	for i, m := range h.messages {
		result[i] = copyMessage(m)
	}
	return result
}

// Len returns the number of messages.
func (h *InMemoryHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Fits reports whether n more messages fit under the ceiling.
func (h *InMemoryHistory) Fits(n int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.ceiling <= 0 || len(h.messages)+n <= h.ceiling
}

func copyMessage(m models.Message) models.Message {
	content := make([]models.ContentBlock, len(m.Content))
	copy(content, m.Content)
	return models.Message{Role: m.Role, Content: content}
}
