package convo

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Conversation is an ordered sequence of Messages plus a persistent
// identifier. It is destroyed and replaced on /clear.
type Conversation struct {
	mu       sync.RWMutex
	ID       string
	Title    string
	messages []Message
}

// New starts a fresh Conversation with a freshly generated id.
func New() *Conversation {
	return &Conversation{ID: newConversationID()}
}

// newConversationID mints a 32-hex UUIDv4 (dashes stripped), matching the
// Session Record id format.
func newConversationID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Append adds a Message to the end of the conversation.
func (c *Conversation) Append(m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, m)
}

// Messages returns a snapshot copy of the conversation's messages.
func (c *Conversation) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// System returns the immutable system Message, if one has been set.
func (c *Conversation) System() (Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, m := range c.messages {
		if m.Role == RoleSystem {
			return m, true
		}
	}
	return Message{}, false
}

// Replace swaps the full message slice, used by the Context Manager to
// install a compacted history.
func (c *Conversation) Replace(messages []Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = messages
}

// Clear discards all messages and mints a fresh conversation id, for
// /clear. It mutates the Conversation in place so callers holding a
// pointer to it (the context manager, the agent loop) see the reset
// without needing to be rewired.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
	c.ID = newConversationID()
}

// Len returns the number of messages currently held.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}
