package entities

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MessageRole represents the role of a message sender
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// ConversationMessage represents one turn of a conversation
type ConversationMessage struct {
	Timestamp time.Time   `json:"timestamp"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
}

// Conversation is the history of one device connection. It lives only as
// long as the connection and is owned by that connection's driver loop.
type Conversation struct {
	ID            string                `json:"id"`
	CreatedAt     time.Time             `json:"created_at"`
	LastMessageAt *time.Time            `json:"last_message_at"`
	Messages      []ConversationMessage `json:"messages"`
}

// NewConversation creates an empty conversation
func NewConversation() *Conversation {
	return &Conversation{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Messages:  make([]ConversationMessage, 0),
	}
}

// AddMessage appends a message to the conversation
func (c *Conversation) AddMessage(role MessageRole, content string) {
	now := time.Now()
	c.Messages = append(c.Messages, ConversationMessage{
		Timestamp: now,
		Role:      role,
		Content:   content,
	})
	c.LastMessageAt = &now
}

// Recent returns a copy of the last n messages, oldest first. Older
// messages stay in the conversation but are not returned.
func (c *Conversation) Recent(n int) []ConversationMessage {
	if n <= 0 {
		return nil
	}
	start := len(c.Messages) - n
	if start < 0 {
		start = 0
	}
	recent := make([]ConversationMessage, len(c.Messages)-start)
	copy(recent, c.Messages[start:])
	return recent
}

// Len returns the number of messages in the conversation
func (c *Conversation) Len() int {
	return len(c.Messages)
}

// Clear drops every message
func (c *Conversation) Clear() {
	c.Messages = make([]ConversationMessage, 0)
	c.LastMessageAt = nil
}

// Validate validates the conversation data
func (c *Conversation) Validate() error {
	if c.ID == "" {
		return errors.New("conversation id is required")
	}
	for _, m := range c.Messages {
		if m.Role != MessageRoleUser && m.Role != MessageRoleAssistant {
			return errors.New("invalid message role")
		}
	}
	return nil
}
