package repositories

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotConfigured is returned by a chat backend that has no credential.
var ErrNotConfigured = errors.New("chat backend not configured")

// LargeLanguageModel abstracts any chat/LLM provider
type LargeLanguageModel interface {
	// Complete sends the ordered messages and returns the model's reply
	Complete(ctx context.Context, messages []ChatMessage, params GenerationParams) (string, error)
}

// ChatMessage represents a single message in a conversation
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// GenerationParams bounds a single completion
type GenerationParams struct {
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// Role defines the type of message sender
type Role string

const (
	SystemRole    Role = "system"
	UserRole      Role = "user"
	AssistantRole Role = "assistant"
)

// NotConfiguredError names the backend and the variable that would configure it.
type NotConfiguredError struct {
	Backend string
	EnvVar  string
}

func (e *NotConfiguredError) Error() string {
	return fmt.Sprintf("%s API key not configured", e.Backend)
}

// Is makes errors.Is(err, ErrNotConfigured) match.
func (e *NotConfiguredError) Is(target error) bool {
	return target == ErrNotConfigured
}
