package llm

import (
	"context"
	"fmt"

	"github.com/jarvis-assistant/host/domain/repositories"
)

// MockLLM answers without calling any backend
type MockLLM struct{}

// NewMockLLM creates a new mock chat backend
func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

// Complete implements repositories.LargeLanguageModel
func (m *MockLLM) Complete(ctx context.Context, messages []repositories.ChatMessage, params repositories.GenerationParams) (string, error) {
	var last string
	turns := 0
	for _, msg := range messages {
		if msg.Role == repositories.UserRole {
			last = msg.Content
			turns++
		}
	}

	if last == "" {
		return "At your service, sir. What can I do for you?", nil
	}
	if turns > 1 {
		return fmt.Sprintf("You said %q. That makes %d things you've asked me about.", last, turns), nil
	}
	return fmt.Sprintf("You said %q. How can I help with that?", last), nil
}
