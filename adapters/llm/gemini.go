package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/jarvis-assistant/host/domain/repositories"
)

const (
	defaultGeminiModel = "gemini-2.0-flash"
	geminiAttempts     = 3
)

// GeminiConfig configures the Gemini chat backend
type GeminiConfig struct {
	APIKey string
	Model  string
}

// GeminiLLM implements the LargeLanguageModel interface using Google's Gemini API
type GeminiLLM struct {
	client *genai.Client
	logger *zap.Logger
	model  string
	// backoff between attempts, attempt n waits n*backoff
	backoff time.Duration
}

// NewGeminiLLM creates a new Gemini LLM instance. A missing API key is not an
// error here; Complete reports it on use.
func NewGeminiLLM(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiLLM, error) {
	model := config.Model
	if model == "" {
		model = defaultGeminiModel
	}
	g := &GeminiLLM{logger: logger, model: model, backoff: time.Second}

	if config.APIKey == "" {
		logger.Warn("GEMINI_API_KEY not set! Chat will not work.")
		return g, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	g.client = client
	return g, nil
}

// Configured reports whether an API key was provided
func (g *GeminiLLM) Configured() bool {
	return g.client != nil
}

// Complete implements repositories.LargeLanguageModel. System messages become
// the system instruction; the rest are sent as contents.
func (g *GeminiLLM) Complete(ctx context.Context, messages []repositories.ChatMessage, params repositories.GenerationParams) (string, error) {
	if g.client == nil {
		return "", &repositories.NotConfiguredError{Backend: "Gemini", EnvVar: "GEMINI_API_KEY"}
	}

	system, contents := toGeminiContents(messages)
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(params.Temperature)),
		MaxOutputTokens: int32(params.MaxTokens),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	var (
		response *genai.GenerateContentResponse
		err      error
	)
	for attempt := 0; attempt < geminiAttempts; attempt++ {
		response, err = g.client.Models.GenerateContent(ctx, g.model, contents, config)
		if err == nil {
			break
		}

		g.logger.Warn("Failed to generate content, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		if attempt < geminiAttempts-1 {
			select {
			case <-time.After(time.Duration(attempt+1) * g.backoff):
			case <-ctx.Done():
				return "", fmt.Errorf("gemini chat: %w", ctx.Err())
			}
		}
	}
	if err != nil {
		return "", fmt.Errorf("gemini chat: %w", err)
	}

	text := responseText(response)
	if text == "" {
		return "", fmt.Errorf("gemini chat: empty response")
	}
	return text, nil
}

func responseText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// toGeminiContents splits system messages from the conversation turns
func toGeminiContents(messages []repositories.ChatMessage) (string, []*genai.Content) {
	var (
		system   []string
		contents []*genai.Content
	)
	for _, msg := range messages {
		switch msg.Role {
		case repositories.SystemRole:
			system = append(system, msg.Content)
		case repositories.AssistantRole:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n"), contents
}
