package llm

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/jarvis-assistant/host/domain/repositories"
)

const (
	defaultGrokModel   = "grok-2-latest"
	defaultGrokBaseURL = "https://api.x.ai/v1"
)

// GrokConfig configures the xAI chat backend. Any OpenAI-compatible endpoint works.
type GrokConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// GrokLLM implements LargeLanguageModel against the OpenAI-compatible xAI API.
// Without an API key every call fails with repositories.ErrNotConfigured.
type GrokLLM struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewGrokLLM creates a new Grok chat backend
func NewGrokLLM(config GrokConfig, logger *zap.Logger) *GrokLLM {
	model := config.Model
	if model == "" {
		model = defaultGrokModel
	}
	g := &GrokLLM{model: model, logger: logger}

	if config.APIKey == "" {
		logger.Warn("GROK_API_KEY not set! Chat will not work.")
		return g
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultGrokBaseURL
	}
	client := openai.NewClient(
		option.WithAPIKey(config.APIKey),
		option.WithBaseURL(baseURL),
	)
	g.client = &client
	return g
}

// Configured reports whether an API key was provided
func (g *GrokLLM) Configured() bool {
	return g.client != nil
}

// Complete implements repositories.LargeLanguageModel
func (g *GrokLLM) Complete(ctx context.Context, messages []repositories.ChatMessage, params repositories.GenerationParams) (string, error) {
	if g.client == nil {
		return "", &repositories.NotConfiguredError{Backend: "Grok", EnvVar: "GROK_API_KEY"}
	}

	req := openai.ChatCompletionNewParams{
		Model:    g.model,
		Messages: toOpenAIMessages(messages),
	}
	if params.MaxTokens > 0 {
		req.MaxTokens = openai.Int(int64(params.MaxTokens))
	}
	req.Temperature = openai.Float(params.Temperature)

	resp, err := g.client.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", fmt.Errorf("grok chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("grok chat: no choices returned")
	}

	g.logger.Debug("Grok completion finished",
		zap.String("model", resp.Model),
		zap.Int64("promptTokens", resp.Usage.PromptTokens),
		zap.Int64("completionTokens", resp.Usage.CompletionTokens),
		zap.String("finishReason", string(resp.Choices[0].FinishReason)))

	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []repositories.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	params := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case repositories.SystemRole:
			params = append(params, openai.SystemMessage(m.Content))
		case repositories.AssistantRole:
			params = append(params, openai.AssistantMessage(m.Content))
		default:
			params = append(params, openai.UserMessage(m.Content))
		}
	}
	return params
}
