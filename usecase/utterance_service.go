package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/jarvis-assistant/host/domain/entities"
	"github.com/jarvis-assistant/host/domain/repositories"
	"github.com/jarvis-assistant/host/internal/protocol"
)

// DefaultPersona is prepended to every chat request.
const DefaultPersona = `You are Jarvis, a helpful AI assistant.
Keep responses concise and conversational since they will be spoken aloud.
Be friendly, helpful, and occasionally witty.`

// Output receives what an utterance produces for the device
type Output interface {
	Emit(ctx context.Context, status protocol.Status) error
	SendAudio(ctx context.Context, audio []byte) error
}

// UtteranceConfig holds the fixed parameters of the pipeline
type UtteranceConfig struct {
	SampleRate    int
	Language      string
	Persona       string
	HistoryWindow int
	MaxTokens     int
	Temperature   float64
	// ChatTimeout bounds a chat call. Zero means no timeout.
	ChatTimeout time.Duration
}

// DefaultUtteranceConfig returns the stock pipeline parameters
func DefaultUtteranceConfig() UtteranceConfig {
	return UtteranceConfig{
		SampleRate:    16000,
		Language:      "en-US",
		Persona:       DefaultPersona,
		HistoryWindow: 10,
		MaxTokens:     500,
		Temperature:   0.7,
	}
}

// UtteranceService turns one recorded utterance into a reply
type UtteranceService struct {
	speechToText repositories.SpeechToText
	llm          repositories.LargeLanguageModel
	textToSpeech repositories.TextToSpeech
	config       UtteranceConfig
	logger       *zap.Logger
}

// NewUtteranceService creates a new utterance service. tts may be nil.
func NewUtteranceService(
	stt repositories.SpeechToText,
	llm repositories.LargeLanguageModel,
	tts repositories.TextToSpeech,
	config UtteranceConfig,
	logger *zap.Logger,
) *UtteranceService {
	return &UtteranceService{
		speechToText: stt,
		llm:          llm,
		textToSpeech: tts,
		config:       config,
		logger:       logger,
	}
}

// Process runs transcription, chat and synthesis for one utterance and
// reports progress through out. Recognition and backend failures are
// reported to the device, not returned. The returned error is always an
// Output failure.
func (s *UtteranceService) Process(ctx context.Context, samples []int16, conv *entities.Conversation, out Output) error {
	s.logger.Info("Processing utterance",
		zap.Int("samples", len(samples)),
		zap.Float64("seconds", float64(len(samples))/float64(s.config.SampleRate)))

	if err := out.Emit(ctx, protocol.NewTranscribingStatus()); err != nil {
		return err
	}

	text, err := s.speechToText.Transcribe(ctx, NormalizeSamples(samples), repositories.AudioConfig{
		SampleRate: s.config.SampleRate,
		Language:   s.config.Language,
	})
	if err != nil {
		s.logger.Error("Transcription failed", zap.Error(err))
		return out.Emit(ctx, protocol.NewErrorStatus(err.Error()))
	}

	text = strings.TrimSpace(text)
	if text == "" {
		s.logger.Info("Transcription was empty")
		return out.Emit(ctx, protocol.NewErrorStatus(protocol.MessageCouldNotTranscribe))
	}

	s.logger.Info("Transcription completed", zap.String("text", text))
	if err := out.Emit(ctx, protocol.NewTranscribedStatus(text)); err != nil {
		return err
	}
	if err := out.Emit(ctx, protocol.NewThinkingStatus()); err != nil {
		return err
	}

	conv.AddMessage(entities.MessageRoleUser, text)
	reply := s.chat(ctx, conv)
	conv.AddMessage(entities.MessageRoleAssistant, reply)

	if err := out.Emit(ctx, protocol.NewResponseStatus(text, reply)); err != nil {
		return err
	}

	return s.speak(ctx, reply, out)
}

// BuildChatRequest returns the persona followed by the most recent history entries
func (s *UtteranceService) BuildChatRequest(conv *entities.Conversation) []repositories.ChatMessage {
	recent := conv.Recent(s.config.HistoryWindow)
	messages := make([]repositories.ChatMessage, 0, len(recent)+1)
	messages = append(messages, repositories.ChatMessage{
		Role:    repositories.SystemRole,
		Content: s.config.Persona,
	})
	for _, m := range recent {
		role := repositories.UserRole
		if m.Role == entities.MessageRoleAssistant {
			role = repositories.AssistantRole
		}
		messages = append(messages, repositories.ChatMessage{Role: role, Content: m.Content})
	}
	return messages
}

// chat never fails: backend errors become the reply text.
func (s *UtteranceService) chat(ctx context.Context, conv *entities.Conversation) string {
	if s.config.ChatTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ChatTimeout)
		defer cancel()
	}

	reply, err := s.llm.Complete(ctx, s.BuildChatRequest(conv), repositories.GenerationParams{
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
	})
	if err != nil {
		var notConfigured *repositories.NotConfiguredError
		if errors.As(err, &notConfigured) {
			s.logger.Warn("Chat backend not configured", zap.String("backend", notConfigured.Backend))
			return fmt.Sprintf("Error: %s API key not configured. Please set %s in .env file.",
				notConfigured.Backend, notConfigured.EnvVar)
		}
		s.logger.Error("Chat backend error", zap.Error(err))
		return fmt.Sprintf("Sorry, I encountered an error: %v", err)
	}

	s.logger.Info("Chat response generated", zap.String("response", truncate(reply, 100)))
	return reply
}

func (s *UtteranceService) speak(ctx context.Context, text string, out Output) error {
	if s.textToSpeech == nil {
		return nil
	}

	chunks, err := s.textToSpeech.ConvertTextToSpeech(ctx, text)
	if err != nil {
		s.logger.Warn("Text-to-speech failed", zap.Error(err))
		return nil
	}

	for chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		if err := out.SendAudio(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

// NormalizeSamples maps s16 samples to [-1, 1)
func NormalizeSamples(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, v := range samples {
		out[i] = float32(v) / 32768
	}
	return out
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
