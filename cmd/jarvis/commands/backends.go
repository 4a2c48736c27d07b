package commands

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jarvis-assistant/host/adapters/llm"
	"github.com/jarvis-assistant/host/adapters/stt"
	"github.com/jarvis-assistant/host/adapters/tts"
	"github.com/jarvis-assistant/host/domain/repositories"
	"github.com/jarvis-assistant/host/internal/config"
	"github.com/jarvis-assistant/host/usecase"
)

// buildPipeline constructs the collaborators selected by cfg. The returned
// cleanup releases backend clients and is never nil.
func buildPipeline(ctx context.Context, cfg config.Config, logger *zap.Logger) (*usecase.UtteranceService, func(), error) {
	cleanup := func() {}

	chat, err := newChatBackend(ctx, cfg, logger)
	if err != nil {
		return nil, cleanup, err
	}

	speech, err := newSpeechBackend(cfg, logger)
	if err != nil {
		return nil, cleanup, err
	}
	if closer, ok := speech.(interface{ Close() error }); ok {
		cleanup = func() {
			if err := closer.Close(); err != nil {
				logger.Warn("Failed to close speech client", zap.Error(err))
			}
		}
	}

	synth, err := newSynthesisBackend(cfg, logger)
	if err != nil {
		return nil, cleanup, err
	}

	utterance := usecase.DefaultUtteranceConfig()
	utterance.SampleRate = cfg.Audio.SampleRate
	utterance.Language = cfg.STT.Language
	utterance.HistoryWindow = cfg.Chat.HistoryWindow
	utterance.MaxTokens = cfg.Chat.MaxTokens
	utterance.Temperature = cfg.Chat.Temperature
	utterance.ChatTimeout = cfg.Chat.Timeout
	if cfg.Chat.Persona != "" {
		utterance.Persona = cfg.Chat.Persona
	}

	logger.Info("Pipeline ready",
		zap.String("chat", cfg.Chat.Backend),
		zap.Bool("chatConfigured", cfg.ChatConfigured()),
		zap.String("stt", cfg.STT.Backend),
		zap.String("tts", cfg.TTS.Backend))

	return usecase.NewUtteranceService(speech, chat, synth, utterance, logger), cleanup, nil
}

func newChatBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.LargeLanguageModel, error) {
	switch cfg.Chat.Backend {
	case config.ChatGrok:
		return llm.NewGrokLLM(llm.GrokConfig{
			APIKey:  cfg.Chat.Grok.APIKey,
			Model:   cfg.Chat.Grok.Model,
			BaseURL: cfg.Chat.Grok.BaseURL,
		}, logger), nil
	case config.ChatGemini:
		gemini, err := llm.NewGeminiLLM(ctx, llm.GeminiConfig{
			APIKey: cfg.Chat.Gemini.APIKey,
			Model:  cfg.Chat.Gemini.Model,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create gemini backend: %w", err)
		}
		return gemini, nil
	case config.ChatMock:
		return llm.NewMockLLM(), nil
	}
	return nil, fmt.Errorf("unknown chat backend %q", cfg.Chat.Backend)
}

func newSpeechBackend(cfg config.Config, logger *zap.Logger) (repositories.SpeechToText, error) {
	switch cfg.STT.Backend {
	case config.STTWhisper:
		whisper, err := stt.NewWhisperSpeechToText(stt.WhisperConfig{
			APIKey:  cfg.STT.Whisper.APIKey,
			BaseURL: cfg.STT.Whisper.BaseURL,
			Model:   cfg.STT.Whisper.Model,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("create whisper backend (set OPENAI_API_KEY or STT_BACKEND=mock): %w", err)
		}
		return whisper, nil
	case config.STTGoogle:
		return stt.NewGoogleSpeechToText(logger), nil
	case config.STTMock:
		return stt.NewMockSpeechToText(logger), nil
	}
	return nil, fmt.Errorf("unknown stt backend %q", cfg.STT.Backend)
}

func newSynthesisBackend(cfg config.Config, logger *zap.Logger) (repositories.TextToSpeech, error) {
	switch cfg.TTS.Backend {
	case config.TTSNone:
		return tts.NopTextToSpeech{}, nil
	case config.TTSElevenLabs:
		eleven, err := tts.NewElevenLabsTTS(cfg.TTS.ElevenLabs, logger)
		if err != nil {
			return nil, fmt.Errorf("create elevenlabs backend: %w", err)
		}
		return eleven, nil
	}
	return nil, fmt.Errorf("unknown tts backend %q", cfg.TTS.Backend)
}
