package stt

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/jarvis-assistant/host/domain/repositories"
	"github.com/jarvis-assistant/host/internal/audio"
)

const defaultWhisperModel = "whisper-1"

// WhisperConfig configures the OpenAI transcription API
type WhisperConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// WhisperSpeechToText implements SpeechToText with the OpenAI audio
// transcription endpoint
type WhisperSpeechToText struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewWhisperSpeechToText creates a new Whisper recognizer
func NewWhisperSpeechToText(config WhisperConfig, logger *zap.Logger) (*WhisperSpeechToText, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required for Whisper transcription")
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	client := openai.NewClient(opts...)

	model := config.Model
	if model == "" {
		model = defaultWhisperModel
	}

	return &WhisperSpeechToText{
		client: &client,
		model:  model,
		logger: logger,
	}, nil
}

// Transcribe uploads the utterance as a WAV file
func (w *WhisperSpeechToText) Transcribe(ctx context.Context, samples []float32, config repositories.AudioConfig) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}

	wav, err := audio.EncodeWAV(audio.FloatToSamples(samples), config.SampleRate)
	if err != nil {
		return "", fmt.Errorf("failed to encode utterance: %w", err)
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wav), "utterance.wav", "audio/wav"),
		Model: openai.AudioModel(w.model),
	}
	if lang := whisperLanguage(config.Language); lang != "" {
		params.Language = openai.String(lang)
	}

	resp, err := w.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("whisper transcription failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	w.logger.Debug("Whisper transcription finished",
		zap.String("model", w.model),
		zap.Int("wavBytes", len(wav)),
		zap.String("text", text))
	return text, nil
}

// whisperLanguage maps a BCP-47 tag such as en-US to the ISO-639-1 code
// the API expects
func whisperLanguage(tag string) string {
	if tag == "" {
		return ""
	}
	lang, _, _ := strings.Cut(tag, "-")
	return strings.ToLower(lang)
}
